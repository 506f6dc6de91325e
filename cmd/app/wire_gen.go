// Injector for the wire.go provider set, kept in Wire's output shape. Running
// go generate replaces it with the tool's output.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package main

import (
	"github.com/agrofocus/yield-service/internal/bootstrap"
	"github.com/agrofocus/yield-service/internal/domain/yield"
	"github.com/agrofocus/yield-service/internal/infra/config"
	"github.com/agrofocus/yield-service/internal/interface/http"
	"github.com/agrofocus/yield-service/pkg/logger"
)

// Injectors from wire.go:

func initializeApp() (*bootstrap.App, error) {
	configConfig, err := config.Load()
	if err != nil {
		return nil, err
	}
	slogLogger := logger.New()
	store := bootstrap.NewModelStore(configConfig, slogLogger)
	yieldConfig := provideYieldConfig(configConfig)
	modelStore := provideModelStore(store)
	service := yield.NewService(yieldConfig, modelStore, slogLogger)
	handler := http.NewHandler(service, slogLogger)
	server := http.NewRouter(configConfig, handler)
	app := bootstrap.NewApp(configConfig, slogLogger, server, store)
	return app, nil
}
