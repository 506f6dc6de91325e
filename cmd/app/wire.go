//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/agrofocus/yield-service/internal/bootstrap"
	"github.com/agrofocus/yield-service/internal/domain/yield"
	"github.com/agrofocus/yield-service/internal/infra/config"
	httpiface "github.com/agrofocus/yield-service/internal/interface/http"
	"github.com/agrofocus/yield-service/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		bootstrap.NewModelStore,
		provideYieldConfig,
		provideModelStore,
		yield.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
