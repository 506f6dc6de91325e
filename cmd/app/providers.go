package main

import (
	"github.com/agrofocus/yield-service/internal/bootstrap"
	"github.com/agrofocus/yield-service/internal/domain/yield"
	"github.com/agrofocus/yield-service/internal/infra/config"
)

func provideYieldConfig(cfg *config.Config) yield.Config {
	return bootstrap.NewYieldConfig(cfg)
}

func provideModelStore(store *bootstrap.Store) yield.ModelStore {
	return store
}
