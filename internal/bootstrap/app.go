package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/agrofocus/yield-service/internal/infra/config"
)

// App runs the yield API and owns the model store connections behind it.
type App struct {
	cfg    config.HTTPConfig
	logger *slog.Logger
	server *http.Server
	store  *Store
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, store *Store) *App {
	return &App{
		cfg:    cfg.HTTP,
		logger: logger.With("component", "bootstrap"),
		server: server,
		store:  store,
	}
}

// Run serves until ctx is done or the listener fails, then drains in-flight
// requests within the shutdown timeout and closes the model store.
func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("yield api starting", "address", a.cfg.Address, "store", a.store.Driver)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received", "timeout", a.cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
