package bootstrap

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/agrofocus/yield-service/internal/domain/yield"
	"github.com/agrofocus/yield-service/internal/infra/config"
	"github.com/agrofocus/yield-service/internal/infra/modelstore"
)

const pingTimeout = 5 * time.Second

// Store is the opened model store with the driver actually in use and the
// release of its connections.
type Store struct {
	yield.ModelStore
	Driver string
	close  func()
}

// Close releases the backend connections. It is safe to call more than once.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
		s.close = nil
	}
}

// NewModelStore opens the configured backend. Unreachable backends are logged and
// replaced by the memory store so the service still answers from calibration.
func NewModelStore(cfg *config.Config, base *slog.Logger) *Store {
	logger := base.With("component", "bootstrap.store")
	opened := func(driver string, store yield.ModelStore, closeFn func()) *Store {
		return &Store{ModelStore: store, Driver: driver, close: closeFn}
	}
	fallback := func(reason string, err error) *Store {
		logger.Error(reason+", using memory model store", "driver", cfg.Store.Driver, "error", err)
		return opened(config.StoreMemory, modelstore.NewMemoryStore(base), nil)
	}

	switch cfg.Store.Driver {
	case config.StoreFile:
		store, err := modelstore.NewFileStore(cfg.Store.File.Dir, base)
		if err != nil {
			return fallback("file store unavailable", err)
		}
		logger.Info("file model store enabled", "dir", cfg.Store.File.Dir)
		return opened(config.StoreFile, store, nil)

	case config.StorePostgres:
		poolConfig, err := pgxpool.ParseConfig(strings.TrimSpace(cfg.Store.Postgres.DSN))
		if err != nil {
			return fallback("invalid postgres dsn", err)
		}
		if cfg.Store.Postgres.MaxConns > 0 {
			poolConfig.MaxConns = cfg.Store.Postgres.MaxConns
		}
		if cfg.Store.Postgres.MinConns > 0 {
			poolConfig.MinConns = cfg.Store.Postgres.MinConns
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			return fallback("failed to initialize postgres pool", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fallback("postgres ping failed", err)
		}
		store := modelstore.NewPostgresStore(pool, base)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return fallback("postgres schema setup failed", err)
		}
		logger.Info("postgres model store enabled")
		return opened(config.StorePostgres, store, pool.Close)

	case config.StoreValkey:
		opt, err := valkeyOptions(cfg.Store.Valkey.Addr)
		if err != nil {
			return fallback("invalid valkey configuration", err)
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			return fallback("failed to create valkey client", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			client.Close()
			return fallback("valkey ping failed", err)
		}
		logger.Info("valkey model store enabled", "addr", cfg.Store.Valkey.Addr)
		return opened(config.StoreValkey, modelstore.NewValkeyStore(client, cfg.Store.Valkey.Prefix, base), client.Close)

	case config.StoreS3:
		store, err := modelstore.NewS3Store(modelstore.S3Options{
			Endpoint:  cfg.Store.S3.Endpoint,
			AccessKey: cfg.Store.S3.AccessKey,
			SecretKey: cfg.Store.S3.SecretKey,
			Bucket:    cfg.Store.S3.Bucket,
			Region:    cfg.Store.S3.Region,
			Prefix:    cfg.Store.S3.Prefix,
		}, base)
		if err != nil {
			return fallback("s3 store unavailable", err)
		}
		logger.Info("s3 model store enabled", "bucket", cfg.Store.S3.Bucket)
		return opened(config.StoreS3, store, nil)
	}

	logger.Info("memory model store enabled, models are lost on restart")
	return opened(config.StoreMemory, modelstore.NewMemoryStore(base), nil)
}

// NewYieldConfig maps the yield section of the service config onto the domain.
func NewYieldConfig(cfg *config.Config) yield.Config {
	return yield.Config{
		DefaultCrop:       cfg.Yield.DefaultCrop,
		SplitSeed:         cfg.Yield.SplitSeed,
		TrendThresholdPct: cfg.Yield.TrendThresholdPct,
		WarningDropPct:    cfg.Yield.WarningDropPct,
		CriticalDropPct:   cfg.Yield.CriticalDropPct,
	}
}

func valkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}
