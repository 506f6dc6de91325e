package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrofocus/yield-service/internal/infra/config"
	"github.com/agrofocus/yield-service/internal/infra/modelstore"
)

func TestNewModelStoreFile(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: config.StoreFile, File: config.FileConfig{Dir: t.TempDir()}}}

	store := NewModelStore(cfg, testLogger())
	defer store.Close()
	require.Equal(t, config.StoreFile, store.Driver)
	require.IsType(t, &modelstore.FileStore{}, store.ModelStore)

	models, err := store.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, models)
}

func TestNewModelStoreFallsBackToMemory(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: config.StorePostgres, Postgres: config.PostgresConfig{DSN: "::not a dsn::"}}}

	store := NewModelStore(cfg, testLogger())
	defer store.Close()
	require.Equal(t, config.StoreMemory, store.Driver)
	require.IsType(t, &modelstore.MemoryStore{}, store.ModelStore)
}

func TestStoreCloseRunsOnce(t *testing.T) {
	calls := 0
	store := &Store{Driver: config.StoreValkey, close: func() { calls++ }}
	store.Close()
	store.Close()
	require.Equal(t, 1, calls)
}

func TestNewYieldConfig(t *testing.T) {
	cfg := &config.Config{Yield: config.YieldConfig{DefaultCrop: "soja", SplitSeed: 7, WarningDropPct: 5, CriticalDropPct: 15}}

	got := NewYieldConfig(cfg)
	require.Equal(t, "soja", got.DefaultCrop)
	require.Equal(t, uint64(7), got.SplitSeed)
	require.Equal(t, 15.0, got.CriticalDropPct)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
