package modelstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrofocus/yield-service/internal/domain/yield"
)

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(discardLogger()))
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, discardLogger())
	require.NoError(t, err)
	exerciseStore(t, store)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{"model_milho.agym", "model_soja.agym"}, names)
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, discardLogger())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model_trigo.agym"), []byte("garbage"), 0o644))

	_, ok, err := store.Load(context.Background(), "trigo")
	require.False(t, ok)
	var loadErr *yield.ModelLoadError
	require.True(t, errors.As(err, &loadErr))
}

func TestFileStoreListSkipsUnreadableModel(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, discardLogger())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleModel("milho")))
	require.NoError(t, store.Save(ctx, sampleModel("soja")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model_trigo.agym"), []byte("garbage"), 0o644))

	models, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, models, 2)
	require.Equal(t, "milho", models[0].Crop)
	require.Equal(t, "soja", models[1].Crop)
}

func TestMemoryStoreListSkipsUnreadableModel(t *testing.T) {
	store := NewMemoryStore(discardLogger())
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleModel("soja")))
	store.blobs["cafe"] = []byte("AGYM")

	models, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, models, 1)
	require.Equal(t, "soja", models[0].Crop)
}

func TestListModelsPropagatesBackendFailure(t *testing.T) {
	failing := failingStore{err: errors.New("connection refused")}

	_, err := listModels(context.Background(), failing, []string{"milho"}, discardLogger())
	require.ErrorIs(t, err, failing.err)
}

func TestFileStoreRequiresDir(t *testing.T) {
	_, err := NewFileStore(" ", discardLogger())
	require.Error(t, err)
}

func TestSanitizeEndpoint(t *testing.T) {
	require.Equal(t, "acc.r2.cloudflarestorage.com", sanitizeEndpoint("https://acc.r2.cloudflarestorage.com/bucket"))
	require.Equal(t, "localhost:9000", sanitizeEndpoint(" http://localhost:9000 "))
	require.Equal(t, "", sanitizeEndpoint(""))
}

func exerciseStore(t *testing.T, store yield.ModelStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Load(ctx, "milho")
	require.NoError(t, err)
	require.False(t, ok)

	first := sampleModel("milho")
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, sampleModel("soja")))

	replaced := sampleModel("milho")
	replaced.Coefficients.Intercept = 11.5
	require.NoError(t, store.Save(ctx, replaced))

	got, ok, err := store.Load(ctx, "milho")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 11.5, got.Coefficients.Intercept)

	models, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, models, 2)
	require.Equal(t, "milho", models[0].Crop)
	require.Equal(t, "soja", models[1].Crop)
}

type failingStore struct {
	err error
}

func (s failingStore) Load(context.Context, string) (yield.FittedModel, bool, error) {
	return yield.FittedModel{}, false, s.err
}

func (s failingStore) Save(context.Context, yield.FittedModel) error {
	return s.err
}

func (s failingStore) List(context.Context) ([]yield.FittedModel, error) {
	return nil, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
