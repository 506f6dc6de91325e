package modelstore

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/agrofocus/yield-service/internal/domain/yield"
)

// MemoryStore keeps encoded models in process memory for tests and local dev.
type MemoryStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	logger *slog.Logger
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		blobs:  make(map[string][]byte),
		logger: componentLogger(logger, "memory"),
	}
}

// Load implements yield.ModelStore.
func (s *MemoryStore) Load(_ context.Context, crop string) (yield.FittedModel, bool, error) {
	s.mu.RLock()
	blob, ok := s.blobs[crop]
	s.mu.RUnlock()
	if !ok {
		return yield.FittedModel{}, false, nil
	}
	model, err := Decode(crop, blob)
	if err != nil {
		return yield.FittedModel{}, false, err
	}
	return model, true, nil
}

// Save replaces the model of model.Crop.
func (s *MemoryStore) Save(_ context.Context, model yield.FittedModel) error {
	blob, err := Encode(model)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.blobs[model.Crop] = blob
	s.mu.Unlock()
	return nil
}

// List returns every stored model ordered by crop.
func (s *MemoryStore) List(ctx context.Context) ([]yield.FittedModel, error) {
	s.mu.RLock()
	crops := make([]string, 0, len(s.blobs))
	for crop := range s.blobs {
		crops = append(crops, crop)
	}
	s.mu.RUnlock()
	sort.Strings(crops)
	return listModels(ctx, s, crops, s.logger)
}

var _ yield.ModelStore = (*MemoryStore)(nil)

func componentLogger(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", "modelstore."+name)
}

// listModels loads each crop. Models that vanished in between are dropped and
// unreadable ones are logged and skipped, so one bad blob never hides the rest.
func listModels(ctx context.Context, store yield.ModelStore, crops []string, logger *slog.Logger) ([]yield.FittedModel, error) {
	out := make([]yield.FittedModel, 0, len(crops))
	for _, crop := range crops {
		model, ok, err := store.Load(ctx, crop)
		if err != nil {
			if skipUnreadable(logger, crop, err) {
				continue
			}
			return nil, err
		}
		if ok {
			out = append(out, model)
		}
	}
	return out, nil
}

func skipUnreadable(logger *slog.Logger, crop string, err error) bool {
	var loadErr *yield.ModelLoadError
	if !errors.As(err, &loadErr) {
		return false
	}
	logger.Warn("skipping unreadable model", "crop", crop, "error", err)
	return true
}
