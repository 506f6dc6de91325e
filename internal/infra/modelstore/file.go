package modelstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agrofocus/yield-service/internal/domain/yield"
)

const (
	filePrefix = "model_"
	fileSuffix = ".agym"
)

// FileStore writes one blob per crop under a directory. Writes go through a temp
// file and a rename so readers never observe a partial model.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates dir when missing.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("model directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model directory: %w", err)
	}
	return &FileStore{dir: dir, logger: componentLogger(logger, "file")}, nil
}

func (s *FileStore) path(crop string) string {
	return filepath.Join(s.dir, filePrefix+crop+fileSuffix)
}

// Load implements yield.ModelStore.
func (s *FileStore) Load(_ context.Context, crop string) (yield.FittedModel, bool, error) {
	blob, err := os.ReadFile(s.path(crop))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return yield.FittedModel{}, false, nil
		}
		return yield.FittedModel{}, false, err
	}
	model, err := Decode(crop, blob)
	if err != nil {
		return yield.FittedModel{}, false, err
	}
	return model, true, nil
}

// Save atomically replaces the model file of model.Crop.
func (s *FileStore) Save(_ context.Context, model yield.FittedModel) error {
	blob, err := Encode(model)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, filePrefix+model.Crop+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model: %w", err)
	}
	if err := os.Rename(tmpName, s.path(model.Crop)); err != nil {
		return fmt.Errorf("replace model: %w", err)
	}
	return nil
}

// List returns the models found in the directory ordered by crop.
func (s *FileStore) List(ctx context.Context) ([]yield.FittedModel, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, err
	}
	crops := make([]string, 0, len(matches))
	for _, match := range matches {
		name := filepath.Base(match)
		crops = append(crops, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
	}
	sort.Strings(crops)
	return listModels(ctx, s, crops, s.logger)
}

var _ yield.ModelStore = (*FileStore)(nil)
