package modelstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/valkey-io/valkey-go"

	"github.com/agrofocus/yield-service/internal/domain/yield"
)

// ValkeyStore keeps encoded models as plain string values plus a crop index set.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	logger *slog.Logger
}

// NewValkeyStore constructs a store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string, logger *slog.Logger) *ValkeyStore {
	if prefix == "" {
		prefix = "yield"
	}
	return &ValkeyStore{client: client, prefix: prefix, logger: componentLogger(logger, "valkey")}
}

// Load implements yield.ModelStore.
func (s *ValkeyStore) Load(ctx context.Context, crop string) (yield.FittedModel, bool, error) {
	blob, err := s.client.Do(ctx, s.client.B().Get().Key(s.modelKey(crop)).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
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

// Save writes the model and registers its crop in the index.
func (s *ValkeyStore) Save(ctx context.Context, model yield.FittedModel) error {
	blob, err := Encode(model)
	if err != nil {
		return err
	}
	cmds := valkey.Commands{
		s.client.B().Set().Key(s.modelKey(model.Crop)).Value(valkey.BinaryString(blob)).Build(),
		s.client.B().Sadd().Key(s.cropsKey()).Member(model.Crop).Build(),
	}
	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return err
		}
	}
	return nil
}

// List returns every indexed model ordered by crop.
func (s *ValkeyStore) List(ctx context.Context) ([]yield.FittedModel, error) {
	crops, err := s.client.Do(ctx, s.client.B().Smembers().Key(s.cropsKey()).Build()).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return []yield.FittedModel{}, nil
		}
		return nil, err
	}
	sort.Strings(crops)
	return listModels(ctx, s, crops, s.logger)
}

func (s *ValkeyStore) modelKey(crop string) string {
	return fmt.Sprintf("%s:model:%s", s.prefix, crop)
}

func (s *ValkeyStore) cropsKey() string {
	return fmt.Sprintf("%s:crops", s.prefix)
}

var _ yield.ModelStore = (*ValkeyStore)(nil)
