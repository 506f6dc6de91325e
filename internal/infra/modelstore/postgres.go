package modelstore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrofocus/yield-service/internal/domain/yield"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS yield_models (
		crop       TEXT PRIMARY KEY,
		payload    BYTEA NOT NULL,
		trained_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// PostgresStore keeps one row per crop in yield_models.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore constructs the store.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: componentLogger(logger, "postgres")}
}

// EnsureSchema creates the models table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

// Load implements yield.ModelStore.
func (s *PostgresStore) Load(ctx context.Context, crop string) (yield.FittedModel, bool, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `
		SELECT payload
		FROM yield_models
		WHERE crop = $1
	`, crop).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return yield.FittedModel{}, false, nil
		}
		return yield.FittedModel{}, false, err
	}
	model, err := Decode(crop, payload)
	if err != nil {
		return yield.FittedModel{}, false, err
	}
	return model, true, nil
}

// Save upserts the model row in a single statement.
func (s *PostgresStore) Save(ctx context.Context, model yield.FittedModel) error {
	payload, err := Encode(model)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO yield_models (crop, payload, trained_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (crop) DO UPDATE
		SET payload = EXCLUDED.payload, trained_at = EXCLUDED.trained_at, updated_at = now()
	`, model.Crop, payload, model.TrainedAt)
	return err
}

// List returns every stored model ordered by crop.
func (s *PostgresStore) List(ctx context.Context) ([]yield.FittedModel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT crop, payload
		FROM yield_models
		ORDER BY crop
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []yield.FittedModel{}
	for rows.Next() {
		var (
			crop    string
			payload []byte
		)
		if err := rows.Scan(&crop, &payload); err != nil {
			return nil, err
		}
		model, err := Decode(crop, payload)
		if err != nil {
			if skipUnreadable(s.logger, crop, err) {
				continue
			}
			return nil, err
		}
		out = append(out, model)
	}
	return out, rows.Err()
}

var _ yield.ModelStore = (*PostgresStore)(nil)
