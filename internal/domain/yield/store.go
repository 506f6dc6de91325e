package yield

import "context"

// ModelStore persists one model per crop. Save must replace the previous model
// atomically: a concurrent Load sees either the old or the new model, never a mix.
// Load reports (model, false, nil) when the crop has no model and a *ModelLoadError
// when a stored model cannot be decoded.
type ModelStore interface {
	Load(ctx context.Context, crop string) (FittedModel, bool, error)
	Save(ctx context.Context, model FittedModel) error
	List(ctx context.Context) ([]FittedModel, error)
}
