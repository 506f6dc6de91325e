package yield

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/agrofocus/yield-service/pkg/errors"
	"github.com/agrofocus/yield-service/pkg/util"
)

// Estimator owns the fitted model of one crop and degrades to the calibration
// table while no model exists.
type Estimator struct {
	crop        string
	cfg         Config
	store       ModelStore
	calibration *Calibration
	logger      *slog.Logger
	now         func() time.Time
	newID       func() uuid.UUID

	mu    sync.RWMutex
	model *FittedModel
}

// NewEstimator builds the estimator and loads the persisted model once. Load
// failures are logged and leave the estimator on the calibration fallback.
func NewEstimator(ctx context.Context, crop string, store ModelStore, calibration *Calibration, cfg Config, logger *slog.Logger) (*Estimator, error) {
	e, err := newEstimator(crop, store, calibration, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := e.load(ctx); err != nil {
		e.logger.Warn("model store unavailable, using calibration table", "error", err)
	}
	return e, nil
}

func newEstimator(crop string, store ModelStore, calibration *Calibration, cfg Config, logger *slog.Logger) (*Estimator, error) {
	normalized, err := validateCrop(crop)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if calibration == nil {
		calibration = NewCalibration(cfg.DefaultCrop)
	}
	return &Estimator{
		crop:        normalized,
		cfg:         cfg,
		store:       store,
		calibration: calibration,
		logger:      logger.With("component", "yield.estimator", "crop", normalized),
		now:         util.NowUTC,
		newID:       uuid.New,
	}, nil
}

// load reads the persisted model. An unreadable blob counts as no model; any
// other store failure is returned so the caller can try again later.
func (e *Estimator) load(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	model, found, err := e.store.Load(ctx, e.crop)
	if err != nil {
		var loadErr *ModelLoadError
		if errors.As(err, &loadErr) {
			e.logger.Warn("persisted model unreadable, using calibration table", "error", err)
			return nil
		}
		return err
	}
	if !found {
		e.logger.Debug("no persisted model, using calibration table")
		return nil
	}
	e.mu.Lock()
	e.model = &model
	e.mu.Unlock()
	e.logger.Info("model loaded", "model_id", model.ID, "trained_at", model.TrainedAt)
	return nil
}

// Crop returns the normalized crop identifier.
func (e *Estimator) Crop() string {
	return e.crop
}

// Model returns a copy of the cached model.
func (e *Estimator) Model() (FittedModel, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.model == nil {
		return FittedModel{}, false
	}
	return *e.model, true
}

// Fit trains a new model on samples, persists it and swaps the cache.
func (e *Estimator) Fit(ctx context.Context, samples []LabeledSample) (TrainingResult, error) {
	if len(samples) < MinTrainingSamples {
		return TrainingResult{}, apperrors.Wrap(apperrors.CodeInsufficientData, "not enough training data",
			&InsufficientDataError{Got: len(samples), Required: MinTrainingSamples})
	}
	if err := validateSamples(samples); err != nil {
		return TrainingResult{}, err
	}

	train, test := splitSamples(samples, e.cfg.SplitSeed)
	std := fitStandardization(train)
	rows := make([][numFeatures]float64, len(train))
	target := make([]float64, len(train))
	for i, s := range train {
		rows[i] = std.apply(s.FeatureVector)
		target[i] = s.Yield
	}
	coef, err := solveOLS(rows, target)
	if err != nil {
		return TrainingResult{}, apperrors.Wrap(apperrors.CodeInvalidInput, "regression failed", err)
	}
	r2, rmse := scoreModel(coef, std, test)

	model := FittedModel{
		ID:              e.newID(),
		Crop:            e.crop,
		Coefficients:    coef,
		Standardization: std,
		Metrics: Metrics{
			R2:       r2,
			RMSE:     rmse,
			NSamples: len(samples),
			NTrain:   len(train),
			NTest:    len(test),
		},
		TrainedAt: e.now(),
	}
	if e.store != nil {
		if err := e.store.Save(ctx, model); err != nil {
			return TrainingResult{}, apperrors.Wrap(apperrors.CodeStoreError, "persist model failed", err)
		}
	}

	e.mu.Lock()
	e.model = &model
	e.mu.Unlock()

	e.logger.Info("model trained",
		"model_id", model.ID,
		"samples", model.Metrics.NSamples,
		"n_test", model.Metrics.NTest,
		"r2", model.Metrics.R2,
		"rmse", model.Metrics.RMSE,
	)
	return TrainingResult{
		Success:      true,
		ModelID:      model.ID,
		Crop:         model.Crop,
		Metrics:      model.Metrics,
		Coefficients: model.Coefficients,
		TrainedAt:    model.TrainedAt,
	}, nil
}

// Predict estimates yield for features. A missing model is not an error: the
// calibration table answers instead, and only a calibration miss yields method=error.
func (e *Estimator) Predict(features FeatureVector) (EstimationResult, error) {
	if err := validateFeatures("", features); err != nil {
		return EstimationResult{}, err
	}
	e.mu.RLock()
	model := e.model
	e.mu.RUnlock()
	if model == nil {
		return e.calibration.Estimate(e.crop, features), nil
	}

	estimate := predictStandardized(model.Coefficients, model.Standardization.apply(features))
	margin := ConfidenceZ * model.Metrics.RMSE
	point := util.Round2(estimate)
	metrics := model.Metrics
	// Yield cannot be negative, so the floored bound may pass a very low estimate.
	low := math.Max(0, estimate-margin)
	high := math.Max(low, estimate+margin)
	return EstimationResult{
		Method:   MethodModel,
		Crop:     e.crop,
		Estimate: &point,
		Interval: &Interval{
			Low:   util.Round2(low),
			High:  util.Round2(high),
			Level: LevelConfidence95,
		},
		Features: features,
		Metrics:  &metrics,
	}, nil
}
