package yield

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/singleflight"

	"github.com/agrofocus/yield-service/internal/domain/gdd"
	apperrors "github.com/agrofocus/yield-service/pkg/errors"
)

// Service exposes yield estimation to the transport and CLI layers.
type Service interface {
	Train(ctx context.Context, req TrainRequest) (TrainingResult, error)
	Estimate(ctx context.Context, req EstimateRequest) (EstimationResult, error)
	Assess(ctx context.Context, req AssessRequest) (Assessment, error)
	Trend(ctx context.Context, req TrendRequest) (TrendResult, error)
	Compare(ctx context.Context, req CompareRequest) (ComparisonResult, error)
	Crops(ctx context.Context) ([]CropInfo, error)
	Models(ctx context.Context) ([]ModelSummary, error)
}

// TrainRequest carries a batch of historical samples for one crop.
type TrainRequest struct {
	Crop    string          `json:"crop"`
	Samples []LabeledSample `json:"samples"`
}

// EstimateRequest asks for a single prediction.
type EstimateRequest struct {
	Crop     string        `json:"crop"`
	Features FeatureVector `json:"features"`
}

// AssessRequest is an estimate plus the field's yield history.
type AssessRequest struct {
	Crop     string        `json:"crop"`
	Features FeatureVector `json:"features"`
	History  []YearYield   `json:"history"`
}

// TrendRequest carries a yield history.
type TrendRequest struct {
	History []YearYield `json:"history"`
}

// CompareRequest compares a current estimate with a baseline.
type CompareRequest struct {
	Current  float64 `json:"current"`
	Baseline float64 `json:"baseline"`
}

type service struct {
	cfg         Config
	store       ModelStore
	calibration *Calibration
	logger      *slog.Logger

	mu         sync.RWMutex
	estimators map[string]*Estimator
	group      singleflight.Group
}

// NewService wires up the yield domain. Estimators are built lazily per crop and
// cached for the lifetime of the service once the store has answered, so models
// trained by another instance become visible only after a restart.
func NewService(cfg Config, store ModelStore, logger *slog.Logger) Service {
	cfg = cfg.withDefaults()
	return &service{
		cfg:         cfg,
		store:       store,
		calibration: NewCalibration(cfg.DefaultCrop),
		logger:      logger.With("component", "yield.service"),
		estimators:  make(map[string]*Estimator),
	}
}

func (s *service) estimator(ctx context.Context, crop string) (*Estimator, error) {
	normalized, err := validateCrop(crop)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	est, ok := s.estimators[normalized]
	s.mu.RUnlock()
	if ok {
		return est, nil
	}

	// The load is shared by every waiter, so it must not die with the first caller.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(normalized, func() (any, error) {
		s.mu.RLock()
		cached, ok := s.estimators[normalized]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}
		built, err := newEstimator(normalized, s.store, s.calibration, s.cfg, s.logger)
		if err != nil {
			return nil, err
		}
		if err := built.load(loadCtx); err != nil {
			// Served from calibration for now and left uncached so the next call reloads.
			s.logger.Warn("model store unavailable, estimator not cached", "crop", normalized, "error", err)
			return built, nil
		}
		s.mu.Lock()
		s.estimators[normalized] = built
		s.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Estimator), nil
}

func (s *service) Train(ctx context.Context, req TrainRequest) (TrainingResult, error) {
	est, err := s.estimator(ctx, req.Crop)
	if err != nil {
		return TrainingResult{}, err
	}
	result, err := est.Fit(ctx, req.Samples)
	if err != nil {
		return TrainingResult{}, err
	}
	s.mu.Lock()
	if _, ok := s.estimators[est.Crop()]; !ok {
		s.estimators[est.Crop()] = est
	}
	s.mu.Unlock()
	return result, nil
}

func (s *service) Estimate(ctx context.Context, req EstimateRequest) (EstimationResult, error) {
	est, err := s.estimator(ctx, req.Crop)
	if err != nil {
		return EstimationResult{}, err
	}
	result, err := est.Predict(req.Features)
	if err != nil {
		return EstimationResult{}, err
	}
	if result.Method == MethodError {
		s.logger.Warn("estimate unavailable", "crop", result.Crop, "ndvi_mean", req.Features.NDVIMean, "reason", result.Error.Message)
	}
	return result, nil
}

func (s *service) Assess(ctx context.Context, req AssessRequest) (Assessment, error) {
	if err := validateHistory(req.History); err != nil {
		return Assessment{}, err
	}
	estimation, err := s.Estimate(ctx, EstimateRequest{Crop: req.Crop, Features: req.Features})
	if err != nil {
		return Assessment{}, err
	}
	out := Assessment{Estimation: estimation}
	if len(req.History) == 0 {
		return out, nil
	}
	trend := AnalyzeTrend(req.History, s.cfg.TrendThresholdPct)
	out.Trend = &trend

	current, ok := estimation.Value()
	if !ok {
		return out, nil
	}
	yields := make([]float64, len(req.History))
	for i, p := range req.History {
		yields[i] = p.Yield
	}
	baseline, err := stats.Mean(yields)
	if err != nil {
		return out, nil
	}
	comparison := Compare(current, baseline, s.cfg.alertThresholds())
	out.Comparison = &comparison
	return out, nil
}

func (s *service) Trend(_ context.Context, req TrendRequest) (TrendResult, error) {
	if err := validateHistory(req.History); err != nil {
		return TrendResult{}, err
	}
	return AnalyzeTrend(req.History, s.cfg.TrendThresholdPct), nil
}

func (s *service) Compare(_ context.Context, req CompareRequest) (ComparisonResult, error) {
	for field, v := range map[string]float64{"current": req.Current, "baseline": req.Baseline} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ComparisonResult{}, invalidInput(field, "must be a finite number")
		}
	}
	return Compare(req.Current, req.Baseline, s.cfg.alertThresholds()), nil
}

func (s *service) Crops(ctx context.Context) ([]CropInfo, error) {
	names := make(map[string]struct{})
	for _, crop := range s.calibration.Crops() {
		names[crop] = struct{}{}
	}
	for _, crop := range gdd.Crops() {
		names[crop] = struct{}{}
	}
	trained := make(map[string]bool)
	if s.store != nil {
		models, err := s.store.List(ctx)
		if err != nil {
			s.logger.Warn("list models failed, reporting crops without model status", "error", err)
		}
		for _, m := range models {
			trained[m.Crop] = true
			names[m.Crop] = struct{}{}
		}
	}

	out := make([]CropInfo, 0, len(names))
	for name := range names {
		info := CropInfo{
			Name:         name,
			Default:      name == s.calibration.DefaultCrop(),
			Stages:       gdd.Stages(name),
			ModelTrained: trained[name],
		}
		if table, own := s.calibration.Table(name); own {
			info.Bands = append([]Band(nil), table.Bands...)
		}
		if tbase, ok := gdd.BaseTemperature(name); ok {
			info.BaseTemperature = &tbase
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *service) Models(ctx context.Context) ([]ModelSummary, error) {
	if s.store == nil {
		return []ModelSummary{}, nil
	}
	models, err := s.store.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreError, "list models failed", err)
	}
	out := make([]ModelSummary, 0, len(models))
	for _, m := range models {
		out = append(out, ModelSummary{ID: m.ID, Crop: m.Crop, Metrics: m.Metrics, TrainedAt: m.TrainedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Crop < out[j].Crop })
	return out, nil
}

func validateHistory(history []YearYield) error {
	for i, p := range history {
		if math.IsNaN(p.Yield) || math.IsInf(p.Yield, 0) {
			return invalidInput(fmt.Sprintf("history[%d].yield", i), "must be a finite number")
		}
	}
	return nil
}
