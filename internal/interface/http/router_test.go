package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrofocus/yield-service/internal/domain/yield"
	"github.com/agrofocus/yield-service/internal/infra/config"
	apperrors "github.com/agrofocus/yield-service/pkg/errors"
)

func TestRouter_EstimateSuccess(t *testing.T) {
	estimate := 10.0
	svc := &stubYieldService{
		estimateFn: func(ctx context.Context, req yield.EstimateRequest) (yield.EstimationResult, error) {
			require.Equal(t, "milho", req.Crop)
			require.Equal(t, yield.FeatureVector{NDVIMean: 0.75, GDDTotal: 1800, PrecipTotal: 450}, req.Features)
			return yield.EstimationResult{Method: yield.MethodCalibration, Crop: "milho", Estimate: &estimate}, nil
		},
	}

	recorder := performRequest(http.MethodPost, "/api/v1/yield/estimate", `{"crop":"milho","ndvi_mean":0.75,"gdd_total":1800,"precip_total":450}`, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusOK, recorder.Code)

	var got yield.EstimationResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, yield.MethodCalibration, got.Method)
	require.Equal(t, 10.0, *got.Estimate)
}

func TestRouter_EstimateErrorResultIsUnprocessable(t *testing.T) {
	svc := &stubYieldService{
		estimateFn: func(ctx context.Context, req yield.EstimateRequest) (yield.EstimationResult, error) {
			return yield.EstimationResult{
				Method: yield.MethodError,
				Crop:   "milho",
				Error:  &yield.ResultError{Code: yield.CodeOutOfRange, Value: 1.5},
			}, nil
		},
	}

	recorder := performRequest(http.MethodPost, "/api/v1/yield/estimate", `{"crop":"milho","ndvi_mean":1.5,"gdd_total":1800,"precip_total":450}`, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, "error", body["method"])
	require.Nil(t, body["estimate"])
}

func TestRouter_EstimateMissingField(t *testing.T) {
	recorder := performRequest(http.MethodPost, "/api/v1/yield/estimate", `{"crop":"milho","ndvi_mean":0.7,"precip_total":450}`, newRouterUnderTest(t, &stubYieldService{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
	require.Equal(t, "gdd_total is required", errBody["error"]["message"])
}

func TestRouter_TrainInsufficientData(t *testing.T) {
	svc := &stubYieldService{
		trainFn: func(ctx context.Context, req yield.TrainRequest) (yield.TrainingResult, error) {
			require.Len(t, req.Samples, 1)
			require.Equal(t, 9.0, req.Samples[0].Yield)
			return yield.TrainingResult{}, apperrors.Wrap(apperrors.CodeInsufficientData, "not enough samples", &yield.InsufficientDataError{Got: 1, Required: 5})
		},
	}

	recorder := performRequest(http.MethodPost, "/api/v1/yield/train", `{"crop":"milho","samples":[{"ndvi_mean":0.7,"gdd_total":1500,"precip_total":400,"yield":9}]}`, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "insufficient_data", errBody["error"]["code"])
	require.Contains(t, errBody["error"]["message"], "at least 5 samples")
}

func TestRouter_TrainMissingLabel(t *testing.T) {
	recorder := performRequest(http.MethodPost, "/api/v1/yield/train", `{"crop":"milho","samples":[{"ndvi_mean":0.7,"gdd_total":1500,"precip_total":400}]}`, newRouterUnderTest(t, &stubYieldService{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "samples[0].produtividade is required", errBody["error"]["message"])
}

func TestRouter_InvalidJSON(t *testing.T) {
	recorder := performRequest(http.MethodPost, "/api/v1/yield/compare", `{"current":"high"}`, newRouterUnderTest(t, &stubYieldService{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
	require.NotEmpty(t, errBody["error"]["message"])
}

func TestRouter_StoreFailureIsRetried(t *testing.T) {
	calls := 0
	svc := &stubYieldService{
		trainFn: func(ctx context.Context, req yield.TrainRequest) (yield.TrainingResult, error) {
			calls++
			if calls == 1 {
				return yield.TrainingResult{}, apperrors.Wrap(apperrors.CodeStoreError, "save model failed", errors.New("connection reset"))
			}
			return yield.TrainingResult{Success: true, Crop: req.Crop}, nil
		},
	}

	recorder := performRequest(http.MethodPost, "/api/v1/yield/train", `{"crop":"soja","samples":[]}`, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, 2, calls)
}

func TestRouter_StoreFailureExhaustsRetries(t *testing.T) {
	calls := 0
	svc := &stubYieldService{
		modelsFn: func(ctx context.Context) ([]yield.ModelSummary, error) {
			calls++
			return nil, apperrors.Wrap(apperrors.CodeStoreError, "list models failed", errors.New("timeout"))
		},
	}

	recorder := performRequest(http.MethodGet, "/api/v1/yield/models", "", newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	require.Equal(t, 1, calls)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "store_unavailable", errBody["error"]["code"])
}

func TestRouter_AccumulateGDD(t *testing.T) {
	recorder := performRequest(http.MethodPost, "/api/v1/gdd/accumulate", `{"crop":"milho","observed":[{"date":"2024-10-01","tmax":30,"tmin":20}]}`, newRouterUnderTest(t, &stubYieldService{}))
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, 15.0, body["total"])

	recorder = performRequest(http.MethodPost, "/api/v1/gdd/accumulate", `{"crop":"sorgo","observed":[]}`, newRouterUnderTest(t, &stubYieldService{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_Healthz(t *testing.T) {
	recorder := performRequest(http.MethodGet, "/healthz", "", newRouterUnderTest(t, &stubYieldService{}))
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}
	server := NewRouter(cfg, NewHandler(&stubYieldService{}, newTestLogger()))

	require.Equal(t, http.StatusOK, performRequest(http.MethodGet, "/api/v1/yield/crops", "", server).Code)
	recorder := performRequest(http.MethodGet, "/api/v1/yield/crops", "", server)
	require.Equal(t, http.StatusTooManyRequests, recorder.Code)
	require.Equal(t, "rate_limit_exceeded", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
}

func performRequest(method, path, body string, server *http.Server) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			Retry: config.RetryConfig{
				Enabled:     true,
				MaxAttempts: 2,
				BaseBackoff: time.Millisecond,
				Exclude:     []string{"/api/v1/yield/models"},
			},
		},
	}
}

func newRouterUnderTest(t *testing.T, svc yield.Service) *http.Server {
	t.Helper()
	return NewRouter(testConfig(), NewHandler(svc, newTestLogger()))
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type stubYieldService struct {
	trainFn    func(ctx context.Context, req yield.TrainRequest) (yield.TrainingResult, error)
	estimateFn func(ctx context.Context, req yield.EstimateRequest) (yield.EstimationResult, error)
	modelsFn   func(ctx context.Context) ([]yield.ModelSummary, error)
}

func (s *stubYieldService) Train(ctx context.Context, req yield.TrainRequest) (yield.TrainingResult, error) {
	if s.trainFn != nil {
		return s.trainFn(ctx, req)
	}
	return yield.TrainingResult{Success: true, Crop: req.Crop}, nil
}

func (s *stubYieldService) Estimate(ctx context.Context, req yield.EstimateRequest) (yield.EstimationResult, error) {
	if s.estimateFn != nil {
		return s.estimateFn(ctx, req)
	}
	return yield.EstimationResult{Method: yield.MethodCalibration, Crop: req.Crop}, nil
}

func (s *stubYieldService) Assess(ctx context.Context, req yield.AssessRequest) (yield.Assessment, error) {
	return yield.Assessment{}, nil
}

func (s *stubYieldService) Trend(ctx context.Context, req yield.TrendRequest) (yield.TrendResult, error) {
	return yield.AnalyzeTrend(req.History, 5), nil
}

func (s *stubYieldService) Compare(ctx context.Context, req yield.CompareRequest) (yield.ComparisonResult, error) {
	return yield.Compare(req.Current, req.Baseline, yield.DefaultAlertThresholds()), nil
}

func (s *stubYieldService) Crops(ctx context.Context) ([]yield.CropInfo, error) {
	return []yield.CropInfo{{Name: "milho", Default: true}}, nil
}

func (s *stubYieldService) Models(ctx context.Context) ([]yield.ModelSummary, error) {
	if s.modelsFn != nil {
		return s.modelsFn(ctx)
	}
	return []yield.ModelSummary{}, nil
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
