package yield

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/agrofocus/yield-service/pkg/errors"
)

func TestServiceLoadsEachCropOnce(t *testing.T) {
	store := newFakeStore()
	svc := NewService(Config{}, store, testLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Estimate(ctx, EstimateRequest{Crop: "Soja", Features: FeatureVector{NDVIMean: 0.7, GDDTotal: 1500, PrecipTotal: 400}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), store.loads.Load())
}

func TestServiceReloadsAfterStoreOutage(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	f := FeatureVector{NDVIMean: 0.7, GDDTotal: 1500, PrecipTotal: 400}
	_, err := NewService(Config{}, store, testLogger()).Train(ctx, TrainRequest{Crop: "milho", Samples: GenerateSamples(40, 3)})
	require.NoError(t, err)

	svc := NewService(Config{}, store, testLogger())
	store.loadErr = errors.New("connection refused")
	during, err := svc.Estimate(ctx, EstimateRequest{Crop: "milho", Features: f})
	require.NoError(t, err)
	require.Equal(t, MethodCalibration, during.Method)

	store.loadErr = nil
	after, err := svc.Estimate(ctx, EstimateRequest{Crop: "milho", Features: f})
	require.NoError(t, err)
	require.Equal(t, MethodModel, after.Method)

	_, err = svc.Estimate(ctx, EstimateRequest{Crop: "milho", Features: f})
	require.NoError(t, err)
	require.Equal(t, int32(3), store.loads.Load())
}

func TestServiceCachesUnreadableModelAsMissing(t *testing.T) {
	store := newFakeStore()
	store.loadErr = &ModelLoadError{Crop: "soja", Err: errors.New("checksum mismatch")}
	svc := NewService(Config{}, store, testLogger())
	ctx := context.Background()
	f := FeatureVector{NDVIMean: 0.7, GDDTotal: 1500, PrecipTotal: 400}

	for i := 0; i < 2; i++ {
		got, err := svc.Estimate(ctx, EstimateRequest{Crop: "soja", Features: f})
		require.NoError(t, err)
		require.Equal(t, MethodCalibration, got.Method)
	}
	require.Equal(t, int32(1), store.loads.Load())
}

func TestServiceLoadSurvivesCancelledCaller(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	_, err := NewService(Config{}, store, testLogger()).Train(ctx, TrainRequest{Crop: "milho", Samples: GenerateSamples(40, 3)})
	require.NoError(t, err)
	store.respectCtx = true

	svc := NewService(Config{}, store, testLogger())
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	got, err := svc.Estimate(cancelled, EstimateRequest{Crop: "milho", Features: FeatureVector{NDVIMean: 0.7, GDDTotal: 1500, PrecipTotal: 400}})
	require.NoError(t, err)
	require.Equal(t, MethodModel, got.Method)
}

func TestServiceTrainThenEstimate(t *testing.T) {
	svc := NewService(Config{}, newFakeStore(), testLogger())
	ctx := context.Background()
	f := FeatureVector{NDVIMean: 0.7, GDDTotal: 1500, PrecipTotal: 400}

	before, err := svc.Estimate(ctx, EstimateRequest{Crop: "milho", Features: f})
	require.NoError(t, err)
	require.Equal(t, MethodCalibration, before.Method)

	trained, err := svc.Train(ctx, TrainRequest{Crop: "milho", Samples: GenerateSamples(40, 3)})
	require.NoError(t, err)
	require.True(t, trained.Success)
	require.Equal(t, "milho", trained.Crop)

	after, err := svc.Estimate(ctx, EstimateRequest{Crop: "MILHO", Features: f})
	require.NoError(t, err)
	require.Equal(t, MethodModel, after.Method)
	require.NotNil(t, after.Metrics)

	models, err := svc.Models(ctx)
	require.NoError(t, err)
	require.Len(t, models, 1)
	require.Equal(t, trained.ModelID, models[0].ID)
}

func TestServiceEstimateOutOfRangeIsAResult(t *testing.T) {
	svc := NewService(Config{}, newFakeStore(), testLogger())

	got, err := svc.Estimate(context.Background(), EstimateRequest{Crop: "milho", Features: FeatureVector{NDVIMean: 1.5}})
	require.NoError(t, err)
	require.Equal(t, MethodError, got.Method)
	require.Nil(t, got.Estimate)
}

func TestServiceEstimateRequiresCrop(t *testing.T) {
	svc := NewService(Config{}, newFakeStore(), testLogger())

	_, err := svc.Estimate(context.Background(), EstimateRequest{Features: FeatureVector{NDVIMean: 0.5}})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestServiceAssess(t *testing.T) {
	svc := NewService(Config{}, newFakeStore(), testLogger())
	ctx := context.Background()
	history := []YearYield{{2020, 12}, {2021, 13}, {2022, 14}}

	got, err := svc.Assess(ctx, AssessRequest{Crop: "milho", Features: FeatureVector{NDVIMean: 0.75}, History: history})
	require.NoError(t, err)
	require.Equal(t, MethodCalibration, got.Estimation.Method)
	require.NotNil(t, got.Trend)
	require.Equal(t, DirectionRising, got.Trend.Direction)
	require.NotNil(t, got.Comparison)
	require.Equal(t, 13.0, got.Comparison.HistoricalMean)
	require.Equal(t, StatusBelow, got.Comparison.Status)
	require.Len(t, got.Comparison.Alerts, 1)
	require.Equal(t, SeverityCritical, got.Comparison.Alerts[0].Severity)

	miss, err := svc.Assess(ctx, AssessRequest{Crop: "milho", Features: FeatureVector{NDVIMean: 1.5}, History: history})
	require.NoError(t, err)
	require.Equal(t, MethodError, miss.Estimation.Method)
	require.NotNil(t, miss.Trend)
	require.Nil(t, miss.Comparison)

	bare, err := svc.Assess(ctx, AssessRequest{Crop: "milho", Features: FeatureVector{NDVIMean: 0.75}})
	require.NoError(t, err)
	require.Nil(t, bare.Trend)
	require.Nil(t, bare.Comparison)
}

func TestServiceCompareRejectsNonFinite(t *testing.T) {
	svc := NewService(Config{}, newFakeStore(), testLogger())
	_, err := svc.Compare(context.Background(), CompareRequest{Current: math.Inf(1), Baseline: 10})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	got, err := svc.Compare(context.Background(), CompareRequest{Current: 8, Baseline: 10})
	require.NoError(t, err)
	require.Equal(t, SeverityWarning, got.Alerts[0].Severity)
}

func TestServiceCrops(t *testing.T) {
	store := newFakeStore()
	svc := NewService(Config{}, store, testLogger())
	ctx := context.Background()

	_, err := svc.Train(ctx, TrainRequest{Crop: "sorgo", Samples: linearSamples(6)})
	require.NoError(t, err)

	crops, err := svc.Crops(ctx)
	require.NoError(t, err)
	byName := make(map[string]CropInfo, len(crops))
	for _, c := range crops {
		byName[c.Name] = c
	}
	require.Len(t, crops, 9)
	require.True(t, byName["milho"].Default)
	require.Len(t, byName["milho"].Bands, 4)
	require.NotNil(t, byName["milho"].BaseTemperature)
	require.Empty(t, byName["cana"].Bands)
	require.NotEmpty(t, byName["cana"].Stages)
	require.True(t, byName["sorgo"].ModelTrained)
	require.Nil(t, byName["sorgo"].BaseTemperature)
	require.Equal(t, "algodao", crops[0].Name)
}
