package yield

import (
	"time"

	"github.com/google/uuid"

	"github.com/agrofocus/yield-service/internal/domain/gdd"
)

// FeatureVector is the agronomic input of a single prediction.
type FeatureVector struct {
	NDVIMean    float64 `json:"ndvi_mean"`
	GDDTotal    float64 `json:"gdd_total"`
	PrecipTotal float64 `json:"precip_total"`
}

func (f FeatureVector) values() [numFeatures]float64 {
	return [numFeatures]float64{f.NDVIMean, f.GDDTotal, f.PrecipTotal}
}

// LabeledSample pairs a feature vector with the observed yield.
type LabeledSample struct {
	FeatureVector
	Yield float64 `json:"produtividade"`
}

// Coefficients are the raw weights of the standardized linear model.
type Coefficients struct {
	Intercept float64 `json:"intercept"`
	NDVI      float64 `json:"ndvi_coef"`
	GDD       float64 `json:"gdd_coef"`
	Precip    float64 `json:"precip_coef"`
}

func (c Coefficients) weights() [numFeatures]float64 {
	return [numFeatures]float64{c.NDVI, c.GDD, c.Precip}
}

// Standardization holds the per-feature mean and scale learned from the training split.
type Standardization struct {
	Mean  [numFeatures]float64 `json:"mean"`
	Scale [numFeatures]float64 `json:"scale"`
}

// Metrics describe the fit quality measured on the test split.
type Metrics struct {
	R2       float64 `json:"r2"`
	RMSE     float64 `json:"rmse"`
	NSamples int     `json:"n_samples"`
	NTrain   int     `json:"n_train"`
	NTest    int     `json:"n_test"`
}

// FittedModel is the single current model of a crop.
type FittedModel struct {
	ID              uuid.UUID       `json:"id"`
	Crop            string          `json:"crop"`
	Coefficients    Coefficients    `json:"coefficients"`
	Standardization Standardization `json:"standardization"`
	Metrics         Metrics         `json:"metrics"`
	TrainedAt       time.Time       `json:"trained_at"`
}

// Method discriminates how an estimate was produced.
type Method string

const (
	MethodModel       Method = "model"
	MethodCalibration Method = "calibration"
	MethodError       Method = "error"
)

const (
	LevelConfidence95 = "95%"
	LevelEstimated    = "estimated"
)

// Interval is either a statistical (95%) or heuristic (estimated) yield range.
type Interval struct {
	Low   float64 `json:"min"`
	High  float64 `json:"max"`
	Level string  `json:"level"`
}

// BandMatch reports the calibration band used for a fallback estimate.
type BandMatch struct {
	TableCrop string  `json:"table_crop"`
	Label     string  `json:"label"`
	Min       float64 `json:"ndvi_min"`
	Max       float64 `json:"ndvi_max"`
}

// ResultError is the diagnostic attached to a method=error result.
type ResultError struct {
	Code         string  `json:"code"`
	Message      string  `json:"message"`
	Value        float64 `json:"value"`
	CheckedBands []Band  `json:"checked_bands,omitempty"`
}

// EstimationResult is returned by every prediction. Error results carry no estimate.
type EstimationResult struct {
	Method   Method        `json:"method"`
	Crop     string        `json:"crop"`
	Estimate *float64      `json:"estimate"`
	Interval *Interval     `json:"interval,omitempty"`
	Features FeatureVector `json:"features"`
	Metrics  *Metrics      `json:"model_metrics,omitempty"`
	Band     *BandMatch    `json:"band,omitempty"`
	Note     string        `json:"note,omitempty"`
	Error    *ResultError  `json:"error,omitempty"`
}

// Value returns the point estimate and whether it is usable.
func (r EstimationResult) Value() (float64, bool) {
	if r.Method == MethodError || r.Estimate == nil {
		return 0, false
	}
	return *r.Estimate, true
}

// TrainingResult is returned by a successful fit.
type TrainingResult struct {
	Success      bool         `json:"success"`
	ModelID      uuid.UUID    `json:"model_id"`
	Crop         string       `json:"crop"`
	Metrics      Metrics      `json:"metrics"`
	Coefficients Coefficients `json:"coefficients"`
	TrainedAt    time.Time    `json:"trained_at"`
}

// YearYield is one point of a yield history.
type YearYield struct {
	Year  int     `json:"year"`
	Yield float64 `json:"yield"`
}

// Direction classifies a yield trend.
type Direction string

const (
	DirectionRising       Direction = "rising"
	DirectionFalling      Direction = "falling"
	DirectionStable       Direction = "stable"
	DirectionInsufficient Direction = "insufficient"
)

// TrendResult is computed from a caller supplied history.
type TrendResult struct {
	Direction    Direction `json:"direction"`
	VariationPct float64   `json:"variation_pct"`
	MeanYield    float64   `json:"mean_yield"`
	LatestYield  float64   `json:"latest_yield"`
	Years        []int     `json:"years"`
	Yields       []float64 `json:"yields"`
	Message      string    `json:"message,omitempty"`
}

// Status positions a current estimate against its baseline.
type Status string

const (
	StatusAbove Status = "above"
	StatusBelow Status = "below"
	StatusEqual Status = "equal"
)

// Severity of a comparison alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Alert is raised when an estimate falls well below the historical mean.
type Alert struct {
	Severity        Severity `json:"severity"`
	Message         string   `json:"message"`
	SuggestedAction string   `json:"suggested_action"`
}

// ComparisonResult is the outcome of comparing an estimate with a baseline.
type ComparisonResult struct {
	Current        float64 `json:"current"`
	HistoricalMean float64 `json:"historical_mean"`
	AbsoluteDiff   float64 `json:"absolute_diff"`
	PctDiff        float64 `json:"pct_diff"`
	Status         Status  `json:"status"`
	Alerts         []Alert `json:"alerts"`
}

// Assessment bundles the estimate of a field with its historical context.
type Assessment struct {
	Estimation EstimationResult  `json:"estimation"`
	Trend      *TrendResult      `json:"trend,omitempty"`
	Comparison *ComparisonResult `json:"comparison,omitempty"`
}

// ModelSummary describes a persisted model without its weights.
type ModelSummary struct {
	ID        uuid.UUID `json:"id"`
	Crop      string    `json:"crop"`
	Metrics   Metrics   `json:"metrics"`
	TrainedAt time.Time `json:"trained_at"`
}

// CropInfo is one entry of the supported crop catalog.
type CropInfo struct {
	Name            string      `json:"name"`
	Default         bool        `json:"default"`
	Bands           []Band      `json:"bands,omitempty"`
	BaseTemperature *float64    `json:"base_temperature,omitempty"`
	Stages          []gdd.Stage `json:"stages,omitempty"`
	ModelTrained    bool        `json:"model_trained"`
}
