package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrofocus/yield-service/internal/domain/gdd"
	"github.com/agrofocus/yield-service/internal/domain/yield"
	apperrors "github.com/agrofocus/yield-service/pkg/errors"
)

// Handler wires the HTTP transport to the yield domain.
type Handler struct {
	yieldSvc yield.Service
	logger   *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(yieldSvc yield.Service, logger *slog.Logger) *Handler {
	return &Handler{
		yieldSvc: yieldSvc,
		logger:   logger.With("component", "http.handler"),
	}
}

type featuresPayload struct {
	NDVIMean    *float64 `json:"ndvi_mean"`
	GDDTotal    *float64 `json:"gdd_total"`
	PrecipTotal *float64 `json:"precip_total"`
}

func (p featuresPayload) toDomain(prefix string) (yield.FeatureVector, error) {
	names := [...]string{"ndvi_mean", "gdd_total", "precip_total"}
	for i, v := range []*float64{p.NDVIMean, p.GDDTotal, p.PrecipTotal} {
		if v == nil {
			return yield.FeatureVector{}, fmt.Errorf("%s%s is required", prefix, names[i])
		}
	}
	return yield.FeatureVector{NDVIMean: *p.NDVIMean, GDDTotal: *p.GDDTotal, PrecipTotal: *p.PrecipTotal}, nil
}

type samplePayload struct {
	featuresPayload
	Produtividade *float64 `json:"produtividade"`
	Yield         *float64 `json:"yield"`
}

type trainPayload struct {
	Crop    string          `json:"crop"`
	Samples []samplePayload `json:"samples"`
}

type estimatePayload struct {
	Crop string `json:"crop"`
	featuresPayload
}

type assessPayload struct {
	Crop string `json:"crop"`
	featuresPayload
	History []yield.YearYield `json:"history"`
}

type trendPayload struct {
	History []yield.YearYield `json:"history"`
}

type comparePayload struct {
	Current  *float64 `json:"current"`
	Baseline *float64 `json:"baseline"`
}

type accumulatePayload struct {
	Crop     string                 `json:"crop"`
	Observed []gdd.DailyTemperature `json:"observed"`
	Forecast []gdd.DailyTemperature `json:"forecast"`
}

// Train fits and persists a model for one crop.
func (h *Handler) Train(c *gin.Context) {
	var req trainPayload
	if !bindJSON(c, &req) {
		return
	}
	samples := make([]yield.LabeledSample, 0, len(req.Samples))
	for i, s := range req.Samples {
		prefix := fmt.Sprintf("samples[%d].", i)
		features, err := s.toDomain(prefix)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", err.Error(), err))
			return
		}
		label := s.Produtividade
		if label == nil {
			label = s.Yield
		}
		if label == nil {
			err := fmt.Errorf("%sprodutividade is required", prefix)
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", err.Error(), err))
			return
		}
		samples = append(samples, yield.LabeledSample{FeatureVector: features, Yield: *label})
	}

	resp, err := h.yieldSvc.Train(c.Request.Context(), yield.TrainRequest{Crop: req.Crop, Samples: samples})
	if err != nil {
		abortWithError(c, fromDomainError(err, "train_failed"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Estimate returns a model or calibration estimate. Results without an estimate
// are returned with 422 so clients can read the checked bands.
func (h *Handler) Estimate(c *gin.Context) {
	var req estimatePayload
	if !bindJSON(c, &req) {
		return
	}
	features, err := req.toDomain("")
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", err.Error(), err))
		return
	}

	resp, err := h.yieldSvc.Estimate(c.Request.Context(), yield.EstimateRequest{Crop: req.Crop, Features: features})
	if err != nil {
		abortWithError(c, fromDomainError(err, "estimate_failed"))
		return
	}
	status := http.StatusOK
	if resp.Method == yield.MethodError {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, resp)
}

// Assess combines an estimate with the trend and comparison of the field history.
func (h *Handler) Assess(c *gin.Context) {
	var req assessPayload
	if !bindJSON(c, &req) {
		return
	}
	features, err := req.toDomain("")
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", err.Error(), err))
		return
	}

	resp, err := h.yieldSvc.Assess(c.Request.Context(), yield.AssessRequest{Crop: req.Crop, Features: features, History: req.History})
	if err != nil {
		abortWithError(c, fromDomainError(err, "assess_failed"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Trend classifies a yield history.
func (h *Handler) Trend(c *gin.Context) {
	var req trendPayload
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.yieldSvc.Trend(c.Request.Context(), yield.TrendRequest{History: req.History})
	if err != nil {
		abortWithError(c, fromDomainError(err, "trend_failed"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Compare positions an estimate against a baseline.
func (h *Handler) Compare(c *gin.Context) {
	var req comparePayload
	if !bindJSON(c, &req) {
		return
	}
	if req.Current == nil || req.Baseline == nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "current and baseline are required", nil))
		return
	}
	resp, err := h.yieldSvc.Compare(c.Request.Context(), yield.CompareRequest{Current: *req.Current, Baseline: *req.Baseline})
	if err != nil {
		abortWithError(c, fromDomainError(err, "compare_failed"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Crops lists the supported crop catalog.
func (h *Handler) Crops(c *gin.Context) {
	crops, err := h.yieldSvc.Crops(c.Request.Context())
	if err != nil {
		abortWithError(c, fromDomainError(err, "crops_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"crops": crops})
}

// Models lists persisted models.
func (h *Handler) Models(c *gin.Context) {
	models, err := h.yieldSvc.Models(c.Request.Context())
	if err != nil {
		abortWithError(c, fromDomainError(err, "models_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

// AccumulateGDD sums degree days and resolves phenological stages.
func (h *Handler) AccumulateGDD(c *gin.Context) {
	var req accumulatePayload
	if !bindJSON(c, &req) {
		return
	}
	resp, err := gdd.Accumulate(req.Crop, req.Observed, req.Forecast)
	if err != nil {
		abortWithError(c, fromDomainError(err, "gdd_failed"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return false
	}
	return true
}

// fromDomainError maps application error codes onto transport statuses.
func fromDomainError(err error, fallback string) *HTTPError {
	switch {
	case apperrors.IsCode(err, apperrors.CodeInvalidInput):
		return NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeInsufficientData):
		return NewHTTPError(http.StatusUnprocessableEntity, apperrors.CodeInsufficientData, errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeStoreError):
		return NewHTTPError(http.StatusServiceUnavailable, "store_unavailable", "model store unavailable", err)
	default:
		return NewHTTPError(http.StatusInternalServerError, fallback, "something went wrong", err)
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
