package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/connectivity-demand/internal/platform/logger"
	"github.com/yungbote/connectivity-demand/internal/predict"
)

type Predictor interface {
	PredictHealthcare(ctx context.Context, req predict.Request) (*predict.Result, error)
	PredictEducation(ctx context.Context, req predict.Request) (*predict.Result, error)
	Predict(ctx context.Context, serviceType string, req predict.Request) (*predict.Result, error)
	Options() predict.Options
}

type healthcareBody struct {
	Latitude      *float64 `json:"Latitude" binding:"required"`
	Longitude     *float64 `json:"Longitude" binding:"required"`
	FacilityType  *string  `json:"facilityType" binding:"required"`
	FacilityOwner *string  `json:"facilityOwnerType" binding:"required"`
}

type educationBody struct {
	Latitude  *float64 `json:"Latitude" binding:"required"`
	Longitude *float64 `json:"Longitude" binding:"required"`
}

// legacyBody is the /predict contract: service_type plus that service's fields.
type legacyBody struct {
	ServiceType   *string  `json:"service_type" binding:"required"`
	Latitude      *float64 `json:"Latitude"`
	Longitude     *float64 `json:"Longitude"`
	FacilityType  *string  `json:"facilityType"`
	FacilityOwner *string  `json:"facilityOwnerType"`
}

type predictionResponse struct {
	DemandScore     float64  `json:"Demand Score"`
	Recommendations []string `json:"Recommendations"`
}

type legacyPredictionResponse struct {
	PredictedDemand []float64 `json:"predicted_demand"`
}

type PredictHandler struct {
	log *logger.Logger
	svc Predictor
}

func NewPredictHandler(log *logger.Logger, svc Predictor) *PredictHandler {
	return &PredictHandler{log: log.With("handler", "PredictHandler"), svc: svc}
}

// POST /predict/healthcare
func (h *PredictHandler) Healthcare(c *gin.Context) {
	var body healthcareBody
	if err := bindJSON(c, &body); err != nil {
		writeError(c, err)
		return
	}
	res, err := h.svc.PredictHealthcare(c.Request.Context(), predict.Request{
		Latitude:      body.Latitude,
		Longitude:     body.Longitude,
		FacilityType:  body.FacilityType,
		FacilityOwner: body.FacilityOwner,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, toResponse(res))
}

// POST /predict/education
func (h *PredictHandler) Education(c *gin.Context) {
	var body educationBody
	if err := bindJSON(c, &body); err != nil {
		writeError(c, err)
		return
	}
	res, err := h.svc.PredictEducation(c.Request.Context(), predict.Request{
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, toResponse(res))
}

// POST /predict (deprecated)
func (h *PredictHandler) Legacy(c *gin.Context) {
	var body legacyBody
	if err := bindJSON(c, &body); err != nil {
		writeError(c, err)
		return
	}
	res, err := h.svc.Predict(c.Request.Context(), *body.ServiceType, predict.Request{
		Latitude:      body.Latitude,
		Longitude:     body.Longitude,
		FacilityType:  body.FacilityType,
		FacilityOwner: body.FacilityOwner,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, legacyPredictionResponse{PredictedDemand: []float64{res.Score}})
}

// GET /options/healthcare
func (h *PredictHandler) HealthcareOptions(c *gin.Context) {
	respondOK(c, h.svc.Options())
}

func toResponse(res *predict.Result) predictionResponse {
	recs := res.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return predictionResponse{DemandScore: res.Score, Recommendations: recs}
}

type HealthHandler struct {
	ready func() error
}

// NewHealthHandler takes the readiness probe; nil means always ready.
func NewHealthHandler(ready func() error) *HealthHandler {
	return &HealthHandler{ready: ready}
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *HealthHandler) Ready(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			c.String(http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	c.String(http.StatusOK, "ok")
}
