// Package predict validates prediction requests and runs them through feature
// assembly, inference and recommendation.
package predict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/connectivity-demand/internal/categorical"
	"github.com/yungbote/connectivity-demand/internal/features"
	"github.com/yungbote/connectivity-demand/internal/geo"
	"github.com/yungbote/connectivity-demand/internal/indicator"
	"github.com/yungbote/connectivity-demand/internal/observability"
	"github.com/yungbote/connectivity-demand/internal/platform/apierr"
	"github.com/yungbote/connectivity-demand/internal/platform/ctxutil"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
	"github.com/yungbote/connectivity-demand/internal/recommend"
	"github.com/yungbote/connectivity-demand/internal/router"
)

type Model interface {
	Predict(ctx context.Context, svc router.ServiceType, v features.Vector) (float64, error)
}

type IndicatorResolver interface {
	Resolve(ctx context.Context, lat, lon float64) (*indicator.Set, error)
}

type Recommender interface {
	Recommend(ctx recommend.Context, score float64) []string
	Band(score float64) string
}

// Deps is everything a Service needs; all of it is built once at startup.
type Deps struct {
	OwnerTable      *categorical.Table
	TypeTable       *categorical.Table
	HealthcareGeo   *geo.Transformer
	EducationScaler *geo.Scaler
	Model           Model
	Indicators      IndicatorResolver
	Recommender     Recommender
}

type Result struct {
	Service         router.ServiceType
	Score           float64
	Recommendations []string
	Features        features.Vector
	// Country is set for education predictions.
	Country string
}

// Options lists the categories the healthcare endpoint accepts.
type Options struct {
	FacilityOwners []string `json:"facility_owners"`
	FacilityTypes  []string `json:"facility_types"`
}

// Service is immutable after construction and safe for concurrent use.
type Service struct {
	d   Deps
	log *logger.Logger
}

func NewService(d Deps, log *logger.Logger) (*Service, error) {
	switch {
	case d.OwnerTable == nil || d.TypeTable == nil:
		return nil, errors.New("predict: encoding tables are required")
	case d.HealthcareGeo == nil:
		return nil, errors.New("predict: healthcare geo transformer is required")
	case d.EducationScaler == nil:
		return nil, errors.New("predict: education scaler is required")
	case d.Model == nil:
		return nil, errors.New("predict: model router is required")
	case d.Indicators == nil:
		return nil, errors.New("predict: indicator resolver is required")
	}
	if d.Recommender == nil {
		d.Recommender = recommend.NewGenerator(nil)
	}
	return &Service{d: d, log: log.With("service", "PredictService")}, nil
}

func (s *Service) Options() Options {
	return Options{
		FacilityOwners: s.d.OwnerTable.Values(),
		FacilityTypes:  s.d.TypeTable.Values(),
	}
}

// Predict dispatches on a raw service type name, as the legacy endpoint does.
func (s *Service) Predict(ctx context.Context, serviceType string, req Request) (*Result, error) {
	svc, err := router.ParseServiceType(serviceType)
	if err != nil {
		return nil, apierr.WithField(apierr.KindUnsupportedService, FieldServiceType, err)
	}
	if svc == router.Education {
		return s.PredictEducation(ctx, req)
	}
	return s.PredictHealthcare(ctx, req)
}

func (s *Service) PredictHealthcare(ctx context.Context, req Request) (*Result, error) {
	run := s.begin(ctx, router.Healthcare)

	lat, lon, err := validateCoordinates(req)
	if err != nil {
		return run.fail(err)
	}
	facilityType, err := requiredString(FieldFacilityType, req.FacilityType)
	if err != nil {
		return run.fail(err)
	}
	facilityOwner, err := requiredString(FieldFacilityOwner, req.FacilityOwner)
	if err != nil {
		return run.fail(err)
	}
	typeCode, err := s.d.TypeTable.Encode(facilityType)
	if err != nil {
		return run.fail(apierr.WithField(apierr.KindUnknownCategory, FieldFacilityType, err))
	}
	ownerCode, err := s.d.OwnerTable.Encode(facilityOwner)
	if err != nil {
		return run.fail(apierr.WithField(apierr.KindUnknownCategory, FieldFacilityOwner, err))
	}
	run.stage("validated")

	vec := features.Healthcare(s.d.HealthcareGeo.Transform(lat, lon), typeCode, ownerCode)
	run.stage("features_assembled", "features", vec.String())

	score, err := s.d.Model.Predict(ctx, router.Healthcare, vec)
	if err != nil {
		return run.fail(classify(err))
	}
	run.stage("predicted", "score", score)

	recs := s.d.Recommender.Recommend(recommend.Context{
		Service:       string(router.Healthcare),
		FacilityType:  facilityType,
		FacilityOwner: facilityOwner,
	}, score)
	run.stage("recommended", "band", s.d.Recommender.Band(score), "count", len(recs))

	return run.done(&Result{Service: router.Healthcare, Score: score, Recommendations: recs, Features: vec})
}

func (s *Service) PredictEducation(ctx context.Context, req Request) (*Result, error) {
	run := s.begin(ctx, router.Education)

	lat, lon, err := validateCoordinates(req)
	if err != nil {
		return run.fail(err)
	}
	run.stage("validated")

	set, err := s.d.Indicators.Resolve(ctx, lat, lon)
	if err != nil {
		return run.fail(classify(err))
	}
	latS, lonS := s.d.EducationScaler.Apply(lat, lon)
	vec, err := features.Education(latS, lonS, set.Values)
	if err != nil {
		return run.fail(classify(err))
	}
	run.stage("features_assembled", "country", set.Country.Code, "features", vec.String(), "imputed", set.Imputed)

	score, err := s.d.Model.Predict(ctx, router.Education, vec)
	if err != nil {
		return run.fail(classify(err))
	}
	run.stage("predicted", "score", score)

	recs := s.d.Recommender.Recommend(recommend.Context{
		Service:           string(router.Education),
		Country:           set.Country.Name,
		CountryCode:       set.Country.Code,
		MissingIndicators: append(set.Missing(), set.Imputed...),
	}, score)
	run.stage("recommended", "band", s.d.Recommender.Band(score), "count", len(recs))

	return run.done(&Result{
		Service:         router.Education,
		Score:           score,
		Recommendations: recs,
		Features:        vec,
		Country:         set.Country.Code,
	})
}

// classify maps collaborator errors onto request failure kinds.
func classify(err error) error {
	var ae *apierr.Error
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, indicator.ErrGeocode):
		return apierr.New(apierr.KindGeocodeFailure, err)
	case errors.Is(err, indicator.ErrResolution):
		return apierr.New(apierr.KindIndicatorResolution, err)
	case errors.Is(err, router.ErrUnsupportedServiceType):
		return apierr.New(apierr.KindUnsupportedService, err)
	case errors.Is(err, categorical.ErrUnknownCategory):
		return apierr.New(apierr.KindUnknownCategory, err)
	default:
		return apierr.New(apierr.KindInternal, fmt.Errorf("prediction failed: %w", err))
	}
}

// run tracks one request through its stages for logging and metrics.
type run struct {
	svc   router.ServiceType
	log   *logger.Logger
	start time.Time
}

func (s *Service) begin(ctx context.Context, svc router.ServiceType) *run {
	l := s.log.With("service_type", string(svc))
	if id := ctxutil.RequestID(ctx); id != "" {
		l = l.With("request_id", id)
	}
	r := &run{svc: svc, log: l, start: time.Now()}
	r.stage("received")
	return r
}

func (r *run) stage(name string, kv ...any) {
	r.log.Debug("Prediction stage", append([]any{"stage", name}, kv...)...)
}

func (r *run) fail(err error) (*Result, error) {
	ae := apierr.As(err)
	observability.Current().ObservePrediction(string(r.svc), string(ae.Kind), 0, time.Since(r.start))
	switch ae.Kind {
	case apierr.KindInternal:
		r.log.Error("Prediction failed", "kind", ae.Kind, "error", err)
	case apierr.KindGeocodeFailure, apierr.KindIndicatorResolution:
		r.log.Warn("Prediction provider failure", "kind", ae.Kind, "error", err)
	default:
		r.log.Debug("Prediction stage", "stage", "failed", "kind", ae.Kind, "field", ae.Field, "error", err)
	}
	return nil, ae
}

func (r *run) done(res *Result) (*Result, error) {
	observability.Current().ObservePrediction(string(r.svc), "ok", res.Score, time.Since(r.start))
	r.stage("responded", "score", res.Score, "duration_ms", time.Since(r.start).Milliseconds())
	return res, nil
}
