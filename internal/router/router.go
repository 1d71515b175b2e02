// Package router selects the model for a service type and scores a vector on it.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/connectivity-demand/internal/config"
	"github.com/yungbote/connectivity-demand/internal/engine"
	"github.com/yungbote/connectivity-demand/internal/engine/forest"
	"github.com/yungbote/connectivity-demand/internal/engine/linear"
	"github.com/yungbote/connectivity-demand/internal/engine/mock"
	"github.com/yungbote/connectivity-demand/internal/engine/remote"
	"github.com/yungbote/connectivity-demand/internal/features"
	"github.com/yungbote/connectivity-demand/internal/platform/retry"
)

type ServiceType string

const (
	Education  ServiceType = config.ServiceEducation
	Healthcare ServiceType = config.ServiceHealthcare
)

var ErrUnsupportedServiceType = errors.New("unsupported service type")

// ParseServiceType accepts exactly "education" or "healthcare".
func ParseServiceType(s string) (ServiceType, error) {
	switch ServiceType(s) {
	case Education, Healthcare:
		return ServiceType(s), nil
	default:
		return "", fmt.Errorf("%w %q: use \"education\" or \"healthcare\"", ErrUnsupportedServiceType, s)
	}
}

// Schema returns the feature layout of the service's model.
func (s ServiceType) Schema() []string {
	if s == Education {
		return features.EducationSchema()
	}
	return features.HealthcareSchema()
}

type Route struct {
	Service    ServiceType
	EngineType string
	Engine     engine.Engine
}

type Router struct {
	routes map[ServiceType]Route
}

// ArtifactReader loads engine artifacts from local paths or object storage.
type ArtifactReader interface {
	ReadAll(ctx context.Context, path string) ([]byte, error)
}

func New(ctx context.Context, cfg *config.Config, artifacts ArtifactReader) (*Router, error) {
	policy := retry.FromConfig(cfg.Retry)

	routes := map[ServiceType]Route{}
	for _, m := range cfg.Models {
		svc, err := ParseServiceType(m.Service)
		if err != nil {
			return nil, err
		}
		if _, exists := routes[svc]; exists {
			return nil, fmt.Errorf("duplicate model for service: %s", svc)
		}

		schema := svc.Schema()
		name := string(svc)
		var eng engine.Engine
		switch strings.ToLower(strings.TrimSpace(m.Engine.Type)) {
		case "mock":
			eng = mock.New(name, schema)
		case "forest", "linear":
			data, err := artifacts.ReadAll(ctx, m.Engine.Artifact)
			if err != nil {
				return nil, fmt.Errorf("load %s model artifact: %w", svc, err)
			}
			if m.Engine.Type == "forest" {
				eng, err = forest.Parse(name, schema, data)
			} else {
				eng, err = linear.Parse(name, schema, data)
			}
			if err != nil {
				return nil, err
			}
		case "remote":
			e, err := remote.New(name, schema, m.Engine, policy)
			if err != nil {
				return nil, err
			}
			eng = e
		default:
			return nil, fmt.Errorf("unsupported engine type %q for service %q", m.Engine.Type, svc)
		}

		routes[svc] = Route{Service: svc, EngineType: m.Engine.Type, Engine: eng}
	}
	return NewWithRoutes(routes)
}

// NewWithRoutes builds a router from prebuilt engines. Both services must be present.
func NewWithRoutes(routes map[ServiceType]Route) (*Router, error) {
	r := &Router{routes: map[ServiceType]Route{}}
	for _, svc := range []ServiceType{Education, Healthcare} {
		route, ok := routes[svc]
		if !ok || route.Engine == nil {
			return nil, fmt.Errorf("no model configured for service %q", svc)
		}
		if !features.SameSchema(route.Engine.Schema(), svc.Schema()) {
			return nil, fmt.Errorf("%w: %s engine expects %v", engine.ErrSchemaMismatch, svc, route.Engine.Schema())
		}
		route.Service = svc
		r.routes[svc] = route
	}
	return r, nil
}

func (r *Router) Route(svc ServiceType) (Route, bool) {
	route, ok := r.routes[svc]
	return route, ok
}

// Predict scores v on the service's model. The service is checked before any
// engine is touched.
func (r *Router) Predict(ctx context.Context, svc ServiceType, v features.Vector) (float64, error) {
	route, ok := r.routes[svc]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnsupportedServiceType, svc)
	}
	if err := engine.CheckSchema(route.Engine, v); err != nil {
		return 0, err
	}
	return route.Engine.Predict(ctx, v)
}
