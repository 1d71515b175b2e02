package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/connectivity-demand/internal/categorical"
	"github.com/yungbote/connectivity-demand/internal/config"
	"github.com/yungbote/connectivity-demand/internal/facility"
	"github.com/yungbote/connectivity-demand/internal/geo"
	"github.com/yungbote/connectivity-demand/internal/geocoding"
	"github.com/yungbote/connectivity-demand/internal/indicator"
	"github.com/yungbote/connectivity-demand/internal/platform/gcp"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
	"github.com/yungbote/connectivity-demand/internal/platform/retry"
	"github.com/yungbote/connectivity-demand/internal/predict"
	"github.com/yungbote/connectivity-demand/internal/recommend"
	"github.com/yungbote/connectivity-demand/internal/router"
	"github.com/yungbote/connectivity-demand/internal/worldbank"
)

type Tables struct {
	Owner *categorical.Table
	Type  *categorical.Table
}

// LoadTables builds the encoding tables from the configured reference dataset.
func LoadTables(ctx context.Context, log *logger.Logger, cfg *config.Config, files gcp.Opener) (Tables, error) {
	ds, err := facility.Load(ctx, cfg.Reference, files, log)
	if err != nil {
		return Tables{}, fmt.Errorf("load reference dataset: %w", err)
	}
	t := Tables{Owner: facility.OwnerTable(ds.Records), Type: facility.TypeTable(ds.Records)}
	if t.Owner.Len() == 0 || t.Type.Len() == 0 {
		return Tables{}, fmt.Errorf("reference dataset %s has no located rows with categories", ds.Source)
	}
	log.Info("Encoding tables built", "facility_owners", t.Owner.Len(), "facility_types", t.Type.Len())
	return t, nil
}

type Services struct {
	Predict *predict.Service
	// Cache is nil when redis is not configured.
	Cache *indicator.RedisCache
}

func wireServices(ctx context.Context, log *logger.Logger, cfg *config.Config, files gcp.Opener) (Services, error) {
	log.Info("Wiring services...")

	tables, err := LoadTables(ctx, log, cfg, files)
	if err != nil {
		return Services{}, err
	}

	geoRaw, err := files.ReadAll(ctx, cfg.Artifacts.HealthcareGeo)
	if err != nil {
		return Services{}, fmt.Errorf("load healthcare geo artifact: %w", err)
	}
	healthcareGeo, err := geo.ParseTransformer(geoRaw)
	if err != nil {
		return Services{}, err
	}
	scalerRaw, err := files.ReadAll(ctx, cfg.Artifacts.EducationScaler)
	if err != nil {
		return Services{}, fmt.Errorf("load education scaler artifact: %w", err)
	}
	educationScaler, err := geo.ParseScaler(scalerRaw)
	if err != nil {
		return Services{}, err
	}

	models, err := router.New(ctx, cfg, files)
	if err != nil {
		return Services{}, fmt.Errorf("init model router: %w", err)
	}
	for _, svc := range []router.ServiceType{router.Education, router.Healthcare} {
		route, _ := models.Route(svc)
		log.Info("Model route ready", "service_type", svc, "engine", route.EngineType)
	}

	policy := retry.FromConfig(cfg.Retry)
	policyName, err := indicator.ParsePolicy(cfg.Indicators.MissingPolicy)
	if err != nil {
		return Services{}, err
	}
	opts := indicator.Options{
		Policy:       policyName,
		Impute:       cfg.Indicators.Impute,
		FetchTimeout: cfg.Indicators.FetchTimeout.Duration,
	}

	cache, err := indicator.NewRedisCache(ctx, cfg.Redis, cfg.Indicators.CacheTTL.Duration, log)
	if err != nil {
		return Services{}, fmt.Errorf("init indicator cache: %w", err)
	}
	if cache != nil {
		opts.Cache = cache
	}

	resolver := indicator.NewResolver(
		geocoding.NewClient(cfg.Geocoding, policy, log),
		worldbank.NewClient(cfg.WorldBank, policy, log),
		opts,
		log,
	)

	rules, err := loadRules(ctx, cfg.Recommend.RulesPath, files)
	if err != nil {
		if cache != nil {
			_ = cache.Close()
		}
		return Services{}, fmt.Errorf("load recommendation rules: %w", err)
	}

	svc, err := predict.NewService(predict.Deps{
		OwnerTable:      tables.Owner,
		TypeTable:       tables.Type,
		HealthcareGeo:   healthcareGeo,
		EducationScaler: educationScaler,
		Model:           models,
		Indicators:      resolver,
		Recommender:     recommend.NewGenerator(rules),
	}, log)
	if err != nil {
		if cache != nil {
			_ = cache.Close()
		}
		return Services{}, err
	}
	return Services{Predict: svc, Cache: cache}, nil
}

// loadRules reads a rules file from disk or gs://, or returns the defaults for an empty path.
func loadRules(ctx context.Context, path string, files gcp.Opener) (*recommend.Rules, error) {
	if strings.TrimSpace(path) == "" {
		return recommend.DefaultRules(), nil
	}
	raw, err := files.ReadAll(ctx, path)
	if err != nil {
		return nil, err
	}
	return recommend.ParseRules(raw)
}
