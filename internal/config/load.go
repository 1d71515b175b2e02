package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/connectivity-demand/internal/platform/envutil"
)

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if s == "" || s == "null" || s == "~" {
		d.Duration = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		d.Duration = time.Duration(n)
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

const (
	ServiceEducation  = "education"
	ServiceHealthcare = "healthcare"
)

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":5000",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			RequestTimeout:    Duration{Duration: 30 * time.Second},
			MaxRequestBytes:   1 << 20,
			CORSOrigins:       []string{"http://localhost:5173", "http://127.0.0.1:5173"},
			EnableLegacy:      true,
		},
		Reference: ReferenceConfig{
			Source: "csv",
			Path:   "datasets/healthcare_facilities.csv",
			Table:  "facilities",
		},
		Artifacts: ArtifactsConfig{
			HealthcareGeo:   "models/healthcare_geo.json",
			EducationScaler: "models/scaler.json",
		},
		Models: []ModelConfig{
			{Service: ServiceEducation, Engine: EngineConfig{Type: "forest", Artifact: "models/education_connectivity_model.json"}},
			{Service: ServiceHealthcare, Engine: EngineConfig{Type: "forest", Artifact: "models/healthcare_connectivity_model.json"}},
		},
		Geocoding: GeocodingConfig{
			BaseURL:           "https://maps.googleapis.com/maps/api/geocode/json",
			Timeout:           Duration{Duration: 5 * time.Second},
			RequestsPerSecond: 10,
		},
		WorldBank: WorldBankConfig{
			BaseURL: "https://api.worldbank.org/v2",
			Timeout: Duration{Duration: 10 * time.Second},
			PerPage: 100,
		},
		Indicators: IndicatorsConfig{
			MissingPolicy: "pass",
			CacheTTL:      Duration{Duration: 24 * time.Hour},
			FetchTimeout:  Duration{Duration: 30 * time.Second},
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: Duration{Duration: 200 * time.Millisecond},
			MaxInterval:     Duration{Duration: 2 * time.Second},
		},
		Redis: RedisConfig{Prefix: "conn:"},
		Uploads: UploadsConfig{
			Dir: ".",
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Otel: OtelConfig{
			ServiceName: "connectivity-demand",
			SampleRatio: 0.1,
		},
	}
}

// Load reads the YAML config (CONN_CONFIG_PATH, else ./config/config.yaml when present),
// applies environment overrides and validates the result.
func Load() (*Config, error) {
	cfgPath := strings.TrimSpace(os.Getenv("CONN_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	return LoadFile(cfgPath)
}

// LoadFile is Load with an explicit path; an empty path means defaults plus env.
func LoadFile(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)
	cfg.HTTP.Addr = envutil.String("CONN_HTTP_ADDR", cfg.HTTP.Addr)
	if port := envutil.String("PORT", ""); port != "" {
		cfg.HTTP.Addr = ":" + port
	}
	cfg.HTTP.EnableLegacy = envutil.Bool("CONN_ENABLE_LEGACY", cfg.HTTP.EnableLegacy)
	if v := envutil.String("CORS_ALLOWED_ORIGINS", ""); v != "" {
		cfg.HTTP.CORSOrigins = splitList(v)
	}

	cfg.Reference.Source = envutil.String("CONN_REFERENCE_SOURCE", cfg.Reference.Source)
	cfg.Reference.Path = envutil.String("CONN_REFERENCE_PATH", cfg.Reference.Path)
	cfg.Reference.DSN = envutil.String("DATABASE_URL", cfg.Reference.DSN)

	cfg.Geocoding.APIKey = envutil.String("GOOGLE_API_KEY", cfg.Geocoding.APIKey)
	cfg.Geocoding.BaseURL = envutil.String("CONN_GEOCODING_URL", cfg.Geocoding.BaseURL)
	cfg.WorldBank.BaseURL = envutil.String("CONN_WORLDBANK_URL", cfg.WorldBank.BaseURL)
	cfg.Indicators.MissingPolicy = envutil.String("CONN_MISSING_INDICATOR_POLICY", cfg.Indicators.MissingPolicy)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Recommend.RulesPath = envutil.String("CONN_RECOMMEND_RULES", cfg.Recommend.RulesPath)
	cfg.Uploads.GCSBucket = envutil.String("CONN_UPLOAD_BUCKET", cfg.Uploads.GCSBucket)
	cfg.Uploads.JWTSecret = envutil.String("CONN_UPLOAD_JWT_SECRET", cfg.Uploads.JWTSecret)
	cfg.GCS.CredentialsFile = envutil.String("GOOGLE_APPLICATION_CREDENTIALS", cfg.GCS.CredentialsFile)
	cfg.GCS.EmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", cfg.GCS.EmulatorHost)

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", cfg.Otel.SampleRatio)
}

func normalize(cfg *Config) error {
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":5000"
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 1 << 20
	}

	cfg.Reference.Source = strings.ToLower(strings.TrimSpace(cfg.Reference.Source))
	switch cfg.Reference.Source {
	case "csv", "sqlite":
		if strings.TrimSpace(cfg.Reference.Path) == "" {
			return fmt.Errorf("reference.path is required for source %q", cfg.Reference.Source)
		}
	case "postgres":
		if strings.TrimSpace(cfg.Reference.DSN) == "" {
			return errors.New("reference.dsn (or DATABASE_URL) is required for source \"postgres\"")
		}
	default:
		return fmt.Errorf("invalid reference.source=%q", cfg.Reference.Source)
	}
	if cfg.Reference.Table == "" {
		cfg.Reference.Table = "facilities"
	}

	if strings.TrimSpace(cfg.Artifacts.HealthcareGeo) == "" {
		return errors.New("artifacts.healthcare_geo is required")
	}
	if strings.TrimSpace(cfg.Artifacts.EducationScaler) == "" {
		return errors.New("artifacts.education_scaler is required")
	}

	seen := map[string]bool{}
	for i := range cfg.Models {
		m := &cfg.Models[i]
		m.Service = strings.ToLower(strings.TrimSpace(m.Service))
		if m.Service != ServiceEducation && m.Service != ServiceHealthcare {
			return fmt.Errorf("models[%d]: invalid service %q", i, m.Service)
		}
		if seen[m.Service] {
			return fmt.Errorf("duplicate model for service %q", m.Service)
		}
		seen[m.Service] = true

		m.Engine.Type = strings.ToLower(strings.TrimSpace(m.Engine.Type))
		switch m.Engine.Type {
		case "forest", "linear":
			if strings.TrimSpace(m.Engine.Artifact) == "" {
				return fmt.Errorf("model %q (%s) missing engine.artifact", m.Service, m.Engine.Type)
			}
		case "remote":
			m.Engine.BaseURL = strings.TrimRight(strings.TrimSpace(m.Engine.BaseURL), "/")
			if m.Engine.BaseURL == "" {
				return fmt.Errorf("model %q (remote) missing engine.base_url", m.Service)
			}
			if m.Engine.Path == "" {
				m.Engine.Path = "/v1/models/" + m.Service + ":predict"
			}
			if m.Engine.Timeout.Duration <= 0 {
				m.Engine.Timeout = Duration{Duration: 10 * time.Second}
			}
		case "mock":
		default:
			return fmt.Errorf("model %q has unsupported engine.type=%q", m.Service, m.Engine.Type)
		}
	}
	for _, svc := range []string{ServiceEducation, ServiceHealthcare} {
		if _, ok := cfg.Model(svc); !ok {
			return fmt.Errorf("config must define a model for service %q", svc)
		}
	}

	cfg.Indicators.MissingPolicy = strings.ToLower(strings.TrimSpace(cfg.Indicators.MissingPolicy))
	switch cfg.Indicators.MissingPolicy {
	case "":
		cfg.Indicators.MissingPolicy = "pass"
	case "pass", "reject", "impute":
	default:
		return fmt.Errorf("invalid indicators.missing_policy=%q", cfg.Indicators.MissingPolicy)
	}

	if cfg.WorldBank.PerPage <= 0 {
		cfg.WorldBank.PerPage = 100
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Otel.SampleRatio < 0 {
		cfg.Otel.SampleRatio = 0
	}
	if cfg.Otel.SampleRatio > 1 {
		cfg.Otel.SampleRatio = 1
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
