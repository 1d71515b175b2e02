package config

import "time"

// Duration accepts Go duration strings ("5s") or integer nanoseconds in YAML.
type Duration struct {
	Duration time.Duration
}

type HTTPConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
	RequestTimeout    Duration `yaml:"request_timeout"`
	MaxRequestBytes   int64    `yaml:"max_request_bytes"`
	CORSOrigins       []string `yaml:"cors_origins"`

	// EnableLegacy exposes the deprecated /predict and /upload surfaces.
	EnableLegacy bool `yaml:"enable_legacy"`
}

// ReferenceConfig locates the facility dataset the encoding tables are derived from.
type ReferenceConfig struct {
	Source string `yaml:"source"` // csv | postgres | sqlite
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
}

type ArtifactsConfig struct {
	// HealthcareGeo holds the fitted scaler and cluster centroids for the healthcare path.
	HealthcareGeo string `yaml:"healthcare_geo"`
	// EducationScaler holds the fitted coordinate scaler for the education path.
	EducationScaler string `yaml:"education_scaler"`
}

type EngineConfig struct {
	Type     string   `yaml:"type"` // forest | linear | remote | mock
	Artifact string   `yaml:"artifact,omitempty"`
	BaseURL  string   `yaml:"base_url,omitempty"`
	Path     string   `yaml:"path,omitempty"`
	APIKey   string   `yaml:"api_key,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty"`
}

type ModelConfig struct {
	Service string       `yaml:"service"`
	Engine  EngineConfig `yaml:"engine"`
}

type GeocodingConfig struct {
	BaseURL           string   `yaml:"base_url"`
	APIKey            string   `yaml:"api_key"`
	Timeout           Duration `yaml:"timeout"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
}

type WorldBankConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
	PerPage int      `yaml:"per_page"`
}

type IndicatorsConfig struct {
	// MissingPolicy: pass | reject | impute.
	MissingPolicy string             `yaml:"missing_policy"`
	Impute        map[string]float64 `yaml:"impute"`
	CacheTTL      Duration           `yaml:"cache_ttl"`
	// FetchTimeout bounds the shared per-country lookup, independent of any caller.
	FetchTimeout Duration `yaml:"fetch_timeout"`
}

type RetryConfig struct {
	MaxAttempts     int      `yaml:"max_attempts"`
	InitialInterval Duration `yaml:"initial_interval"`
	MaxInterval     Duration `yaml:"max_interval"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type RecommendConfig struct {
	RulesPath string `yaml:"rules_path"`
}

type UploadsConfig struct {
	Dir       string `yaml:"dir"`
	GCSBucket string `yaml:"gcs_bucket"`
	JWTSecret string `yaml:"jwt_secret"`
}

type GCSConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	EmulatorHost    string `yaml:"emulator_host"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type Config struct {
	Env        string           `yaml:"env"`
	Version    string           `yaml:"-"`
	HTTP       HTTPConfig       `yaml:"http"`
	Reference  ReferenceConfig  `yaml:"reference"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Models     []ModelConfig    `yaml:"models"`
	Geocoding  GeocodingConfig  `yaml:"geocoding"`
	WorldBank  WorldBankConfig  `yaml:"worldbank"`
	Indicators IndicatorsConfig `yaml:"indicators"`
	Retry      RetryConfig      `yaml:"retry"`
	Redis      RedisConfig      `yaml:"redis"`
	Recommend  RecommendConfig  `yaml:"recommend"`
	Uploads    UploadsConfig    `yaml:"uploads"`
	GCS        GCSConfig        `yaml:"gcs"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Otel       OtelConfig       `yaml:"otel"`
}

// Model returns the model config for service, if any.
func (c *Config) Model(service string) (ModelConfig, bool) {
	for _, m := range c.Models {
		if m.Service == service {
			return m, true
		}
	}
	return ModelConfig{}, false
}
