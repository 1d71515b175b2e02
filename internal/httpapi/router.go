// Package httpapi exposes the prediction service over HTTP.
package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/connectivity-demand/internal/config"
	"github.com/yungbote/connectivity-demand/internal/observability"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
)

type RouterConfig struct {
	HTTP      config.HTTPConfig
	Metrics   config.MetricsConfig
	Otel      config.OtelConfig
	JWTSecret string

	PredictHandler *PredictHandler
	UploadHandler  *UploadHandler
	HealthHandler  *HealthHandler
	MetricsSink    *observability.Metrics
}

func NewRouter(log *logger.Logger, cfg RouterConfig) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(Recover(log))
	if cfg.Otel.Enabled {
		r.Use(otelgin.Middleware(cfg.Otel.ServiceName))
	}
	r.Use(AttachTraceContext())
	r.Use(RequestLogger(log))
	r.Use(Metrics(cfg.MetricsSink))
	r.Use(CORS(cfg.HTTP.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Live)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics.Enabled && cfg.MetricsSink != nil {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsSink.Handler()))
	}

	api := r.Group("/")
	api.Use(LimitBody(cfg.HTTP.MaxRequestBytes), Timeout(cfg.HTTP.RequestTimeout.Duration))
	{
		if cfg.PredictHandler != nil {
			api.POST("/predict/healthcare", cfg.PredictHandler.Healthcare)
			api.POST("/predict/education", cfg.PredictHandler.Education)
			api.GET("/options/healthcare", cfg.PredictHandler.HealthcareOptions)
		}
	}

	if !cfg.HTTP.EnableLegacy {
		return r
	}

	// Legacy
	if cfg.PredictHandler != nil {
		r.POST("/predict",
			Deprecated("/predict/healthcare"),
			LimitBody(cfg.HTTP.MaxRequestBytes),
			Timeout(cfg.HTTP.RequestTimeout.Duration),
			cfg.PredictHandler.Legacy,
		)
	}
	if cfg.UploadHandler != nil {
		r.POST("/upload",
			Deprecated(""),
			RequireToken(log, cfg.JWTSecret),
			LimitBody(maxUploadBody),
			cfg.UploadHandler.Upload,
		)
	}
	return r
}
