package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/connectivity-demand/internal/config"
	"github.com/yungbote/connectivity-demand/internal/httpapi"
	"github.com/yungbote/connectivity-demand/internal/observability"
	"github.com/yungbote/connectivity-demand/internal/platform/gcp"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
)

type Handlers struct {
	Health  *httpapi.HealthHandler
	Predict *httpapi.PredictHandler
	Upload  *httpapi.UploadHandler
}

func wireHandlers(log *logger.Logger, cfg *config.Config, services Services, store gcp.ObjectStore, ready func() error) Handlers {
	log.Info("Wiring handlers...")
	var uploads httpapi.UploadStore = httpapi.LocalUploadStore{Dir: cfg.Uploads.Dir}
	if cfg.Uploads.GCSBucket != "" && store != nil {
		uploads = httpapi.BucketUploadStore{Store: store, Bucket: cfg.Uploads.GCSBucket}
	}
	return Handlers{
		Health:  httpapi.NewHealthHandler(ready),
		Predict: httpapi.NewPredictHandler(log, services.Predict),
		Upload:  httpapi.NewUploadHandler(log, uploads),
	}
}

func wireRouter(log *logger.Logger, cfg *config.Config, handlers Handlers, metrics *observability.Metrics) *gin.Engine {
	return httpapi.NewRouter(log, httpapi.RouterConfig{
		HTTP:           cfg.HTTP,
		Metrics:        cfg.Metrics,
		Otel:           cfg.Otel,
		JWTSecret:      cfg.Uploads.JWTSecret,
		PredictHandler: handlers.Predict,
		UploadHandler:  handlers.Upload,
		HealthHandler:  handlers.Health,
		MetricsSink:    metrics,
	})
}
