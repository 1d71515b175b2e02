// Package app wires configuration, collaborators and the HTTP server together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/connectivity-demand/internal/config"
	"github.com/yungbote/connectivity-demand/internal/observability"
	"github.com/yungbote/connectivity-demand/internal/platform/gcp"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
)

var errNotReady = errors.New("not ready")

type App struct {
	Log      *logger.Logger
	Cfg      *config.Config
	Router   *gin.Engine
	Services Services

	store        gcp.ObjectStore
	otelShutdown func(context.Context) error
	ready        atomic.Bool
}

// New builds every collaborator once. Failures here abort startup.
func New(ctx context.Context, log *logger.Logger, cfg *config.Config) (*App, error) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	a := &App{Log: log, Cfg: cfg}
	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel, cfg.Env, cfg.Version)
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.Init(log)
	}

	store, err := resolveObjectStore(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	a.store = store

	services, err := wireServices(ctx, log, cfg, gcp.Opener{Store: store})
	if err != nil {
		a.closeResources(ctx)
		return nil, err
	}
	a.Services = services

	handlers := wireHandlers(log, cfg, services, store, a.readiness)
	a.Router = wireRouter(log, cfg, handlers, metrics)
	a.ready.Store(true)
	return a, nil
}

func (a *App) readiness() error {
	if !a.ready.Load() {
		return errNotReady
	}
	return nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	srv := &http.Server{
		Addr:              a.Cfg.HTTP.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: a.Cfg.HTTP.ReadHeaderTimeout.Duration,
		IdleTimeout:       a.Cfg.HTTP.IdleTimeout.Duration,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("HTTP server listening", "addr", srv.Addr, "legacy_routes", a.Cfg.HTTP.EnableLegacy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.ready.Store(false)
	a.Log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.HTTP.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases external clients. Safe to call more than once.
func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	a.ready.Store(false)
	a.closeResources(ctx)
	if a.Log != nil {
		a.Log.Sync()
	}
}

func (a *App) closeResources(ctx context.Context) {
	if a.Services.Cache != nil {
		if err := a.Services.Cache.Close(); err != nil {
			a.Log.Warn("Closing indicator cache failed", "error", err)
		}
		a.Services.Cache = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Log.Warn("Closing object store failed", "error", err)
		}
		a.store = nil
	}
	if a.otelShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(shutdownCtx); err != nil {
			a.Log.Warn("Tracer shutdown failed", "error", err)
		}
		a.otelShutdown = nil
	}
}
