package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/connectivity-demand/internal/config"
	"github.com/yungbote/connectivity-demand/internal/platform/gcp"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
)

var newObjectStore = gcp.NewObjectStore

type StorageBootstrapErrorCode string

const (
	StorageBootstrapErrorInvalidEmulatorHost StorageBootstrapErrorCode = "invalid_emulator_host"
	StorageBootstrapErrorConnectFailed       StorageBootstrapErrorCode = "connect_failed"
)

type StorageBootstrapError struct {
	Code         StorageBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageBootstrapError) Error() string {
	if e == nil {
		return "object storage bootstrap failed"
	}
	return fmt.Sprintf(
		"object storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// needsObjectStore reports whether any configured location lives in GCS.
func needsObjectStore(cfg *config.Config) bool {
	if strings.TrimSpace(cfg.Uploads.GCSBucket) != "" {
		return true
	}
	paths := []string{cfg.Artifacts.HealthcareGeo, cfg.Artifacts.EducationScaler, cfg.Recommend.RulesPath}
	if cfg.Reference.Source == "csv" {
		paths = append(paths, cfg.Reference.Path)
	}
	for _, m := range cfg.Models {
		paths = append(paths, m.Engine.Artifact)
	}
	for _, p := range paths {
		if strings.HasPrefix(strings.TrimSpace(p), "gs://") {
			return true
		}
	}
	return false
}

// resolveObjectStore returns nil when nothing is stored in GCS.
func resolveObjectStore(ctx context.Context, log *logger.Logger, cfg *config.Config) (gcp.ObjectStore, error) {
	if !needsObjectStore(cfg) {
		log.Info("Object storage not configured; using local files only")
		return nil, nil
	}

	storageCfg, err := gcp.ResolveObjectStorageConfig(cfg.GCS.CredentialsFile, cfg.GCS.EmulatorHost)
	if err != nil {
		bootErr := &StorageBootstrapError{
			Code:         StorageBootstrapErrorInvalidEmulatorHost,
			Mode:         string(storageCfg.Mode),
			EmulatorHost: storageCfg.EmulatorHost,
			Cause:        err,
		}
		log.Error("Object storage provider selection failed", "error_code", bootErr.Code, "error", err)
		return nil, bootErr
	}

	log.Info("Selecting object storage provider", "mode", storageCfg.Mode, "emulator_host", storageCfg.EmulatorHost)
	store, err := newObjectStore(ctx, log, storageCfg)
	if err != nil {
		bootErr := &StorageBootstrapError{
			Code:         StorageBootstrapErrorConnectFailed,
			Mode:         string(storageCfg.Mode),
			EmulatorHost: storageCfg.EmulatorHost,
			Cause:        err,
		}
		log.Error("Object storage provider bootstrap failed", "mode", storageCfg.Mode, "error_code", bootErr.Code, "error", err)
		return nil, bootErr
	}
	return store, nil
}
