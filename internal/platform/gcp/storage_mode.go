package gcp

import (
	"fmt"
	"net/url"
	"strings"
)

type ObjectStorageMode string

const (
	ObjectStorageModeGCS         ObjectStorageMode = "gcs"
	ObjectStorageModeGCSEmulator ObjectStorageMode = "gcs_emulator"
)

type ObjectStorageConfig struct {
	Mode            ObjectStorageMode
	EmulatorHost    string
	CredentialsFile string
}

func (cfg ObjectStorageConfig) IsEmulatorMode() bool {
	return cfg.Mode == ObjectStorageModeGCSEmulator
}

// ResolveObjectStorageConfig picks the emulator whenever an emulator host is configured.
func ResolveObjectStorageConfig(credentialsFile, emulatorHost string) (ObjectStorageConfig, error) {
	cfg := ObjectStorageConfig{
		Mode:            ObjectStorageModeGCS,
		EmulatorHost:    strings.TrimRight(strings.TrimSpace(emulatorHost), "/"),
		CredentialsFile: strings.TrimSpace(credentialsFile),
	}
	if cfg.EmulatorHost == "" {
		return cfg, nil
	}
	cfg.Mode = ObjectStorageModeGCSEmulator
	u, err := url.Parse(cfg.EmulatorHost)
	if err != nil || strings.TrimSpace(u.Scheme) == "" || strings.TrimSpace(u.Host) == "" {
		return cfg, fmt.Errorf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", emulatorHost)
	}
	return cfg, nil
}
