package facility

import (
	"context"
	"fmt"
	"io"

	"github.com/yungbote/connectivity-demand/internal/config"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
)

// FileOpener opens a local path or object storage URI.
type FileOpener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Load reads the reference dataset from the configured source.
func Load(ctx context.Context, cfg config.ReferenceConfig, files FileOpener, log *logger.Logger) (*Dataset, error) {
	var (
		records []Record
		source  string
	)
	switch cfg.Source {
	case "csv":
		rc, err := files.Open(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open reference dataset: %w", err)
		}
		defer rc.Close()
		records, err = ReadCSV(rc)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfg.Path, err)
		}
		source = cfg.Path
	case "postgres", "sqlite":
		target := cfg.DSN
		if cfg.Source == "sqlite" {
			target = cfg.Path
		}
		db, err := OpenDB(cfg.Source, target)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		records, err = QueryRecords(ctx, db, cfg.Table)
		if err != nil {
			return nil, err
		}
		source = cfg.Source + ":" + cfg.Table
	default:
		return nil, fmt.Errorf("unsupported reference source %q", cfg.Source)
	}

	ds := &Dataset{Source: source, Records: records}
	log.Info("Reference dataset loaded",
		"source", source,
		"rows", len(records),
		"located_rows", len(ds.Located()),
	)
	return ds, nil
}
