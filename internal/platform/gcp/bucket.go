package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/connectivity-demand/internal/platform/logger"
)

// ObjectStore reads and writes objects in GCS buckets.
type ObjectStore interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Write(ctx context.Context, bucket, key string, r io.Reader) error
	Close() error
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	storageMode   ObjectStorageMode
	emulatorHost  string
	httpClient    *http.Client
}

func NewObjectStore(ctx context.Context, log *logger.Logger, cfg ObjectStorageConfig) (ObjectStore, error) {
	serviceLog := log.With("service", "ObjectStore")

	stClient, err := newStorageClientForMode(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	serviceLog.Info("Object storage initialized", "mode", cfg.Mode, "emulator_host", cfg.EmulatorHost)

	return &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		storageMode:   cfg.Mode,
		emulatorHost:  cfg.EmulatorHost,
		httpClient:    &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

func newStorageClientForMode(ctx context.Context, cfg ObjectStorageConfig) (*storage.Client, error) {
	switch cfg.Mode {
	case ObjectStorageModeGCS:
		opts := ClientOptions(cfg.CredentialsFile)
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, fmt.Errorf("unsupported object storage mode %q", cfg.Mode)
	}
}

func (bs *bucketService) Write(ctx context.Context, bucket, key string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.storageClient.Bucket(bucket).Object(key).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	bs.log.Debug("Object written", "bucket", bucket, "key", key)
	return nil
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(key))) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return ""
	}
}

// The reader outlives this call, so the timeout is cancelled on Close.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (bs *bucketService) emulatorObjectMediaURL(bucket, key string) string {
	return fmt.Sprintf(
		"%s/storage/v1/b/%s/o/%s?alt=media",
		bs.emulatorHost,
		url.PathEscape(bucket),
		url.PathEscape(key),
	)
}

func (bs *bucketService) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	if bs.storageMode == ObjectStorageModeGCSEmulator {
		req, err := http.NewRequestWithContext(ctx2, http.MethodGet, bs.emulatorObjectMediaURL(bucket, key), nil)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed creating emulator download request: %w", err)
		}
		resp, err := bs.httpClient.Do(req)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed emulator download request: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			cancel()
			return nil, fmt.Errorf("emulator download failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return &readCloserWithCancel{ReadCloser: resp.Body, cancel: cancel}, nil
	}

	r, err := bs.storageClient.Bucket(bucket).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open GCS reader gs://%s/%s: %w", bucket, key, err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (bs *bucketService) Close() error {
	if bs.storageClient == nil {
		return nil
	}
	return bs.storageClient.Close()
}

// ParseURI splits gs://bucket/key. ok is false for anything that is not a gs:// URI.
func ParseURI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(uri), "gs://")
	if !found {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

var ErrNoObjectStore = errors.New("gs:// path configured but no object store is available")

// Opener reads artifacts from local paths or gs:// URIs.
type Opener struct {
	Store ObjectStore
}

func (o Opener) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if bucket, key, ok := ParseURI(path); ok {
		if o.Store == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoObjectStore, path)
		}
		return o.Store.Open(ctx, bucket, key)
	}
	if strings.HasPrefix(path, "gs://") {
		return nil, fmt.Errorf("malformed gs:// uri %q", path)
	}
	return os.Open(path)
}

// ReadAll opens path and returns its full contents.
func (o Opener) ReadAll(ctx context.Context, path string) ([]byte, error) {
	rc, err := o.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
