package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/connectivity-demand/internal/platform/apierr"
	"github.com/yungbote/connectivity-demand/internal/platform/gcp"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
	"github.com/yungbote/connectivity-demand/internal/predict"
	"github.com/yungbote/connectivity-demand/internal/router"
)

const (
	maxUploadBytes = 32 << 20
	// Room for multipart boundaries and the service_type field.
	maxUploadBody = maxUploadBytes + 1<<20
)

// UploadStore persists an uploaded dataset under key and returns where it went.
type UploadStore interface {
	Save(ctx context.Context, key string, r io.Reader) (string, error)
}

// LocalUploadStore writes under Dir, replacing any existing file.
type LocalUploadStore struct {
	Dir string
}

func (s LocalUploadStore) Save(_ context.Context, key string, r io.Reader) (string, error) {
	dst := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	return dst, nil
}

// BucketUploadStore writes to a GCS bucket.
type BucketUploadStore struct {
	Store  gcp.ObjectStore
	Bucket string
}

func (s BucketUploadStore) Save(ctx context.Context, key string, r io.Reader) (string, error) {
	if err := s.Store.Write(ctx, s.Bucket, key, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", s.Bucket, key), nil
}

type UploadHandler struct {
	log   *logger.Logger
	store UploadStore
}

func NewUploadHandler(log *logger.Logger, store UploadStore) *UploadHandler {
	return &UploadHandler{log: log.With("handler", "UploadHandler"), store: store}
}

// POST /upload (deprecated, multipart/form-data)
// fields: "file", "service_type"
func (h *UploadHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, apierr.Validation("file", "file exceeds %d bytes", maxUploadBytes))
			return
		}
		writeError(c, apierr.Validation("file", "file is required"))
		return
	}
	svc, err := router.ParseServiceType(c.PostForm("service_type"))
	if err != nil {
		writeError(c, apierr.WithField(apierr.KindUnsupportedService, predict.FieldServiceType, err))
		return
	}
	if fh.Size > maxUploadBytes {
		writeError(c, apierr.Validation("file", "file exceeds %d bytes", maxUploadBytes))
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, apierr.Validation("file", "file could not be read"))
		return
	}
	defer f.Close()

	key := path.Join("datasets", string(svc)+"_uploaded.csv")
	where, err := h.store.Save(c.Request.Context(), key, io.LimitReader(f, maxUploadBytes))
	if err != nil {
		writeError(c, apierr.New(apierr.KindInternal, fmt.Errorf("store upload: %w", err)))
		return
	}
	h.log.Info("Dataset uploaded", "service_type", svc, "file_path", where, "bytes", fh.Size)
	c.JSON(http.StatusOK, gin.H{"status": "Dataset uploaded successfully for " + string(svc), "file_path": where})
}
