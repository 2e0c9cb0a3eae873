package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrAttachmentTooLarge rejects uploads above the configured limit.
	ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")
	// ErrAttachmentEmpty rejects zero-byte uploads.
	ErrAttachmentEmpty = errors.New("attachment is empty")
	// ErrStorageUnavailable reports a failed or unconfigured object store.
	ErrStorageUnavailable = errors.New("attachment storage unavailable")
)

// ObjectStorage stores opaque blobs and exposes them by public URL.
type ObjectStorage interface {
	Upload(ctx context.Context, bucket, path string, body io.Reader, size int64, contentType string) error
	PublicURL(bucket, path string) string
}

// UnconfiguredStorage rejects every upload.
type UnconfiguredStorage struct{}

func (UnconfiguredStorage) Upload(context.Context, string, string, io.Reader, int64, string) error {
	return ErrStorageUnavailable
}

func (UnconfiguredStorage) PublicURL(string, string) string { return "" }

// AttachmentService turns uploaded files into durable reference URLs.
type AttachmentService struct {
	storage  ObjectStorage
	bucket   string
	maxBytes int64
	logger   *zap.Logger
	now      func() time.Time
}

// NewAttachmentService constructs the service. A nil storage behaves as unconfigured.
func NewAttachmentService(storage ObjectStorage, bucket string, maxBytes int64, logger *zap.Logger) *AttachmentService {
	if storage == nil {
		storage = UnconfiguredStorage{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentService{
		storage:  storage,
		bucket:   bucket,
		maxBytes: maxBytes,
		logger:   logger,
		now:      time.Now,
	}
}

// Upload stores body under a generated name and returns its public URL.
// The uploaded filename contributes only its extension.
func (s *AttachmentService) Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (string, error) {
	if size == 0 {
		return "", ErrAttachmentEmpty
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrAttachmentTooLarge, size, s.maxBytes)
	}

	path := s.objectName(filename)
	if err := s.storage.Upload(ctx, s.bucket, path, body, size, contentType); err != nil {
		s.logger.Error("attachment upload failed", zap.String("path", path), zap.Error(err))
		if errors.Is(err, ErrStorageUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	url := s.storage.PublicURL(s.bucket, path)
	s.logger.Info("attachment stored", zap.String("path", path), zap.Int64("size", size))
	return url, nil
}

func (s *AttachmentService) objectName(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s_%d.%s", strings.ReplaceAll(uuid.NewString(), "-", ""), s.now().Unix(), ext)
}
