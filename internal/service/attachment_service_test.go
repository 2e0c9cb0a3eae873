package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"
)

type capturingStorage struct {
	bucket, path, contentType string
	body                      []byte
	err                       error
}

func (c *capturingStorage) Upload(_ context.Context, bucket, path string, body io.Reader, _ int64, contentType string) error {
	if c.err != nil {
		return c.err
	}
	c.bucket, c.path, c.contentType = bucket, path, contentType
	c.body, _ = io.ReadAll(body)
	return nil
}

func (c *capturingStorage) PublicURL(bucket, path string) string {
	return "https://files.example.com/" + bucket + "/" + path
}

func TestAttachmentUploadNaming(t *testing.T) {
	storage := &capturingStorage{}
	svc := NewAttachmentService(storage, "repair-attachments", 1024, nil)
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }

	url, err := svc.Upload(context.Background(), "Screen Photo.JPG", "image/jpeg", 5, bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{32}_1700000000\.jpg$`).MatchString(storage.path) {
		t.Errorf("path = %q", storage.path)
	}
	if storage.bucket != "repair-attachments" || string(storage.body) != "hello" {
		t.Errorf("stored %q in %q", storage.body, storage.bucket)
	}
	if !strings.HasSuffix(url, "/repair-attachments/"+storage.path) {
		t.Errorf("url = %q", url)
	}
}

func TestAttachmentUploadLimits(t *testing.T) {
	svc := NewAttachmentService(&capturingStorage{}, "b", 4, nil)
	if _, err := svc.Upload(context.Background(), "a.png", "image/png", 5, strings.NewReader("12345")); !errors.Is(err, ErrAttachmentTooLarge) {
		t.Errorf("oversize error = %v", err)
	}
	if _, err := svc.Upload(context.Background(), "a.png", "image/png", 0, strings.NewReader("")); !errors.Is(err, ErrAttachmentEmpty) {
		t.Errorf("empty error = %v", err)
	}
}

func TestAttachmentUploadFailures(t *testing.T) {
	svc := NewAttachmentService(nil, "b", 0, nil)
	if _, err := svc.Upload(context.Background(), "a", "", 1, strings.NewReader("x")); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("unconfigured error = %v", err)
	}

	svc = NewAttachmentService(&capturingStorage{err: errors.New("bucket missing")}, "b", 0, nil)
	if _, err := svc.Upload(context.Background(), "a.pdf", "", 1, strings.NewReader("x")); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("backend error = %v", err)
	}
}
