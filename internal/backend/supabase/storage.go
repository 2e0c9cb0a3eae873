package supabase

import (
	"context"
	"io"
	"net/url"
	"strings"
)

// Storage adapts Supabase Storage to the attachment service.
type Storage struct {
	client *Client
}

// NewStorage returns an ObjectStorage over the project's buckets.
func NewStorage(client *Client) *Storage {
	return &Storage{client: client}
}

func (s *Storage) Upload(ctx context.Context, bucket, path string, body io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req := s.client.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "false").
		SetBody(body)
	if size > 0 {
		req.SetContentLength(true)
	}
	resp, err := req.Post("/storage/v1/object/" + objectPath(bucket, path))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return responseError("upload", resp)
	}
	return nil
}

// PublicURL does not check that the object exists.
func (s *Storage) PublicURL(bucket, path string) string {
	return s.client.url + "/storage/v1/object/public/" + objectPath(bucket, path)
}

func objectPath(bucket, path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}
