// Package supabase adapts the hosted Supabase REST, auth and storage
// APIs to the service's backend interfaces.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/config"
)

const defaultTimeout = 10 * time.Second

// Client is one configured handle shared by every adapter.
type Client struct {
	http   *resty.Client
	url    string
	logger *zap.Logger
}

// NewClient configures resty for the project at cfg.URL.
func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(defaultTimeout).
		SetHeader("apikey", cfg.APIKey).
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept", "application/json")
	return &Client{http: httpClient, url: cfg.URL, logger: logger}
}

// Ping checks that the REST endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/rest/v1/")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return responseError("ping", resp)
	}
	return nil
}

// apiError is the error body shared by PostgREST, GoTrue and storage.
type apiError struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Code             any    `json:"code"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Message, e.Msg, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func errorMessage(resp *resty.Response) string {
	var body apiError
	if err := json.Unmarshal(resp.Body(), &body); err != nil || body.text() == "" {
		return http.StatusText(resp.StatusCode())
	}
	return body.text()
}

// responseError turns a non-2xx response into an error carrying the
// backend's message.
func responseError(op string, resp *resty.Response) error {
	return fmt.Errorf("supabase %s: %s (%d)", op, errorMessage(resp), resp.StatusCode())
}
