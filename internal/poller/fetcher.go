package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/spec-kit/repair-service/internal/domain"
)

// Lister is satisfied by the in-process store.
type Lister interface {
	ListAll(ctx context.Context) []domain.RepairRequest
}

// FromLister polls an in-process store. Store failures already yield an
// empty collection.
func FromLister(l Lister) FetcherFunc {
	return func(ctx context.Context) ([]domain.RepairRequest, error) {
		return l.ListAll(ctx), nil
	}
}

// HTTPFetcher polls the service's GET /requests endpoint.
type HTTPFetcher struct {
	client *resty.Client
	filter domain.RequestFilter
	token  func() string
}

// NewHTTPFetcher targets baseURL. token, when set, supplies a bearer token per request.
func NewHTTPFetcher(baseURL string, filter domain.RequestFilter, token func() string) *HTTPFetcher {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json")
	return &HTTPFetcher{client: client, filter: filter, token: token}
}

type listEnvelope struct {
	Data []domain.RepairRequest `json:"data"`
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]domain.RepairRequest, error) {
	req := f.client.R().SetContext(ctx)
	if f.filter.Status != "" {
		req.SetQueryParam("status", string(f.filter.Status))
	}
	if f.filter.Search != "" {
		req.SetQueryParam("q", f.filter.Search)
	}
	if f.token != nil {
		if token := f.token(); token != "" {
			req.SetAuthToken(token)
		}
	}
	resp, err := req.Get("/requests")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list requests: status %d", resp.StatusCode())
	}
	var envelope listEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("decode requests: %w", err)
	}
	if envelope.Data == nil {
		envelope.Data = []domain.RepairRequest{}
	}
	return envelope.Data, nil
}
