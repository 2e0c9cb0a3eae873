package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
)

const restPath = "/rest/v1/" + repository.TableRepairRequests

// Records is the PostgREST-backed repair request collection.
type Records struct {
	client *Client
}

// NewRecords returns a RepairRequestBackend over the repair_requests table.
func NewRecords(client *Client) *Records {
	return &Records{client: client}
}

// row mirrors the table's JSON shape; nullable columns use pointers.
type row struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Position       string    `json:"position"`
	Department     string    `json:"department"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Location       string    `json:"location"`
	ProblemType    string    `json:"problem_type"`
	ProblemDetail  string    `json:"problem_detail"`
	Priority       string    `json:"priority"`
	Attachments    []string  `json:"attachments"`
	Status         string    `json:"status"`
	TechnicianNote *string   `json:"technician_note"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (r row) toDomain() domain.RepairRequest {
	out := domain.RepairRequest{
		ID:            r.ID,
		Name:          r.Name,
		Position:      r.Position,
		Department:    r.Department,
		Email:         r.Email,
		Phone:         r.Phone,
		Location:      r.Location,
		ProblemType:   domain.ProblemType(r.ProblemType),
		ProblemDetail: r.ProblemDetail,
		Priority:      domain.RequestPriority(r.Priority),
		Attachments:   r.Attachments,
		Status:        domain.RequestStatus(r.Status),
		CreatedAt:     r.CreatedAt,
	}
	if r.TechnicianNote != nil {
		out.TechnicianNote = *r.TechnicianNote
	}
	if out.Attachments == nil {
		out.Attachments = []string{}
	}
	return out
}

func fromDomain(r *domain.RepairRequest) row {
	out := row{
		ID:            r.ID,
		Name:          r.Name,
		Position:      r.Position,
		Department:    r.Department,
		Email:         r.Email,
		Phone:         r.Phone,
		Location:      r.Location,
		ProblemType:   string(r.ProblemType),
		ProblemDetail: r.ProblemDetail,
		Priority:      string(r.Priority),
		Attachments:   r.Attachments,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
	}
	if r.TechnicianNote != "" {
		note := r.TechnicianNote
		out.TechnicianNote = &note
	}
	return out
}

func decodeRows(body []byte) ([]domain.RepairRequest, error) {
	var rows []row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode repair requests: %w", err)
	}
	out := make([]domain.RepairRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Records) ListOrdered(ctx context.Context) ([]domain.RepairRequest, error) {
	resp, err := s.client.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"select": "*",
			"order":  "createdAt.desc,id.desc",
		}).
		Get(restPath)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, responseError("list", resp)
	}
	return decodeRows(resp.Body())
}

func (s *Records) GetByID(ctx context.Context, id string) (*domain.RepairRequest, error) {
	resp, err := s.client.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"select": "*",
			"id":     "eq." + id,
		}).
		Get(restPath)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, responseError("get", resp)
	}
	records, err := decodeRows(resp.Body())
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, repository.ErrNotFound
	}
	return &records[0], nil
}

func (s *Records) Insert(ctx context.Context, request *domain.RepairRequest) (*domain.RepairRequest, error) {
	resp, err := s.client.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=representation").
		SetBody([]row{fromDomain(request)}).
		Post(restPath)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusConflict {
		return nil, repository.ErrConflict
	}
	if resp.IsError() {
		return nil, responseError("insert", resp)
	}
	records, err := decodeRows(resp.Body())
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("supabase insert: no row returned")
	}
	return &records[0], nil
}

func (s *Records) Update(ctx context.Context, id string, patch repository.RequestPatch) error {
	if patch.Empty() {
		return nil
	}
	body := map[string]any{}
	if patch.Status != nil {
		body["status"] = string(*patch.Status)
	}
	if patch.TechnicianNote != nil {
		body["technician_note"] = *patch.TechnicianNote
	}
	resp, err := s.client.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+id).
		SetBody(body).
		Patch(restPath)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return responseError("update", resp)
	}
	records, err := decodeRows(resp.Body())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Count asks PostgREST for an exact count and reads it from Content-Range.
func (s *Records) Count(ctx context.Context) (int, error) {
	resp, err := s.client.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "count=exact").
		SetQueryParam("select", "id").
		Head(restPath)
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, responseError("count", resp)
	}
	return parseContentRange(resp.Header().Get("Content-Range"))
}

// parseContentRange reads the total from "0-9/42" or "*/0".
func parseContentRange(header string) (int, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return 0, fmt.Errorf("supabase count: missing Content-Range")
	}
	total, err := strconv.Atoi(header[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("supabase count: bad Content-Range %q", header)
	}
	return total, nil
}
