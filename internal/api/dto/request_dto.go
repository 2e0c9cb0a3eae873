package dto

import (
	"github.com/spec-kit/repair-service/internal/domain"
)

// CreateRepairRequest payload for POST /requests.
type CreateRepairRequest struct {
	Name          string   `json:"name"`
	Position      string   `json:"position"`
	Department    string   `json:"department"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	Location      string   `json:"location"`
	ProblemType   string   `json:"problem_type"`
	ProblemDetail string   `json:"problem_detail"`
	Priority      string   `json:"priority"`
	Attachments   []string `json:"attachments"`
}

// ToDomain converts the payload to creation fields.
func (r CreateRepairRequest) ToDomain() domain.NewRequest {
	return domain.NewRequest{
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
	}
}

// StatusUpdateRequest payload for PATCH /requests/:id/status.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// NoteUpdateRequest payload for PATCH /requests/:id/note.
type NoteUpdateRequest struct {
	TechnicianNote string `json:"technician_note"`
}

// RepairRequestList wraps a listing.
type RepairRequestList struct {
	Data  []domain.RepairRequest `json:"data"`
	Total int                    `json:"total"`
}

// DatabaseView is the table view: every row plus the stored count.
type DatabaseView struct {
	Data    []domain.RepairRequest `json:"data"`
	Total   int                    `json:"total"`
	Columns []string               `json:"columns"`
}

// AttachmentResponse returns the stored reference.
type AttachmentResponse struct {
	URL string `json:"url"`
}

// SeedResponse reports how many sample requests were inserted.
type SeedResponse struct {
	Inserted int `json:"inserted"`
}
