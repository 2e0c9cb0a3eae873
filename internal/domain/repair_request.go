package domain

import (
	"strings"
	"time"
)

// RequestStatus enumerates lifecycle states for repair requests.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusInProgress RequestStatus = "in_progress"
	StatusCompleted  RequestStatus = "completed"
	StatusCancelled  RequestStatus = "cancelled"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []RequestStatus{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}

// Valid reports whether s is one of the four known statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// RequestPriority enumerates urgency.
type RequestPriority string

const (
	PriorityLow    RequestPriority = "low"
	PriorityMedium RequestPriority = "medium"
	PriorityHigh   RequestPriority = "high"
	PriorityUrgent RequestPriority = "urgent"
)

func (p RequestPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ProblemType classifies the reported issue.
type ProblemType string

const (
	ProblemHardware ProblemType = "hardware"
	ProblemSoftware ProblemType = "software"
	ProblemNetwork  ProblemType = "network"
	ProblemOther    ProblemType = "other"
)

func (p ProblemType) Valid() bool {
	switch p {
	case ProblemHardware, ProblemSoftware, ProblemNetwork, ProblemOther:
		return true
	}
	return false
}

// ParseStatus normalizes and validates a status string.
func ParseStatus(raw string) (RequestStatus, bool) {
	s := RequestStatus(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// RepairRequest is the single ticket aggregate. Requester fields,
// problem description, priority and attachments never change after
// creation; only Status and TechnicianNote are mutable.
type RepairRequest struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Position       string          `json:"position"`
	Department     string          `json:"department"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Location       string          `json:"location"`
	ProblemType    ProblemType     `json:"problem_type"`
	ProblemDetail  string          `json:"problem_detail"`
	Priority       RequestPriority `json:"priority"`
	Attachments    []string        `json:"attachments"`
	Status         RequestStatus   `json:"status"`
	TechnicianNote string          `json:"technician_note"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// NewRequest carries the requester-supplied fields accepted at creation.
type NewRequest struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Position      string          `json:"position" validate:"required,max=200"`
	Department    string          `json:"department" validate:"required,max=200"`
	Email         string          `json:"email" validate:"required,email"`
	Phone         string          `json:"phone" validate:"required,max=50"`
	Location      string          `json:"location" validate:"required,max=200"`
	ProblemType   ProblemType     `json:"problem_type" validate:"required,oneof=hardware software network other"`
	ProblemDetail string          `json:"problem_detail" validate:"required,max=5000"`
	Priority      RequestPriority `json:"priority" validate:"required,oneof=low medium high urgent"`
	Attachments   []string        `json:"attachments" validate:"max=5,dive,url"`
}

// Normalize trims whitespace from free-text fields.
func (n NewRequest) Normalize() NewRequest {
	n.Name = strings.TrimSpace(n.Name)
	n.Position = strings.TrimSpace(n.Position)
	n.Department = strings.TrimSpace(n.Department)
	n.Email = strings.TrimSpace(n.Email)
	n.Phone = strings.TrimSpace(n.Phone)
	n.Location = strings.TrimSpace(n.Location)
	n.ProblemDetail = strings.TrimSpace(n.ProblemDetail)
	n.ProblemType = ProblemType(strings.ToLower(strings.TrimSpace(string(n.ProblemType))))
	n.Priority = RequestPriority(strings.ToLower(strings.TrimSpace(string(n.Priority))))
	if n.Attachments == nil {
		n.Attachments = []string{}
	}
	return n
}

// RequestFilter narrows a listing. Zero value matches everything.
type RequestFilter struct {
	Status RequestStatus
	Search string
}

// Matches applies the filter to a single record. Search is a
// case-insensitive substring match on ID or email.
func (f RequestFilter) Matches(r RepairRequest) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		return strings.Contains(strings.ToLower(r.ID), term) ||
			strings.Contains(strings.ToLower(r.Email), term)
	}
	return true
}

// Apply returns the matching records, preserving order.
func (f RequestFilter) Apply(records []RepairRequest) []RepairRequest {
	out := make([]RepairRequest, 0, len(records))
	for _, r := range records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}
