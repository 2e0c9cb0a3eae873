package events

import (
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestCreated       EventType = "request_created"
	EventRequestStatusChanged EventType = "request_status_changed"
	EventRequestNoteUpdated   EventType = "request_note_updated"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	PrincipalID string      `json:"principal_id,omitempty"`
	Role        domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	ProblemType domain.ProblemType     `json:"problem_type"`
	Priority    domain.RequestPriority `json:"priority"`
	Department  string                 `json:"department"`
	Location    string                 `json:"location"`
}

// RequestStatusChangedPayload payload.
type RequestStatusChangedPayload struct {
	OldStatus domain.RequestStatus `json:"old_status"`
	NewStatus domain.RequestStatus `json:"new_status"`
}

// RequestNoteUpdatedPayload payload.
type RequestNoteUpdatedPayload struct {
	NotePreview string `json:"note_preview"`
}
