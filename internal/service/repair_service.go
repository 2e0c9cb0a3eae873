package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/store"
	"github.com/spec-kit/repair-service/internal/validation"
)

const maxNoteLength = 5000

var (
	// ErrForbidden rejects a mutation by a principal without a privileged role.
	ErrForbidden = errors.New("principal may not modify repair requests")
	// ErrInvalidStatus rejects a status outside the known set.
	ErrInvalidStatus = errors.New("invalid repair request status")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("invalid repair request")
)

// ValidationError lists offending fields and the rule each one broke.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, rule := range e.Fields {
		parts = append(parts, field+":"+rule)
	}
	return "invalid repair request: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RepairService decides whether lifecycle mutations are permitted and
// applies them through the store.
type RepairService struct {
	store      *store.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// RepairDependencies bundles collaborators for the repair service.
type RepairDependencies struct {
	Store      *store.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewRepairService constructs the service.
func NewRepairService(deps RepairDependencies) *RepairService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepairService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// Submit creates a repair request. Any principal, anonymous included,
// may submit.
func (s *RepairService) Submit(ctx context.Context, principal domain.Principal, input domain.NewRequest) (*domain.RepairRequest, error) {
	input = input.Normalize()
	if fields := validation.Struct(input); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	request, err := s.store.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestCreated,
		RequestID: request.ID,
		Actor:     actorOf(principal),
		Payload: events.RequestCreatedPayload{
			ProblemType: request.ProblemType,
			Priority:    request.Priority,
			Department:  request.Department,
			Location:    request.Location,
		},
	})
	return request, nil
}

// List returns the requests matching filter, newest first.
func (s *RepairService) List(ctx context.Context, filter domain.RequestFilter) []domain.RepairRequest {
	return filter.Apply(s.store.ListAll(ctx))
}

// Get looks up a single request.
func (s *RepairService) Get(ctx context.Context, id string) (*domain.RepairRequest, error) {
	return s.store.GetByID(ctx, id)
}

// Count returns the total number of requests.
func (s *RepairService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// UpdateStatus moves a request along the lifecycle. Repeating the
// current status is a no-op success.
func (s *RepairService) UpdateStatus(ctx context.Context, principal domain.Principal, id string, next domain.RequestStatus) (*domain.RepairRequest, error) {
	if !principal.Privileged() {
		return nil, ErrForbidden
	}
	if !next.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}

	request, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(request.Status, next); err != nil {
		return nil, err
	}
	if request.Status == next {
		return request, nil
	}

	previous := request.Status
	if err := s.store.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	request.Status = next
	request = s.reread(ctx, request)

	s.logger.Info("repair request status changed",
		zap.String("request_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(next)),
		zap.String("principal_id", principal.ID))
	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestStatusChanged,
		RequestID: id,
		Actor:     actorOf(principal),
		Payload: events.RequestStatusChangedPayload{
			OldStatus: previous,
			NewStatus: next,
		},
	})
	return request, nil
}

// UpdateNote overwrites the technician note at any lifecycle state.
func (s *RepairService) UpdateNote(ctx context.Context, principal domain.Principal, id, note string) (*domain.RepairRequest, error) {
	if !principal.Privileged() {
		return nil, ErrForbidden
	}
	if utf8.RuneCountInString(note) > maxNoteLength {
		return nil, &ValidationError{Fields: map[string]string{"technician_note": "max"}}
	}

	request, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateNote(ctx, id, note); err != nil {
		return nil, err
	}
	request.TechnicianNote = note
	request = s.reread(ctx, request)

	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestNoteUpdated,
		RequestID: id,
		Actor:     actorOf(principal),
		Payload:   events.RequestNoteUpdatedPayload{NotePreview: stringPreview(note, 120)},
	})
	return request, nil
}

// reread returns the stored record after a mutation, falling back to the
// locally patched copy when the read fails.
func (s *RepairService) reread(ctx context.Context, patched *domain.RepairRequest) *domain.RepairRequest {
	stored, err := s.store.GetByID(ctx, patched.ID)
	if err != nil {
		s.logger.Warn("re-read after update failed", zap.String("request_id", patched.ID), zap.Error(err))
		return patched
	}
	return stored
}

func (s *RepairService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func actorOf(principal domain.Principal) events.Actor {
	return events.Actor{PrincipalID: principal.ID, Role: principal.Role}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
