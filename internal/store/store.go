// Package store is the authoritative repair request collection. It
// owns id and timestamp assignment and converts every backend failure
// into a documented result so callers never see raw transport errors.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
)

var (
	// ErrNotFound reports an id that matches no record.
	ErrNotFound = errors.New("repair request not found")
	// ErrUnavailable reports a backend that could not be reached or
	// answered with an error.
	ErrUnavailable = errors.New("repair request store unavailable")
	// ErrCreateFailed reports a create that did not persist.
	ErrCreateFailed = errors.New("repair request could not be created")
)

const maxIDAttempts = 3

// Store wraps a RepairRequestBackend with the failure policy.
type Store struct {
	backend repository.RepairRequestBackend
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the timestamp source for createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// New builds a store over backend. A nil backend behaves as unconfigured.
func New(backend repository.RepairRequestBackend, logger *zap.Logger, opts ...Option) *Store {
	if backend == nil {
		backend = repository.Unconfigured{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		backend: backend,
		logger:  logger,
		now:     time.Now,
		newID:   GenerateID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateID returns a short display-friendly request id.
func GenerateID() string {
	return "REQ-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// ListAll returns every record, newest first. Backend failures yield
// an empty slice.
func (s *Store) ListAll(ctx context.Context) []domain.RepairRequest {
	records, err := s.backend.ListOrdered(ctx)
	if err != nil {
		s.logFailure("list", err)
		return []domain.RepairRequest{}
	}
	if records == nil {
		return []domain.RepairRequest{}
	}
	return records
}

// GetByID returns the record or an error matching ErrNotFound or ErrUnavailable.
func (s *Store) GetByID(ctx context.Context, id string) (*domain.RepairRequest, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	record, err := s.backend.GetByID(ctx, id)
	if err != nil {
		return nil, s.classify("get", id, err)
	}
	return record, nil
}

// Create persists a new pending request. On failure it returns nil and
// an error matching ErrCreateFailed.
func (s *Store) Create(ctx context.Context, fields domain.NewRequest) (*domain.RepairRequest, error) {
	attachments := append([]string{}, fields.Attachments...)
	record := domain.RepairRequest{
		Name:          fields.Name,
		Position:      fields.Position,
		Department:    fields.Department,
		Email:         fields.Email,
		Phone:         fields.Phone,
		Location:      fields.Location,
		ProblemType:   fields.ProblemType,
		ProblemDetail: fields.ProblemDetail,
		Priority:      fields.Priority,
		Attachments:   attachments,
		Status:        domain.StatusPending,
		CreatedAt:     s.now().UTC(),
	}

	var lastErr error
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		record.ID = s.newID()
		created, err := s.backend.Insert(ctx, &record)
		if err == nil {
			return created, nil
		}
		lastErr = err
		if !errors.Is(err, repository.ErrConflict) {
			break
		}
		s.logger.Warn("repair request id collision", zap.String("id", record.ID))
	}
	s.logFailure("create", lastErr)
	return nil, fmt.Errorf("%w: %w", ErrCreateFailed, lastErr)
}

// UpdateStatus overwrites only the status field. It does not judge
// whether the transition is legal.
func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	if err := s.backend.Update(ctx, id, repository.RequestPatch{Status: &status}); err != nil {
		return s.classify("update status", id, err)
	}
	return nil
}

// UpdateNote overwrites only the technician note.
func (s *Store) UpdateNote(ctx context.Context, id, note string) error {
	if err := s.backend.Update(ctx, id, repository.RequestPatch{TechnicianNote: &note}); err != nil {
		return s.classify("update note", id, err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	count, err := s.backend.Count(ctx)
	if err != nil {
		s.logFailure("count", err)
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return count, nil
}

func (s *Store) classify(op, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Debug("repair request not found", zap.String("op", op), zap.String("id", id))
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.logFailure(op, err)
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func (s *Store) logFailure(op string, err error) {
	if errors.Is(err, repository.ErrNotConfigured) {
		s.logger.Warn("repair request store not configured", zap.String("op", op))
		return
	}
	s.logger.Error("repair request store failure", zap.String("op", op), zap.Error(err))
}
