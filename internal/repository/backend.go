package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/repair-service/internal/domain"
)

// TableRepairRequests is the logical collection name shared by every backend.
const TableRepairRequests = "repair_requests"

var (
	// ErrNotFound reports a key lookup that matched no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict reports a unique key violation on insert.
	ErrConflict = errors.New("record already exists")
	// ErrNotConfigured is returned by every operation of a backend
	// that was never given credentials.
	ErrNotConfigured = errors.New("backend not configured")
)

// RequestPatch lists the mutable columns of a repair request. Nil
// fields are left untouched.
type RequestPatch struct {
	Status         *domain.RequestStatus
	TechnicianNote *string
}

// Empty reports whether the patch changes nothing.
func (p RequestPatch) Empty() bool {
	return p.Status == nil && p.TechnicianNote == nil
}

// RepairRequestBackend is the queryable record collection behind the store.
type RepairRequestBackend interface {
	// ListOrdered returns all rows ordered by createdAt descending.
	ListOrdered(ctx context.Context) ([]domain.RepairRequest, error)
	GetByID(ctx context.Context, id string) (*domain.RepairRequest, error)
	// Insert stores a fully populated row and returns it as persisted.
	Insert(ctx context.Context, request *domain.RepairRequest) (*domain.RepairRequest, error)
	Update(ctx context.Context, id string, patch RequestPatch) error
	Count(ctx context.Context) (int, error)
}

// RoleRepository resolves role assignments keyed by principal id.
type RoleRepository interface {
	// RoleFor returns ErrNotFound when no assignment exists.
	RoleFor(ctx context.Context, principalID string) (domain.Role, error)
}
