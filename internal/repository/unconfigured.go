package repository

import (
	"context"

	"github.com/spec-kit/repair-service/internal/domain"
)

// Unconfigured stands in for a backend missing its credentials. Every
// operation fails with ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) ListOrdered(context.Context) ([]domain.RepairRequest, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) GetByID(context.Context, string) (*domain.RepairRequest, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) Insert(context.Context, *domain.RepairRequest) (*domain.RepairRequest, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) Update(context.Context, string, RequestPatch) error {
	return ErrNotConfigured
}

func (Unconfigured) Count(context.Context) (int, error) {
	return 0, ErrNotConfigured
}

func (Unconfigured) RoleFor(context.Context, string) (domain.Role, error) {
	return domain.RoleNone, ErrNotConfigured
}
