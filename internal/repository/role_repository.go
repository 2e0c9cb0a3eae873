package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-service/internal/domain"
)

type roleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository reads role assignments from the profiles table.
func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) RoleFor(ctx context.Context, principalID string) (domain.Role, error) {
	const query = `SELECT role FROM profiles WHERE id=$1`
	var role string
	if err := r.pool.QueryRow(ctx, query, principalID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RoleNone, ErrNotFound
		}
		return domain.RoleNone, err
	}
	return domain.ParseRole(role), nil
}
