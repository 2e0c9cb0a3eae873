package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
)

// Roles reads role assignments from the profiles table.
type Roles struct {
	client *Client
}

// NewRoles returns a RoleRepository over profiles.
func NewRoles(client *Client) *Roles {
	return &Roles{client: client}
}

func (r *Roles) RoleFor(ctx context.Context, principalID string) (domain.Role, error) {
	resp, err := r.client.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"select": "role",
			"id":     "eq." + principalID,
		}).
		Get("/rest/v1/profiles")
	if err != nil {
		return domain.RoleNone, err
	}
	if resp.IsError() {
		return domain.RoleNone, responseError("role", resp)
	}
	var rows []struct {
		Role *string `json:"role"`
	}
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return domain.RoleNone, fmt.Errorf("decode profile: %w", err)
	}
	if len(rows) == 0 || rows[0].Role == nil {
		return domain.RoleNone, repository.ErrNotFound
	}
	return domain.ParseRole(*rows[0].Role), nil
}
