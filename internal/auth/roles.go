package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/domain"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// RequirePrivileged admits admin and staff principals.
func RequirePrivileged() fiber.Handler {
	return RequireRole(domain.RoleAdmin, domain.RoleStaff)
}

// RequireRole admits principals holding one of allowed.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal := PrincipalFromContext(c)
		if !principal.Authenticated() {
			return apperrors.NewUnauthorized("sign in required")
		}
		if !principal.HasRole(allowed...) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
