package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/spec-kit/repair-service/internal/domain"
)

const (
	principalKey = "auth_principal"
	tokenKeyName = "auth_token"
)

// Authenticate resolves the bearer token, if any, and stores the
// principal in locals. It never rejects a request; gates do that.
func Authenticate(resolver *Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c)
		principal := resolver.ResolveSession(c.UserContext(), token)
		c.Locals(principalKey, principal)
		c.Locals(tokenKeyName, token)
		return c.Next()
	}
}

// BearerToken extracts the token from the Authorization header. The
// result is a copy and outlives the request.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.SplitN(utils.CopyString(c.Get(fiber.HeaderAuthorization)), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// PrincipalFromContext retrieves the resolved caller, anonymous when
// Authenticate did not run.
func PrincipalFromContext(c *fiber.Ctx) domain.Principal {
	if principal, ok := c.Locals(principalKey).(domain.Principal); ok {
		return principal
	}
	return domain.Anonymous()
}

// TokenFromContext returns the bearer token seen by Authenticate.
func TokenFromContext(c *fiber.Ctx) string {
	token, _ := c.Locals(tokenKeyName).(string)
	return token
}
