package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/api/dto"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/domain"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// MagicLinkVerifier is implemented by providers that issue their own
// one-time links.
type MagicLinkVerifier interface {
	VerifyMagicLink(ctx context.Context, token string) (*domain.IdentitySession, error)
}

// AuthHandler exposes sign-in, sign-up and session endpoints.
type AuthHandler struct {
	resolver *auth.Resolver
	verifier MagicLinkVerifier
}

// NewAuthHandler constructs handler. verifier may be nil.
func NewAuthHandler(resolver *auth.Resolver, verifier MagicLinkVerifier) *AuthHandler {
	return &AuthHandler{resolver: resolver, verifier: verifier}
}

// MagicLink handles POST /auth/magic-link.
func (h *AuthHandler) MagicLink(c *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.resolver.SignIn(c.UserContext(), req.Email, "")
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": authResponse(result)})
}

// VerifyMagicLink handles POST /auth/magic-link/verify.
func (h *AuthHandler) VerifyMagicLink(c *fiber.Ctx) error {
	if h.verifier == nil {
		return fiber.NewError(http.StatusNotFound, "magic links are verified by the identity provider")
	}
	var req dto.VerifyMagicLinkRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return apperrors.NewValidationError("token required", nil)
	}
	session, err := h.verifier.VerifyMagicLink(c.UserContext(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authResponse(h.resolver.Establish(c.UserContext(), session))})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Password == "" {
		return apperrors.NewValidationError("password required", nil)
	}
	result, err := h.resolver.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authResponse(result)})
}

// SignUp handles POST /auth/signup.
func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var req dto.SignUpRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.resolver.SignUp(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": authResponse(result)})
}

// Logout handles POST /auth/logout. It succeeds even when the provider is unreachable.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal := h.resolver.SignOut(c.UserContext(), auth.TokenFromContext(c))
	return c.JSON(fiber.Map{"data": dto.AuthResponse{Principal: principal}})
}

// Session handles GET /auth/session.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.AuthResponse{Principal: auth.PrincipalFromContext(c)}})
}

func authResponse(result *auth.SignInResult) dto.AuthResponse {
	resp := dto.AuthResponse{
		ChallengeSent: result.ChallengeSent,
		Principal:     result.Principal,
	}
	if result.Session != nil {
		resp.Token = result.Session.AccessToken
		resp.ExpiresAt = result.Session.ExpiresAt
	}
	return resp
}
