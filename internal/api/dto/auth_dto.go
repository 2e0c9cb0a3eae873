package dto

import "github.com/spec-kit/repair-service/internal/domain"

// SignInRequest payload for password and magic-link sign-in. An empty
// password asks for a magic link.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest payload for new accounts.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyMagicLinkRequest exchanges a one-time token for a session.
type VerifyMagicLinkRequest struct {
	Token string `json:"token"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token         string           `json:"token,omitempty"`
	ExpiresAt     int64            `json:"expires_at,omitempty"`
	ChallengeSent bool             `json:"challenge_sent,omitempty"`
	Principal     domain.Principal `json:"principal"`
}
