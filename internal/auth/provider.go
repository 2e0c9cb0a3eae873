// Package auth resolves callers to principals and gates routes by role.
package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/spec-kit/repair-service/internal/domain"
)

var (
	// ErrNotConfigured is returned by every operation of an unconfigured provider.
	ErrNotConfigured = errors.New("identity provider not configured")
	// ErrInvalidIdentifier rejects a sign-in identifier that is not an email address.
	ErrInvalidIdentifier = errors.New("identifier must be a valid email address")
	// ErrInvalidCredentials rejects a wrong password or an unknown one-time link.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrInvalidSession reports a missing, expired or revoked access token.
	ErrInvalidSession = errors.New("invalid session")
	// ErrAccountExists rejects a sign-up for an email that is already registered.
	ErrAccountExists = errors.New("user already registered")
	// ErrWeakPassword rejects a sign-up password below the minimum length.
	ErrWeakPassword = errors.New("password should be at least 6 characters")
	// ErrProviderUnavailable reports a provider that could not be reached.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// ProviderError carries a message returned by a remote identity provider.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// SessionEvent names a session transition reported by a provider.
type SessionEvent string

const (
	SessionSignedIn  SessionEvent = "SIGNED_IN"
	SessionSignedOut SessionEvent = "SIGNED_OUT"
)

// SessionChange describes a session transition for a user.
type SessionChange struct {
	Event  SessionEvent
	UserID string
}

// SessionListener receives session transitions.
type SessionListener func(SessionChange)

// Provider is an identity provider supporting passwordless and password flows.
type Provider interface {
	BeginPasswordlessChallenge(ctx context.Context, email string) error
	SignInWithPassword(ctx context.Context, email, password string) (*domain.IdentitySession, error)
	// SignUp may return a nil session when the provider requires
	// confirmation before the first sign-in.
	SignUp(ctx context.Context, email, password string) (*domain.IdentitySession, error)
	GetCurrentSession(ctx context.Context, accessToken string) (*domain.IdentitySession, error)
	OnSessionChange(listener SessionListener)
	EndSession(ctx context.Context, accessToken string) error
}

// Broadcaster fans session changes out to registered listeners.
// Providers embed it to satisfy OnSessionChange.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners []SessionListener
}

// OnSessionChange registers listener.
func (b *Broadcaster) OnSessionChange(listener SessionListener) {
	if listener == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

// Emit notifies every listener synchronously.
func (b *Broadcaster) Emit(change SessionChange) {
	b.mu.RLock()
	listeners := append([]SessionListener{}, b.listeners...)
	b.mu.RUnlock()
	for _, listener := range listeners {
		listener(change)
	}
}

// Unconfigured stands in when no provider credentials are present.
type Unconfigured struct{}

func (Unconfigured) BeginPasswordlessChallenge(context.Context, string) error {
	return ErrNotConfigured
}

func (Unconfigured) SignInWithPassword(context.Context, string, string) (*domain.IdentitySession, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) SignUp(context.Context, string, string) (*domain.IdentitySession, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) GetCurrentSession(context.Context, string) (*domain.IdentitySession, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) OnSessionChange(SessionListener) {}

func (Unconfigured) EndSession(context.Context, string) error {
	return ErrNotConfigured
}
