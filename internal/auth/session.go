package auth

import (
	"context"
	"sync"

	"github.com/spec-kit/repair-service/internal/domain"
)

// Session holds the signed-in state of a single client, such as the
// watch CLI. Reads never wait on the network.
type Session struct {
	resolver *Resolver

	mu        sync.RWMutex
	token     string
	principal domain.Principal
}

// NewSession starts anonymous.
func NewSession(resolver *Resolver) *Session {
	return &Session{resolver: resolver, principal: domain.Anonymous()}
}

// Principal returns the current caller.
func (s *Session) Principal() domain.Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal
}

// AccessToken returns the current token, empty when signed out.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SignIn signs in and adopts the resulting session. A magic-link
// challenge leaves the session unchanged.
func (s *Session) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	result, err := s.resolver.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if result.Session != nil {
		s.adopt(result.Session.AccessToken, result.Principal)
	}
	return result, nil
}

// Restore resolves a previously issued token.
func (s *Session) Restore(ctx context.Context, token string) domain.Principal {
	principal := s.resolver.ResolveSession(ctx, token)
	if principal.Authenticated() {
		s.adopt(token, principal)
	} else {
		s.adopt("", principal)
	}
	return principal
}

// SignOut clears local state before the provider is contacted.
func (s *Session) SignOut(ctx context.Context) {
	s.mu.Lock()
	token := s.token
	s.token = ""
	s.principal = domain.Anonymous()
	s.mu.Unlock()
	s.resolver.SignOut(ctx, token)
}

func (s *Session) adopt(token string, principal domain.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.principal = principal
}
