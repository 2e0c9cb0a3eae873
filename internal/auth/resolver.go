package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
	"github.com/spec-kit/repair-service/internal/validation"
)

const (
	defaultIdentityTimeout = 3 * time.Second
	roleCacheTTL           = time.Minute
	revocationTTL          = 24 * time.Hour
	endSessionTimeout      = 10 * time.Second
)

// SignInResult is the outcome of a sign-in attempt. A passwordless
// attempt only issues a challenge and carries no session.
type SignInResult struct {
	ChallengeSent bool
	Session       *domain.IdentitySession
	Principal     domain.Principal
}

type cachedRole struct {
	role      domain.Role
	expiresAt time.Time
}

// Resolver turns access tokens into principals. It never blocks past
// its timeout and never fails closed: any identity failure yields the
// anonymous principal.
type Resolver struct {
	provider    Provider
	roles       repository.RoleRepository
	revocations RevocationStore
	logger      *zap.Logger
	timeout     time.Duration
	now         func() time.Time

	mu    sync.Mutex
	cache map[string]cachedRole

	background sync.WaitGroup
}

// ResolverDependencies bundles collaborators for the resolver.
type ResolverDependencies struct {
	Provider    Provider
	Roles       repository.RoleRepository
	Revocations RevocationStore
	Logger      *zap.Logger
	Timeout     time.Duration
}

// NewResolver wires a resolver and subscribes to provider session changes.
func NewResolver(deps ResolverDependencies) *Resolver {
	r := &Resolver{
		provider:    deps.Provider,
		roles:       deps.Roles,
		revocations: deps.Revocations,
		logger:      deps.Logger,
		timeout:     deps.Timeout,
		now:         time.Now,
		cache:       make(map[string]cachedRole),
	}
	if r.provider == nil {
		r.provider = Unconfigured{}
	}
	if r.roles == nil {
		r.roles = repository.Unconfigured{}
	}
	if r.revocations == nil {
		r.revocations = NewMemoryRevocations()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.timeout <= 0 {
		r.timeout = defaultIdentityTimeout
	}
	r.provider.OnSessionChange(r.handleSessionChange)
	return r
}

// ResolveSession returns the principal for accessToken, or anonymous when
// the token is absent, revoked, invalid, or the provider does not answer
// within the timeout.
func (r *Resolver) ResolveSession(ctx context.Context, accessToken string) domain.Principal {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return domain.Anonymous()
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		session *domain.IdentitySession
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		session, err := r.lookupSession(ctx, accessToken)
		done <- outcome{session: session, err: err}
	}()

	var result outcome
	select {
	case result = <-done:
	case <-ctx.Done():
		r.logger.Warn("identity check did not complete; continuing as anonymous", zap.Duration("timeout", r.timeout))
		return domain.Anonymous()
	}
	if result.err != nil {
		switch {
		case errors.Is(result.err, ErrInvalidSession):
		case errors.Is(result.err, ErrNotConfigured):
			r.logger.Debug("identity provider not configured; continuing as anonymous")
		default:
			r.logger.Warn("session resolution failed; continuing as anonymous", zap.Error(result.err))
		}
		return domain.Anonymous()
	}

	return domain.Principal{
		ID:    result.session.UserID,
		Email: result.session.Email,
		Role:  r.roleFor(ctx, result.session.UserID),
	}
}

func (r *Resolver) lookupSession(ctx context.Context, accessToken string) (*domain.IdentitySession, error) {
	revoked, err := r.revocations.IsRevoked(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidSession
	}
	session, err := r.provider.GetCurrentSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID == "" {
		return nil, ErrInvalidSession
	}
	return session, nil
}

// roleFor never returns admin by default and never demotes a valid
// session to anonymous.
func (r *Resolver) roleFor(ctx context.Context, userID string) domain.Role {
	r.mu.Lock()
	entry, ok := r.cache[userID]
	r.mu.Unlock()
	if ok && entry.expiresAt.After(r.now()) {
		return entry.role
	}

	role, err := r.roles.RoleFor(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		role = domain.RoleUser
	default:
		r.logger.Warn("role lookup failed; using default role", zap.String("user_id", userID), zap.Error(err))
		return domain.RoleUser
	}

	r.mu.Lock()
	r.cache[userID] = cachedRole{role: role, expiresAt: r.now().Add(roleCacheTTL)}
	r.mu.Unlock()
	return role
}

func (r *Resolver) handleSessionChange(change SessionChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if change.UserID == "" {
		r.cache = make(map[string]cachedRole)
		return
	}
	delete(r.cache, change.UserID)
}

// SignIn issues a magic-link challenge when password is empty, otherwise
// signs in with the password.
func (r *Resolver) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	email = strings.TrimSpace(email)
	if !validation.Email(email) {
		return nil, ErrInvalidIdentifier
	}
	if password == "" {
		if err := r.provider.BeginPasswordlessChallenge(ctx, email); err != nil {
			r.logger.Warn("magic link challenge failed", zap.Error(err))
			return nil, err
		}
		return &SignInResult{ChallengeSent: true, Principal: domain.Anonymous()}, nil
	}

	session, err := r.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return r.established(ctx, session), nil
}

// SignUp registers a password account.
func (r *Resolver) SignUp(ctx context.Context, email, password string) (*SignInResult, error) {
	email = strings.TrimSpace(email)
	if !validation.Email(email) {
		return nil, ErrInvalidIdentifier
	}
	session, err := r.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return &SignInResult{ChallengeSent: true, Principal: domain.Anonymous()}, nil
	}
	return r.established(ctx, session), nil
}

// Establish wraps a session obtained outside SignIn, such as a verified
// magic link.
func (r *Resolver) Establish(ctx context.Context, session *domain.IdentitySession) *SignInResult {
	return r.established(ctx, session)
}

func (r *Resolver) established(ctx context.Context, session *domain.IdentitySession) *SignInResult {
	return &SignInResult{
		Session: session,
		Principal: domain.Principal{
			ID:    session.UserID,
			Email: session.Email,
			Role:  r.roleFor(ctx, session.UserID),
		},
	}
}

// SignOut revokes accessToken locally and returns anonymous at once. The
// provider is told in the background; its outcome does not affect the
// result.
func (r *Resolver) SignOut(ctx context.Context, accessToken string) domain.Principal {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return domain.Anonymous()
	}
	if err := r.revocations.Revoke(ctx, accessToken, revocationTTL); err != nil {
		r.logger.Warn("token revocation failed", zap.Error(err))
	}

	r.background.Add(1)
	go func() {
		defer r.background.Done()
		endCtx, cancel := context.WithTimeout(context.Background(), endSessionTimeout)
		defer cancel()
		if err := r.provider.EndSession(endCtx, accessToken); err != nil {
			r.logger.Warn("remote sign-out failed", zap.Error(err))
		}
	}()
	return domain.Anonymous()
}

// Wait blocks until background sign-outs have finished.
func (r *Resolver) Wait() {
	r.background.Wait()
}
