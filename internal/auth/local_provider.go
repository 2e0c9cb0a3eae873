package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
)

// LocalProvider is the built-in identity provider used by the postgres
// and memory backends. Sessions are stateless HS256 tokens.
type LocalProvider struct {
	Broadcaster

	users       repository.UserRepository
	tokens      *TokenManager
	links       MagicLinkStore
	mailer      Mailer
	logger      *zap.Logger
	bcryptCost  int
	linkTTL     time.Duration
	redirectURL string
}

// LocalDependencies bundles collaborators for the local provider.
type LocalDependencies struct {
	Users  repository.UserRepository
	Links  MagicLinkStore
	Mailer Mailer
	Logger *zap.Logger
}

// NewLocalProvider builds the provider from auth configuration.
func NewLocalProvider(cfg config.AuthConfig, deps LocalDependencies) *LocalProvider {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	links := deps.Links
	if links == nil {
		links = NewMemoryMagicLinks()
	}
	mailer := deps.Mailer
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}
	return &LocalProvider{
		users:       deps.Users,
		tokens:      NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		links:       links,
		mailer:      mailer,
		logger:      logger,
		bcryptCost:  cfg.BcryptCost,
		linkTTL:     cfg.MagicLinkTTL(),
		redirectURL: cfg.MagicLinkRedirectURL,
	}
}

// BeginPasswordlessChallenge mails a one-time link, registering the
// address on first use.
func (p *LocalProvider) BeginPasswordlessChallenge(ctx context.Context, email string) error {
	user, err := p.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		user = &domain.User{Email: email}
		err = p.users.Create(ctx, user)
		if errors.Is(err, repository.ErrConflict) {
			user, err = p.users.GetByEmail(ctx, email)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	token := uuid.NewString()
	if err := p.links.Save(ctx, token, user.ID, p.linkTTL); err != nil {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if err := p.mailer.SendMagicLink(ctx, user.Email, p.linkFor(token)); err != nil {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	return nil
}

// VerifyMagicLink exchanges a one-time token for a session.
func (p *LocalProvider) VerifyMagicLink(ctx context.Context, token string) (*domain.IdentitySession, error) {
	userID, err := p.links.Consume(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	return p.issue(user)
}

func (p *LocalProvider) SignInWithPassword(ctx context.Context, email, password string) (*domain.IdentitySession, error) {
	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if ComparePassword(user.PasswordHash, password) != nil {
		return nil, ErrInvalidCredentials
	}
	return p.issue(user)
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*domain.IdentitySession, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password, p.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{Email: email, PasswordHash: hash}
	if err := p.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	return p.issue(user)
}

func (p *LocalProvider) GetCurrentSession(_ context.Context, accessToken string) (*domain.IdentitySession, error) {
	claims, err := p.tokens.ParseToken(accessToken)
	if err != nil {
		return nil, ErrInvalidSession
	}
	session := &domain.IdentitySession{
		AccessToken: accessToken,
		UserID:      claims.Subject,
		Email:       claims.Email,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return session, nil
}

// EndSession announces the sign-out. Tokens stay cryptographically
// valid until expiry; the resolver's revocation store rejects them.
func (p *LocalProvider) EndSession(_ context.Context, accessToken string) error {
	claims, err := p.tokens.ParseToken(accessToken)
	if err != nil {
		return nil
	}
	p.Emit(SessionChange{Event: SessionSignedOut, UserID: claims.Subject})
	return nil
}

func (p *LocalProvider) issue(user *domain.User) (*domain.IdentitySession, error) {
	token, expiresAt, err := p.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	p.Emit(SessionChange{Event: SessionSignedIn, UserID: user.ID})
	return &domain.IdentitySession{
		AccessToken: token,
		ExpiresAt:   expiresAt.Unix(),
		UserID:      user.ID,
		Email:       user.Email,
	}, nil
}

func (p *LocalProvider) linkFor(token string) string {
	base := p.redirectURL
	if base == "" {
		return token
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}
