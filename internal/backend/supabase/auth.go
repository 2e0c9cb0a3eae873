package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/domain"
)

// Identity adapts GoTrue (Supabase Auth) to auth.Provider.
type Identity struct {
	auth.Broadcaster

	client      *Client
	redirectURL string
}

// NewIdentity returns a provider that redirects magic links to redirectURL.
func NewIdentity(client *Client, redirectURL string) *Identity {
	return &Identity{client: client, redirectURL: redirectURL}
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type gotrueSession struct {
	AccessToken string     `json:"access_token"`
	ExpiresIn   int64      `json:"expires_in"`
	ExpiresAt   int64      `json:"expires_at"`
	User        gotrueUser `json:"user"`
}

func (s gotrueSession) toDomain() *domain.IdentitySession {
	expiresAt := s.ExpiresAt
	if expiresAt == 0 && s.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
	return &domain.IdentitySession{
		AccessToken: s.AccessToken,
		ExpiresAt:   expiresAt,
		UserID:      s.User.ID,
		Email:       s.User.Email,
	}
}

func (p *Identity) BeginPasswordlessChallenge(ctx context.Context, email string) error {
	req := p.client.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"email": email, "create_user": true})
	if p.redirectURL != "" {
		req.SetQueryParam("redirect_to", p.redirectURL)
	}
	resp, err := req.Post("/auth/v1/otp")
	if err := providerError(resp, err); err != nil {
		return err
	}
	return nil
}

func (p *Identity) SignInWithPassword(ctx context.Context, email, password string) (*domain.IdentitySession, error) {
	resp, err := p.client.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		Post("/auth/v1/token")
	if err := providerError(resp, err); err != nil {
		return nil, err
	}
	var session gotrueSession
	if err := json.Unmarshal(resp.Body(), &session); err != nil {
		return nil, fmt.Errorf("%w: decode session: %w", auth.ErrProviderUnavailable, err)
	}
	p.Emit(auth.SessionChange{Event: auth.SessionSignedIn, UserID: session.User.ID})
	return session.toDomain(), nil
}

// SignUp returns a nil session when the project requires email confirmation.
func (p *Identity) SignUp(ctx context.Context, email, password string) (*domain.IdentitySession, error) {
	resp, err := p.client.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"email": email, "password": password}).
		Post("/auth/v1/signup")
	if err := providerError(resp, err); err != nil {
		return nil, err
	}
	var session gotrueSession
	if err := json.Unmarshal(resp.Body(), &session); err != nil {
		return nil, fmt.Errorf("%w: decode session: %w", auth.ErrProviderUnavailable, err)
	}
	if session.AccessToken == "" {
		return nil, nil
	}
	p.Emit(auth.SessionChange{Event: auth.SessionSignedIn, UserID: session.User.ID})
	return session.toDomain(), nil
}

func (p *Identity) GetCurrentSession(ctx context.Context, accessToken string) (*domain.IdentitySession, error) {
	resp, err := p.client.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		Get("/auth/v1/user")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrProviderUnavailable, err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return nil, auth.ErrInvalidSession
	case resp.IsError():
		return nil, fmt.Errorf("%w: %s", auth.ErrProviderUnavailable, errorMessage(resp))
	}
	var user gotrueUser
	if err := json.Unmarshal(resp.Body(), &user); err != nil || user.ID == "" {
		return nil, auth.ErrInvalidSession
	}
	return &domain.IdentitySession{AccessToken: accessToken, UserID: user.ID, Email: user.Email}, nil
}

func (p *Identity) EndSession(ctx context.Context, accessToken string) error {
	resp, err := p.client.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		Post("/auth/v1/logout")
	if err := providerError(resp, err); err != nil {
		return err
	}
	p.Emit(auth.SessionChange{Event: auth.SessionSignedOut})
	p.client.logger.Debug("supabase session ended")
	return nil
}

// providerError keeps GoTrue's message for client errors so it reaches
// the user, and reports transport and server failures as unavailable.
func providerError(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %w", auth.ErrProviderUnavailable, err)
	}
	if !resp.IsError() {
		return nil
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", auth.ErrProviderUnavailable, errorMessage(resp))
	}
	return &auth.ProviderError{StatusCode: resp.StatusCode(), Message: errorMessage(resp)}
}

var _ auth.Provider = (*Identity)(nil)
