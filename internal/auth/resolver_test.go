package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
)

// stubProvider answers sessions from a fixed table and can be made to block.
type stubProvider struct {
	Broadcaster
	sessions map[string]domain.IdentitySession
	block    chan struct{}
	endCalls atomic.Int32
	endBlock chan struct{}
	lastOTP  string
}

func (s *stubProvider) BeginPasswordlessChallenge(_ context.Context, email string) error {
	s.lastOTP = email
	return nil
}

func (s *stubProvider) SignInWithPassword(_ context.Context, email, password string) (*domain.IdentitySession, error) {
	if password != "correct horse" {
		return nil, &ProviderError{StatusCode: 400, Message: "Invalid login credentials"}
	}
	for _, session := range s.sessions {
		if session.Email == email {
			session := session
			return &session, nil
		}
	}
	return nil, ErrInvalidCredentials
}

func (s *stubProvider) SignUp(context.Context, string, string) (*domain.IdentitySession, error) {
	return nil, nil
}

func (s *stubProvider) GetCurrentSession(ctx context.Context, token string) (*domain.IdentitySession, error) {
	if s.block != nil {
		<-s.block
	}
	session, ok := s.sessions[token]
	if !ok {
		return nil, ErrInvalidSession
	}
	return &session, nil
}

func (s *stubProvider) EndSession(context.Context, string) error {
	if s.endBlock != nil {
		<-s.endBlock
	}
	s.endCalls.Add(1)
	return nil
}

type failingRoles struct{}

func (failingRoles) RoleFor(context.Context, string) (domain.Role, error) {
	return "", errors.New("connection refused")
}

func newStub() *stubProvider {
	return &stubProvider{sessions: map[string]domain.IdentitySession{
		"tok-admin": {AccessToken: "tok-admin", UserID: "u-admin", Email: "admin@company.com"},
		"tok-staff": {AccessToken: "tok-staff", UserID: "u-staff", Email: "tech@company.com"},
		"tok-new":   {AccessToken: "tok-new", UserID: "u-new", Email: "new@company.com"},
	}}
}

func newResolverWith(provider Provider, roles repository.RoleRepository) *Resolver {
	return NewResolver(ResolverDependencies{Provider: provider, Roles: roles, Timeout: 50 * time.Millisecond})
}

func TestResolveSessionRoles(t *testing.T) {
	roles := repository.NewMemoryRoles(map[string]domain.Role{
		"u-admin": domain.RoleAdmin,
		"u-staff": domain.RoleStaff,
	})
	resolver := newResolverWith(newStub(), roles)

	tests := []struct {
		token string
		want  domain.Role
		authn bool
	}{
		{"tok-admin", domain.RoleAdmin, true},
		{"tok-staff", domain.RoleStaff, true},
		{"tok-new", domain.RoleUser, true},
		{"tok-unknown", domain.RoleNone, false},
		{"", domain.RoleNone, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("token=%q", tt.token), func(t *testing.T) {
			got := resolver.ResolveSession(context.Background(), tt.token)
			if got.Role != tt.want || got.Authenticated() != tt.authn {
				t.Errorf("principal = %+v, want role %q authenticated %v", got, tt.want, tt.authn)
			}
		})
	}
}

func TestResolveSessionTimesOutToAnonymous(t *testing.T) {
	stub := newStub()
	stub.block = make(chan struct{})
	defer close(stub.block)
	resolver := newResolverWith(stub, nil)

	start := time.Now()
	got := resolver.ResolveSession(context.Background(), "tok-admin")
	if got.Authenticated() {
		t.Errorf("principal = %+v, want anonymous", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("resolution took %v", elapsed)
	}
}

func TestRoleFailureKeepsSession(t *testing.T) {
	resolver := newResolverWith(newStub(), failingRoles{})
	got := resolver.ResolveSession(context.Background(), "tok-admin")
	if !got.Authenticated() {
		t.Fatal("role failure demoted session to anonymous")
	}
	if got.Role != domain.RoleUser {
		t.Errorf("role = %q, want user", got.Role)
	}
}

func TestUnconfiguredProvider(t *testing.T) {
	resolver := NewResolver(ResolverDependencies{})
	if got := resolver.ResolveSession(context.Background(), "anything"); got.Authenticated() {
		t.Errorf("principal = %+v, want anonymous", got)
	}
	if _, err := resolver.SignIn(context.Background(), "a@company.com", ""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("SignIn error = %v, want ErrNotConfigured", err)
	}
}

func TestSignInValidatesIdentifier(t *testing.T) {
	stub := newStub()
	resolver := newResolverWith(stub, nil)
	for _, identifier := range []string{"", "not-an-email", "a@"} {
		if _, err := resolver.SignIn(context.Background(), identifier, ""); !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("SignIn(%q) error = %v, want ErrInvalidIdentifier", identifier, err)
		}
	}
	if stub.lastOTP != "" {
		t.Errorf("provider reached with %q", stub.lastOTP)
	}
}

func TestSignInModes(t *testing.T) {
	stub := newStub()
	resolver := newResolverWith(stub, repository.NewMemoryRoles(map[string]domain.Role{"u-staff": domain.RoleStaff}))
	ctx := context.Background()

	result, err := resolver.SignIn(ctx, " tech@company.com ", "")
	if err != nil || !result.ChallengeSent || result.Session != nil {
		t.Fatalf("magic link = (%+v, %v)", result, err)
	}
	if stub.lastOTP != "tech@company.com" {
		t.Errorf("challenge sent to %q", stub.lastOTP)
	}

	result, err = resolver.SignIn(ctx, "tech@company.com", "correct horse")
	if err != nil {
		t.Fatalf("password sign-in: %v", err)
	}
	if result.Principal.Role != domain.RoleStaff || result.Session.AccessToken != "tok-staff" {
		t.Errorf("result = %+v", result)
	}

	_, err = resolver.SignIn(ctx, "tech@company.com", "wrong")
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Message != "Invalid login credentials" {
		t.Errorf("wrong password error = %v", err)
	}
}

func TestSignOutIsImmediate(t *testing.T) {
	stub := newStub()
	stub.endBlock = make(chan struct{})
	resolver := newResolverWith(stub, nil)
	ctx := context.Background()

	if !resolver.ResolveSession(ctx, "tok-staff").Authenticated() {
		t.Fatal("precondition: token should resolve")
	}
	if got := resolver.SignOut(ctx, "tok-staff"); got.Authenticated() {
		t.Errorf("SignOut returned %+v", got)
	}
	// remote end-session is still blocked here
	if got := resolver.ResolveSession(ctx, "tok-staff"); got.Authenticated() {
		t.Errorf("revoked token resolved to %+v", got)
	}
	if stub.endCalls.Load() != 0 {
		t.Error("EndSession completed before it was released")
	}

	close(stub.endBlock)
	resolver.Wait()
	if stub.endCalls.Load() != 1 {
		t.Errorf("EndSession calls = %d, want 1", stub.endCalls.Load())
	}
}

func TestSessionChangeDropsCachedRole(t *testing.T) {
	stub := newStub()
	roles := repository.NewMemoryRoles(nil)
	resolver := newResolverWith(stub, roles)
	ctx := context.Background()

	if got := resolver.ResolveSession(ctx, "tok-new"); got.Role != domain.RoleUser {
		t.Fatalf("role = %q", got.Role)
	}
	roles.Assign("u-new", domain.RoleStaff)
	if got := resolver.ResolveSession(ctx, "tok-new"); got.Role != domain.RoleUser {
		t.Fatalf("cached role = %q, want user until session changes", got.Role)
	}
	stub.Emit(SessionChange{Event: SessionSignedIn, UserID: "u-new"})
	if got := resolver.ResolveSession(ctx, "tok-new"); got.Role != domain.RoleStaff {
		t.Errorf("role after session change = %q, want staff", got.Role)
	}
}

func TestClientSession(t *testing.T) {
	stub := newStub()
	stub.endBlock = make(chan struct{})
	resolver := newResolverWith(stub, repository.NewMemoryRoles(map[string]domain.Role{"u-admin": domain.RoleAdmin}))
	session := NewSession(resolver)
	ctx := context.Background()

	if session.Principal().Authenticated() {
		t.Fatal("new session should be anonymous")
	}
	if _, err := session.SignIn(ctx, "admin@company.com", "correct horse"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if p := session.Principal(); p.Role != domain.RoleAdmin {
		t.Fatalf("principal = %+v", p)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		session.SignOut(ctx)
	}()
	wg.Wait()
	if session.Principal().Authenticated() || session.AccessToken() != "" {
		t.Error("session still signed in after SignOut returned")
	}
	close(stub.endBlock)
	resolver.Wait()

	if p := session.Restore(ctx, "tok-admin"); p.Authenticated() {
		t.Errorf("Restore of signed-out token = %+v, want anonymous", p)
	}
	if p := session.Restore(ctx, "tok-staff"); p.Email != "tech@company.com" || session.AccessToken() != "tok-staff" {
		t.Errorf("Restore = %+v token=%q", p, session.AccessToken())
	}
}

func newLocal(t *testing.T) (*LocalProvider, *recordingMailer) {
	t.Helper()
	var seq atomic.Int32
	users := repository.NewMemoryUsers(func() string { return fmt.Sprintf("user-%d", seq.Add(1)) })
	mailer := &recordingMailer{}
	provider := NewLocalProvider(config.AuthConfig{
		JWTSecret:            "test-secret",
		BcryptCost:           4,
		MagicLinkRedirectURL: "http://localhost:5173/login",
	}, LocalDependencies{Users: users, Mailer: mailer})
	return provider, mailer
}

type recordingMailer struct {
	mu    sync.Mutex
	links []string
}

func (r *recordingMailer) SendMagicLink(_ context.Context, _ string, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = append(r.links, link)
	return nil
}

func TestLocalProviderPasswordFlow(t *testing.T) {
	provider, _ := newLocal(t)
	resolver := NewResolver(ResolverDependencies{Provider: provider, Roles: repository.NewMemoryRoles(nil)})
	ctx := context.Background()

	if _, err := resolver.SignUp(ctx, "somchai@company.com", "123"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("weak password error = %v", err)
	}
	signed, err := resolver.SignUp(ctx, "somchai@company.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := resolver.SignUp(ctx, "Somchai@company.com", "s3cret-pass"); !errors.Is(err, ErrAccountExists) {
		t.Errorf("duplicate sign-up error = %v", err)
	}

	got := resolver.ResolveSession(ctx, signed.Session.AccessToken)
	if got.ID != signed.Principal.ID || got.Role != domain.RoleUser {
		t.Errorf("resolved %+v, want %+v", got, signed.Principal)
	}

	if _, err := resolver.SignIn(ctx, "somchai@company.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v", err)
	}
	if _, err := resolver.SignIn(ctx, "somchai@company.com", "s3cret-pass"); err != nil {
		t.Errorf("SignIn: %v", err)
	}
}

func TestLocalProviderMagicLink(t *testing.T) {
	provider, mailer := newLocal(t)
	ctx := context.Background()

	if err := provider.BeginPasswordlessChallenge(ctx, "new@company.com"); err != nil {
		t.Fatalf("BeginPasswordlessChallenge: %v", err)
	}
	if len(mailer.links) != 1 {
		t.Fatalf("links = %v", mailer.links)
	}
	const prefix = "http://localhost:5173/login?token="
	link := mailer.links[0]
	if len(link) <= len(prefix) || link[:len(prefix)] != prefix {
		t.Fatalf("link = %q", link)
	}
	token := link[len(prefix):]

	session, err := provider.VerifyMagicLink(ctx, token)
	if err != nil {
		t.Fatalf("VerifyMagicLink: %v", err)
	}
	if session.Email != "new@company.com" {
		t.Errorf("email = %q", session.Email)
	}
	if _, err := provider.VerifyMagicLink(ctx, token); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("reused link error = %v", err)
	}
	if _, err := provider.SignInWithPassword(ctx, "new@company.com", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("passwordless account accepted a password: %v", err)
	}
}

func TestMemoryMagicLinksExpire(t *testing.T) {
	links := NewMemoryMagicLinks()
	now := time.Unix(1000, 0)
	links.now = func() time.Time { return now }
	_ = links.Save(context.Background(), "t", "u", time.Minute)
	now = now.Add(2 * time.Minute)
	if _, err := links.Consume(context.Background(), "t"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expired link error = %v", err)
	}
}

func TestTokenManagerRejectsTampering(t *testing.T) {
	tm := NewTokenManager("secret-a", 5)
	token, _, err := tm.GenerateToken("u-1", "a@company.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if claims, err := tm.ParseToken(token); err != nil || claims.Subject != "u-1" || claims.Email != "a@company.com" {
		t.Fatalf("ParseToken = (%+v, %v)", claims, err)
	}
	if _, err := NewTokenManager("secret-b", 5).ParseToken(token); err == nil {
		t.Error("token signed with another secret accepted")
	}

	expired := NewTokenManager("secret-a", 1)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, _ := expired.GenerateToken("u-1", "a@company.com")
	if _, err := tm.ParseToken(old); err == nil {
		t.Error("expired token accepted")
	}
}
