package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MagicLinkStore holds one-time sign-in tokens until they are consumed or expire.
type MagicLinkStore interface {
	Save(ctx context.Context, token, userID string, ttl time.Duration) error
	// Consume returns the user bound to token and forgets it. Unknown
	// and expired tokens return ErrInvalidCredentials.
	Consume(ctx context.Context, token string) (string, error)
}

type pendingLink struct {
	userID    string
	expiresAt time.Time
}

// MemoryMagicLinks keeps one-time tokens in process.
type MemoryMagicLinks struct {
	mu    sync.Mutex
	links map[string]pendingLink
	now   func() time.Time
}

// NewMemoryMagicLinks returns an empty store.
func NewMemoryMagicLinks() *MemoryMagicLinks {
	return &MemoryMagicLinks{links: make(map[string]pendingLink), now: time.Now}
}

func (m *MemoryMagicLinks) Save(_ context.Context, token, userID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[token] = pendingLink{userID: userID, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryMagicLinks) Consume(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[token]
	delete(m.links, token)
	if !ok || !link.expiresAt.After(m.now()) {
		return "", ErrInvalidCredentials
	}
	return link.userID, nil
}

const magicLinkPrefix = "repair:magic:"

// RedisMagicLinks stores one-time tokens with a redis expiry.
type RedisMagicLinks struct {
	client *redis.Client
}

// NewRedisMagicLinks wraps client.
func NewRedisMagicLinks(client *redis.Client) *RedisMagicLinks {
	return &RedisMagicLinks{client: client}
}

func (r *RedisMagicLinks) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	return r.client.Set(ctx, magicLinkPrefix+token, userID, ttl).Err()
}

func (r *RedisMagicLinks) Consume(ctx context.Context, token string) (string, error) {
	userID, err := r.client.GetDel(ctx, magicLinkPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

// Mailer delivers sign-in links.
type Mailer interface {
	SendMagicLink(ctx context.Context, email, link string) error
}

// LogMailer writes links to the log instead of sending mail.
type LogMailer struct {
	Logger *zap.Logger
	From   string
}

func (m LogMailer) SendMagicLink(_ context.Context, email, link string) error {
	if m.Logger == nil {
		return nil
	}
	m.Logger.Info("magic link issued",
		zap.String("from", m.From),
		zap.String("to", email),
		zap.String("link", link))
	return nil
}
