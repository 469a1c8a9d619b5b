package auth

import (
	"context"
	"time"

	"marketplace-chat/internal/domain/user"

	"github.com/google/uuid"
)

// SessionRecord is what the legacy session framework keeps server-side.
type SessionRecord struct {
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Role      user.Role `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore returns (nil, nil) for unknown tokens.
type SessionStore interface {
	GetSession(ctx context.Context, token string) (*SessionRecord, error)
}

// CookieSessionProvider resolves the legacy server-side session keyed by an
// opaque cookie value.
type CookieSessionProvider struct {
	cookieName string
	store      SessionStore
	clock      func() time.Time
}

func NewCookieSessionProvider(cookieName string, store SessionStore) *CookieSessionProvider {
	return &CookieSessionProvider{cookieName: cookieName, store: store, clock: time.Now}
}

func (p *CookieSessionProvider) Name() string {
	return "cookie-session"
}

func (p *CookieSessionProvider) Lookup(ctx context.Context, creds Credentials) (*Identity, error) {
	token := creds.Cookie(p.cookieName)
	if token == "" {
		return nil, nil
	}
	rec, err := p.store.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.UserID == uuid.Nil {
		return nil, nil
	}
	if !rec.ExpiresAt.IsZero() && !p.clock().Before(rec.ExpiresAt) {
		return nil, nil
	}
	return &Identity{ID: rec.UserID, Name: rec.Name, Role: rec.Role}, nil
}
