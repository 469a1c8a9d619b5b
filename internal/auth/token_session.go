package auth

import (
	"context"
	"errors"
	"time"

	"marketplace-chat/internal/domain/user"
	market_errors "marketplace-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type AccessClaims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error)
}

// TokenSessionProvider resolves signed access tokens. The token cookie wins
// over the Authorization header when both are present.
type TokenSessionProvider struct {
	cookieName string
	secret     []byte
	users      UserLookup
	clock      func() time.Time
}

func NewTokenSessionProvider(cookieName, secret string, users UserLookup) *TokenSessionProvider {
	return &TokenSessionProvider{
		cookieName: cookieName,
		secret:     []byte(secret),
		users:      users,
		clock:      time.Now,
	}
}

func (p *TokenSessionProvider) Name() string {
	return "access-token"
}

func (p *TokenSessionProvider) Lookup(ctx context.Context, creds Credentials) (*Identity, error) {
	token := creds.Cookie(p.cookieName)
	if token == "" {
		token = creds.Bearer()
	}
	if token == "" {
		return nil, nil
	}

	claims, err := p.ParseAccessToken(token)
	if err != nil {
		return nil, nil
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, nil
	}

	u, err := p.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, market_errors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Identity{ID: u.ID, Name: u.Name, Role: u.Role}, nil
}

func (p *TokenSessionProvider) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, market_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, market_errors.ErrUnauthorized
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.clock), jwt.WithExpirationRequired())
	if err != nil {
		return AccessClaims{}, market_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, market_errors.ErrUnauthorized
	}
	return *claims, nil
}

// IssueAccessToken signs a token for u. The marketplace's auth service owns
// issuance in production; this exists for dev seeding and tests.
func (p *TokenSessionProvider) IssueAccessToken(u user.User, ttl time.Duration) (string, error) {
	now := p.clock()
	claims := AccessClaims{
		Name: u.Name,
		Role: string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
