package auth

import (
	"context"

	"marketplace-chat/internal/domain/user"
	"marketplace-chat/pkg/logger"

	"github.com/google/uuid"
)

// Identity is the authenticated principal, whichever provider produced it.
type Identity struct {
	ID   uuid.UUID
	Name string
	Role user.Role
}

// IsElevated reports whether the identity may act on every user's records.
func (i Identity) IsElevated() bool {
	return i.Role == user.RoleAdmin
}

type ctxKey string

var identityKey ctxKey = "identity"

// WithIdentity stores the identity and mirrors its id under the logger's user key.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey, id)
	return context.WithValue(ctx, logger.UserIdKey, id.ID.String())
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	value := ctx.Value(identityKey)
	if value == nil {
		return Identity{}, false
	}
	id, ok := value.(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return id.ID, true
}
