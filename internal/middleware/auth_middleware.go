package middleware

import (
	"context"
	"net/http"

	"marketplace-chat/internal/auth"
	"marketplace-chat/internal/transport/httpdto"
	"marketplace-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "identity"

// IdentityResolver resolves the caller from request credentials.
type IdentityResolver interface {
	Resolve(ctx context.Context, creds auth.Credentials) (*auth.Identity, error)
}

// AuthMiddleware requires an identity. Provider failures are logged and
// answered like a missing session.
func AuthMiddleware(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		identity, err := resolver.Resolve(ctx, auth.FromRequest(c.Request))
		if err != nil {
			logger.GetGlobalLogger().WithContext(ctx).Warn("session resolution failed", zap.Error(err))
		}
		if err != nil || identity == nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("authentication required", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(auth.WithIdentity(ctx, *identity))
		c.Set(identityKey, *identity)
		c.Next()
	}
}

// Identity returns the identity stored by AuthMiddleware.
func Identity(c *gin.Context) (auth.Identity, bool) {
	if value, ok := c.Get(identityKey); ok {
		if id, ok := value.(auth.Identity); ok {
			return id, true
		}
	}
	return auth.IdentityFromContext(c.Request.Context())
}
