package realtime

import (
	"context"
	"net/http"
	"strings"
	"time"

	"marketplace-chat/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type HandshakeResolver interface {
	ResolveHandshake(ctx context.Context, req *http.Request) (*auth.Identity, error)
}

type Options struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	AllowedOrigins []string
}

type Handler struct {
	hub      *Hub
	resolver HandshakeResolver
	upgrader websocket.Upgrader
	opts     Options
}

func NewHandler(hub *Hub, resolver HandshakeResolver, opts Options) *Handler {
	return &Handler{
		hub:      hub,
		resolver: resolver,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

// Connect upgrades the request. Sockets without an identity are accepted but
// never join a user room.
func (h *Handler) Connect(c *gin.Context) {
	identity, err := h.resolver.ResolveHandshake(c.Request.Context(), c.Request)
	if err != nil {
		h.hub.logger.Warn("handshake_resolve_failed", "", "", zap.Error(err))
		identity = nil
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		userID := ""
		if identity != nil {
			userID = identity.ID.String()
		}
		h.hub.logger.Error("upgrade_failed", userID, "", err)
		return
	}

	client := NewClient(h.hub, conn, identity, h.opts.PingInterval, h.opts.PongTimeout)
	h.hub.Register(client)

	go client.writePump()
	client.readPump()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}
