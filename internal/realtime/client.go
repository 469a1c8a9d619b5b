package realtime

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"marketplace-chat/internal/auth"
	"marketplace-chat/internal/events"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512 * 1024

	DefaultPongTimeout  = 60 * time.Second
	DefaultPingInterval = (DefaultPongTimeout * 9) / 10
)

// Client is one socket. identity is nil for limited connections.
type Client struct {
	ID       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	identity *auth.Identity

	pingInterval time.Duration
	pongTimeout  time.Duration

	mu    sync.RWMutex
	rooms map[string]bool

	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, identity *auth.Identity, pingInterval, pongTimeout time.Duration) *Client {
	if pongTimeout <= 0 {
		pongTimeout = DefaultPongTimeout
	}
	if pingInterval <= 0 || pingInterval >= pongTimeout {
		pingInterval = (pongTimeout * 9) / 10
	}
	return &Client{
		ID:           uuid.New().String(),
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 256),
		identity:     identity,
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		rooms:        make(map[string]bool),
	}
}

func (c *Client) Authenticated() bool {
	return c.identity != nil
}

func (c *Client) UserID() string {
	if c.identity == nil {
		return ""
	}
	return c.identity.ID.String()
}

func (c *Client) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	c.rooms[room] = true
	c.mu.Unlock()
}

func (c *Client) removeRoom(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

// SendMessage queues payload without blocking; a full buffer drops it.
func (c *Client) SendMessage(payload []byte) {
	select {
	case c.send <- payload:
	default:
		c.hub.logger.Warn("send_buffer_full", c.UserID(), c.ID)
	}
}

func (c *Client) closeConn() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.closeConn()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("unexpected_close", c.UserID(), c.ID, err)
			}
			return
		}
		c.handleFrame(bytes.TrimSpace(message))
	}
}

func (c *Client) handleFrame(message []byte) {
	var frame Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		c.hub.logger.Warn("malformed_frame", c.UserID(), c.ID, zap.Error(err))
		return
	}

	switch frame.Event {
	case events.EventJoinConversation, events.EventLeaveConversation:
		convID, ok := conversationIDFrom(frame.Data)
		if !ok {
			c.hub.logger.Warn("invalid_conversation_id", c.UserID(), c.ID, zap.String("frame_event", frame.Event))
			return
		}
		room := events.ConversationRoom(convID)
		if frame.Event == events.EventJoinConversation {
			c.hub.Join(c, room)
		} else {
			c.hub.Leave(c, room)
		}
	default:
		c.hub.logger.Warn("unknown_event", c.UserID(), c.ID, zap.String("frame_event", frame.Event))
	}
}

// conversationIDFrom accepts either "id" or {"conversationId": "id"}.
func conversationIDFrom(data json.RawMessage) (uuid.UUID, bool) {
	if len(data) == 0 {
		return uuid.Nil, false
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var obj struct {
			ConversationID string `json:"conversationId"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return uuid.Nil, false
		}
		raw = obj.ConversationID
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.hub.heartbeat(c)
		}
	}
}
