package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"marketplace-chat/internal/events"
	"marketplace-chat/pkg/metrics"

	"go.uber.org/zap"
)

// Presence is notified when a user's sockets come and go. Heartbeat runs on
// every ping tick of an authenticated socket.
type Presence interface {
	SetOnline(ctx context.Context, userID, clientID string) error
	Heartbeat(ctx context.Context, userID, clientID string) error
	SetOffline(ctx context.Context, userID, clientID string) error
}

type presenceUpdate int

const (
	presenceOnline presenceUpdate = iota
	presenceHeartbeat
	presenceOffline
)

// Frame is the wire shape of every server and client event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type opKind int

const (
	opRegister opKind = iota
	opUnregister
	opJoin
	opLeave
)

// ops share one channel so a client's register, joins and unregister are
// applied in the order they were issued.
type hubOp struct {
	kind   opKind
	client *Client
	room   string
}

// Hub owns room membership for every socket in this process.
type Hub struct {
	mu sync.RWMutex

	clients map[string]*Client
	rooms   map[string]map[*Client]struct{}

	ops  chan hubOp
	done chan struct{}

	presence    Presence
	presenceOps chan presenceOp
	logger      *Logger
}

func NewHub(presence Presence, logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		rooms:       make(map[string]map[*Client]struct{}),
		ops:         make(chan hubOp, 512),
		done:        make(chan struct{}),
		presence:    presence,
		presenceOps: make(chan presenceOp, 1024),
		logger:      NewLogger(logger),
	}
}

// Run applies membership changes until ctx is cancelled, then closes every socket.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	if h.presence != nil {
		go h.runPresence(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-h.ops:
			switch op.kind {
			case opRegister:
				h.addClient(op.client)
			case opUnregister:
				h.removeClient(op.client)
			case opJoin:
				h.joinRoom(op.client, op.room)
			case opLeave:
				h.leaveRoom(op.client, op.room)
			}
		}
	}
}

func (h *Hub) submit(op hubOp) {
	select {
	case h.ops <- op:
	case <-h.done:
	}
}

func (h *Hub) Register(client *Client)   { h.submit(hubOp{kind: opRegister, client: client}) }
func (h *Hub) Unregister(client *Client) { h.submit(hubOp{kind: opUnregister, client: client}) }

func (h *Hub) Join(client *Client, room string) {
	h.submit(hubOp{kind: opJoin, client: client, room: room})
}

func (h *Hub) Leave(client *Client, room string) {
	h.submit(hubOp{kind: opLeave, client: client, room: room})
}

// Emit implements events.Emitter for in-process delivery.
func (h *Hub) Emit(_ context.Context, env events.Envelope) error {
	payload, err := json.Marshal(Frame{Event: env.Event, Data: env.Data})
	if err != nil {
		return err
	}
	h.Broadcast(env.Room, payload)
	return nil
}

// Broadcast sends payload to every socket in room. Slow sockets drop frames.
func (h *Hub) Broadcast(room string, payload []byte) {
	h.mu.RLock()
	for c := range h.rooms[room] {
		c.SendMessage(payload)
	}
	h.mu.RUnlock()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	metrics.IncrementWebSocketConnections(client.Authenticated())
	if !client.Authenticated() {
		h.logger.Info("connected_limited", "", client.ID)
		return
	}

	h.joinRoom(client, events.UserRoom(client.identity.ID))
	h.logger.Info("connected", client.UserID(), client.ID)
	h.trackPresence(client, presenceOnline)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	for _, room := range client.Rooms() {
		h.dropMember(room, client)
	}
	delete(h.clients, client.ID)
	close(client.send)
	if client.Authenticated() {
		h.trackPresence(client, presenceOffline)
	}
	h.mu.Unlock()

	metrics.DecrementWebSocketConnections(client.Authenticated())
	h.logger.Info("disconnected", client.UserID(), client.ID)
}

func (h *Hub) joinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.addRoom(room)
}

func (h *Hub) leaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropMember(room, client)
}

// caller holds h.mu
func (h *Hub) dropMember(room string, client *Client) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	client.removeRoom(room)
}

// heartbeat keeps an authenticated socket's presence alive. Sockets already
// unregistered are skipped so a late tick cannot outlive SetOffline.
func (h *Hub) heartbeat(client *Client) {
	if !client.Authenticated() {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client.ID]; ok {
		h.trackPresence(client, presenceHeartbeat)
	}
}

type presenceOp struct {
	update   presenceUpdate
	userID   string
	clientID string
}

// trackPresence queues an update without blocking; a dropped update is
// repaired by the next heartbeat or by the key TTL.
func (h *Hub) trackPresence(client *Client, update presenceUpdate) {
	if h.presence == nil {
		return
	}
	select {
	case h.presenceOps <- presenceOp{update: update, userID: client.UserID(), clientID: client.ID}:
	default:
		h.logger.Warn("presence_queue_full", client.UserID(), client.ID)
	}
}

// runPresence applies presence updates one at a time, in queue order.
func (h *Hub) runPresence(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-h.presenceOps:
			h.applyPresence(ctx, op)
		}
	}
}

func (h *Hub) applyPresence(ctx context.Context, op presenceOp) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var err error
	switch op.update {
	case presenceOnline:
		err = h.presence.SetOnline(ctx, op.userID, op.clientID)
	case presenceHeartbeat:
		err = h.presence.Heartbeat(ctx, op.userID, op.clientID)
	case presenceOffline:
		err = h.presence.SetOffline(ctx, op.userID, op.clientID)
	}
	if err != nil {
		h.logger.Error("presence_update_failed", op.userID, op.clientID, err)
	}
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.closeConn()
	}
}
