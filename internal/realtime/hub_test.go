package realtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"marketplace-chat/internal/auth"
	"marketplace-chat/internal/domain/user"
	"marketplace-chat/internal/events"
	"marketplace-chat/internal/realtime"
)

type tokenResolver struct {
	identities map[string]*auth.Identity
	err        error
}

func (r *tokenResolver) ResolveHandshake(_ context.Context, req *http.Request) (*auth.Identity, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.identities[req.URL.Query().Get("token")], nil
}

type recordingPresence struct {
	mu         sync.Mutex
	online     map[string]int
	heartbeats map[string]int
	offline    map[string]int
	log        []string
}

func newRecordingPresence() *recordingPresence {
	return &recordingPresence{online: map[string]int{}, heartbeats: map[string]int{}, offline: map[string]int{}}
}

func (p *recordingPresence) SetOnline(_ context.Context, userID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID]++
	p.log = append(p.log, "online")
	return nil
}

func (p *recordingPresence) Heartbeat(_ context.Context, userID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heartbeats[userID]++
	p.log = append(p.log, "heartbeat")
	return nil
}

func (p *recordingPresence) heartbeatCount(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heartbeats[userID]
}

func (p *recordingPresence) lastUpdate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.log) == 0 {
		return ""
	}
	return p.log[len(p.log)-1]
}

func (p *recordingPresence) SetOffline(_ context.Context, userID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offline[userID]++
	p.log = append(p.log, "offline")
	return nil
}

func (p *recordingPresence) onlineCount(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}

func (p *recordingPresence) offlineCount(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offline[userID]
}

var _ = Describe("Hub", func() {
	var (
		hub      *realtime.Hub
		server   *httptest.Server
		cancel   context.CancelFunc
		presence *recordingPresence
		resolver *tokenResolver
		alice    *auth.Identity
	)

	dial := func(token string) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
		if token != "" {
			url += "?token=" + token
		}
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		Expect(err).NotTo(HaveOccurred())
		return conn
	}

	readFrame := func(conn *websocket.Conn) realtime.Frame {
		Expect(conn.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())
		_, data, err := conn.ReadMessage()
		Expect(err).NotTo(HaveOccurred())
		var frame realtime.Frame
		Expect(json.Unmarshal(data, &frame)).To(Succeed())
		return frame
	}

	emit := func(room, event string, data any) {
		env, err := events.NewEnvelope(room, event, data)
		Expect(err).NotTo(HaveOccurred())
		Expect(hub.Emit(context.Background(), env)).To(Succeed())
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		alice = &auth.Identity{ID: uuid.New(), Name: "Alice", Role: user.RoleClient}
		resolver = &tokenResolver{identities: map[string]*auth.Identity{"alice": alice}}
		presence = newRecordingPresence()

		hub = realtime.NewHub(presence, nil)
		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		go hub.Run(ctx)

		router := gin.New()
		h := realtime.NewHandler(hub, resolver, realtime.Options{})
		router.GET("/ws", h.Connect)
		server = httptest.NewServer(router)
	})

	AfterEach(func() {
		cancel()
		server.Close()
	})

	It("joins authenticated sockets to their user room", func() {
		conn := dial("alice")
		defer conn.Close()

		room := events.UserRoom(alice.ID)
		Eventually(func() int { return hub.RoomSize(room) }).Should(Equal(1))
		Eventually(func() int { return presence.onlineCount(alice.ID.String()) }).Should(Equal(1))

		emit(room, events.EventNewNotification, events.NotificationPayload{Title: "hello"})

		frame := readFrame(conn)
		Expect(frame.Event).To(Equal(events.EventNewNotification))
		var payload events.NotificationPayload
		Expect(json.Unmarshal(frame.Data, &payload)).To(Succeed())
		Expect(payload.Title).To(Equal("hello"))
	})

	It("accepts unauthenticated sockets without a user room", func() {
		conn := dial("")
		defer conn.Close()

		Eventually(hub.ClientCount).Should(Equal(1))
		Consistently(func() int { return hub.RoomSize(events.UserRoom(alice.ID)) }, 100*time.Millisecond).Should(BeZero())
	})

	It("treats resolver failures as unauthenticated", func() {
		resolver.err = context.DeadlineExceeded
		conn := dial("alice")
		defer conn.Close()

		Eventually(hub.ClientCount).Should(Equal(1))
		Consistently(func() int { return hub.RoomSize(events.UserRoom(alice.ID)) }, 100*time.Millisecond).Should(BeZero())
	})

	It("joins and leaves conversation rooms without a membership check", func() {
		conn := dial("")
		defer conn.Close()

		convID := uuid.New()
		room := events.ConversationRoom(convID)

		Expect(conn.WriteJSON(map[string]any{"event": events.EventJoinConversation, "data": convID.String()})).To(Succeed())
		Eventually(func() int { return hub.RoomSize(room) }).Should(Equal(1))

		emit(room, events.EventNewMessage, events.NewMessagePayload{ConversationID: convID, Message: "hi"})
		frame := readFrame(conn)
		Expect(frame.Event).To(Equal(events.EventNewMessage))

		Expect(conn.WriteJSON(map[string]any{
			"event": events.EventLeaveConversation,
			"data":  map[string]string{"conversationId": convID.String()},
		})).To(Succeed())
		Eventually(func() int { return hub.RoomSize(room) }).Should(BeZero())
	})

	It("ignores malformed frames and keeps the socket open", func() {
		conn := dial("alice")
		defer conn.Close()

		Expect(conn.WriteMessage(websocket.TextMessage, []byte("{nope"))).To(Succeed())
		Expect(conn.WriteJSON(map[string]any{"event": events.EventJoinConversation, "data": "not-a-uuid"})).To(Succeed())

		convID := uuid.New()
		Expect(conn.WriteJSON(map[string]any{"event": events.EventJoinConversation, "data": convID.String()})).To(Succeed())
		Eventually(func() int { return hub.RoomSize(events.ConversationRoom(convID)) }).Should(Equal(1))
	})

	It("drops room membership and presence on disconnect", func() {
		conn := dial("alice")
		room := events.UserRoom(alice.ID)
		Eventually(func() int { return hub.RoomSize(room) }).Should(Equal(1))

		Expect(conn.Close()).To(Succeed())

		Eventually(hub.ClientCount).Should(BeZero())
		Eventually(func() int { return hub.RoomSize(room) }).Should(BeZero())
		Eventually(func() int { return presence.offlineCount(alice.ID.String()) }).Should(Equal(1))
	})

	Context("with a short ping interval", func() {
		BeforeEach(func() {
			server.Close()
			router := gin.New()
			h := realtime.NewHandler(hub, resolver, realtime.Options{
				PingInterval: 20 * time.Millisecond,
				PongTimeout:  10 * time.Second,
			})
			router.GET("/ws", h.Connect)
			server = httptest.NewServer(router)
		})

		It("refreshes presence on every ping while the socket is open", func() {
			conn := dial("alice")
			Eventually(func() int { return presence.heartbeatCount(alice.ID.String()) }).Should(BeNumerically(">=", 3))

			Expect(conn.Close()).To(Succeed())
			Eventually(func() int { return presence.offlineCount(alice.ID.String()) }).Should(Equal(1))

			settled := presence.heartbeatCount(alice.ID.String())
			Consistently(func() int { return presence.heartbeatCount(alice.ID.String()) }, 100*time.Millisecond).Should(Equal(settled))
			Expect(presence.lastUpdate()).To(Equal("offline"))
		})

		It("sends no heartbeats for unauthenticated sockets", func() {
			conn := dial("")
			defer conn.Close()

			Eventually(hub.ClientCount).Should(Equal(1))
			Consistently(func() int { return presence.heartbeatCount("") }, 100*time.Millisecond).Should(BeZero())
		})
	})

	It("delivers nothing to rooms nobody joined", func() {
		conn := dial("alice")
		defer conn.Close()
		Eventually(func() int { return hub.RoomSize(events.UserRoom(alice.ID)) }).Should(Equal(1))

		emit(events.ConversationRoom(uuid.New()), events.EventMessageRead, events.MessageReadPayload{})

		Expect(conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))).To(Succeed())
		_, _, err := conn.ReadMessage()
		Expect(err).To(HaveOccurred())
	})
})
