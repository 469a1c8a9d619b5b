package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/domain/notification"
	"marketplace-chat/internal/domain/user"
	"marketplace-chat/internal/events"
	"marketplace-chat/internal/repository"
	market_errors "marketplace-chat/pkg/errors"

	"github.com/google/uuid"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]user.User
}

func newFakeUserRepo(users ...user.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[uuid.UUID]user.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users[u.ID] = *u
	return nil
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, id uuid.UUID) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.User{}, market_errors.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, market_errors.ErrNotFound
}

func (r *fakeUserRepo) GetUsersByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[uuid.UUID]user.User{}
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type fakeConversationRepo struct {
	mu      sync.Mutex
	convs   map[uuid.UUID]*conversation.Conversation
	upserts int
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{convs: map[uuid.UUID]*conversation.Conversation{}}
}

func (r *fakeConversationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.convs)
}

func (r *fakeConversationRepo) Upsert(_ context.Context, clientID, professionalID uuid.UUID) (conversation.Conversation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	for _, c := range r.convs {
		if c.ClientID == clientID && c.ProfessionalID == professionalID {
			c.IsActive = true
			c.UpdatedAt = time.Now()
			return *c, false, nil
		}
	}
	now := time.Now()
	c := &conversation.Conversation{
		ID:             uuid.New(),
		ClientID:       clientID,
		ProfessionalID: professionalID,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.convs[c.ID] = c
	return *c, true, nil
}

func (r *fakeConversationRepo) GetByID(_ context.Context, id uuid.UUID) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return conversation.Conversation{}, market_errors.ErrNotFound
	}
	return *c, nil
}

func (r *fakeConversationRepo) GetByPair(_ context.Context, clientID, professionalID uuid.UUID) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.convs {
		if c.ClientID == clientID && c.ProfessionalID == professionalID {
			return *c, nil
		}
	}
	return conversation.Conversation{}, market_errors.ErrNotFound
}

func (r *fakeConversationRepo) List(_ context.Context, filter conversation.ListFilter) ([]conversation.Conversation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []conversation.Conversation
	for _, c := range r.convs {
		if !c.HasParticipant(filter.UserID) {
			continue
		}
		if filter.IsActive != nil && c.IsActive != *filter.IsActive {
			continue
		}
		matched = append(matched, *c)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch {
		case a.LastMessageAt != nil && b.LastMessageAt != nil && !a.LastMessageAt.Equal(*b.LastMessageAt):
			return a.LastMessageAt.After(*b.LastMessageAt)
		case a.LastMessageAt != nil && b.LastMessageAt == nil:
			return true
		case a.LastMessageAt == nil && b.LastMessageAt != nil:
			return false
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	total := int64(len(matched))
	_, limit, offset := repository.NormalizePage(filter.Page, filter.Limit)
	if offset >= len(matched) {
		return []conversation.Conversation{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *fakeConversationRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return market_errors.ErrNotFound
	}
	c.IsActive = active
	return nil
}

func (r *fakeConversationRepo) TouchLastMessage(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return market_errors.ErrNotFound
	}
	t := at
	c.LastMessageAt = &t
	return nil
}

func (r *fakeConversationRepo) participantIDs(userID uuid.UUID) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for _, c := range r.convs {
		if c.HasParticipant(userID) {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

type fakeMessageRepo struct {
	mu    sync.Mutex
	msgs  []*message.Message
	convs *fakeConversationRepo
}

func newFakeMessageRepo(convs *fakeConversationRepo) *fakeMessageRepo {
	return &fakeMessageRepo{convs: convs}
}

func (r *fakeMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func (r *fakeMessageRepo) Create(_ context.Context, m *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	cp := *m
	r.msgs = append(r.msgs, &cp)
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id uuid.UUID) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.ID == id {
			return *m, nil
		}
	}
	return message.Message{}, market_errors.ErrNotFound
}

func (r *fakeMessageRepo) ListByConversation(_ context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []message.Message
	for _, m := range r.msgs {
		if m.ConversationID != conversationID {
			continue
		}
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.ID == id && !m.IsRead {
			t := at
			m.IsRead = true
			m.ReadAt = &t
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeMessageRepo) MarkConversationRead(_ context.Context, conversationID, readerID uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.msgs {
		if m.ConversationID == conversationID && m.SenderID != readerID && !m.IsRead {
			t := at
			m.IsRead = true
			m.ReadAt = &t
			n++
		}
	}
	return n, nil
}

func (r *fakeMessageRepo) LastMessages(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[uuid.UUID]message.Message{}
	for _, m := range r.msgs {
		if !want[m.ConversationID] {
			continue
		}
		if cur, ok := out[m.ConversationID]; !ok || m.CreatedAt.After(cur.CreatedAt) {
			out[m.ConversationID] = *m
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) UnreadCounts(_ context.Context, ids []uuid.UUID, readerID uuid.UUID) (map[uuid.UUID]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[uuid.UUID]int64{}
	for _, m := range r.msgs {
		if want[m.ConversationID] && m.SenderID != readerID && !m.IsRead {
			out[m.ConversationID]++
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) Search(ctx context.Context, filter message.SearchFilter) ([]message.Message, error) {
	mine := r.convs.participantIDs(filter.UserID)
	allowed := map[uuid.UUID]bool{}
	for _, id := range mine {
		allowed[id] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToLower(filter.Query)
	var out []message.Message
	for _, m := range r.msgs {
		if !allowed[m.ConversationID] {
			continue
		}
		if filter.ConversationID != nil && m.ConversationID != *filter.ConversationID {
			continue
		}
		if strings.Contains(strings.ToLower(m.Content), q) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type fakeNotificationRepo struct {
	mu    sync.Mutex
	items []*notification.Notification
}

func (r *fakeNotificationRepo) all() []notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notification.Notification, 0, len(r.items))
	for _, n := range r.items {
		out = append(out, *n)
	}
	return out
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	cp := *n
	r.items = append(r.items, &cp)
	return nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, id uuid.UUID) (notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.ID == id {
			return *n, nil
		}
	}
	return notification.Notification{}, market_errors.ErrNotFound
}

func (r *fakeNotificationRepo) List(_ context.Context, filter notification.ListFilter) ([]notification.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []notification.Notification
	for i := len(r.items) - 1; i >= 0; i-- {
		n := r.items[i]
		if !filter.AllUsers && n.UserID != filter.UserID {
			continue
		}
		if filter.UnreadOnly && n.IsRead {
			continue
		}
		matched = append(matched, *n)
	}
	total := int64(len(matched))
	_, limit, offset := repository.NormalizePage(filter.Page, filter.Limit)
	if offset >= len(matched) {
		return []notification.Notification{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, item := range r.items {
		if item.UserID == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.ID == id && !n.IsRead {
			t := at
			n.IsRead = true
			n.ReadAt = &t
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNotificationRepo) MarkReadForUser(_ context.Context, userID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var count int64
	for _, n := range r.items {
		if want[n.ID] && n.UserID == userID && !n.IsRead {
			t := at
			n.IsRead = true
			n.ReadAt = &t
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userID *uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.items {
		if userID != nil && n.UserID != *userID {
			continue
		}
		if !n.IsRead {
			t := at
			n.IsRead = true
			n.ReadAt = &t
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.items {
		if n.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return market_errors.ErrNotFound
}

type emitted struct {
	event          string
	conversationID uuid.UUID
	userID         uuid.UUID
	messageID      *uuid.UUID
	payload        any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []emitted
}

func (n *recordingNotifier) NewMessage(_ context.Context, conversationID uuid.UUID, msg any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{event: events.EventNewMessage, conversationID: conversationID, payload: msg})
}

func (n *recordingNotifier) MessageRead(_ context.Context, conversationID uuid.UUID, messageID *uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{event: events.EventMessageRead, conversationID: conversationID, messageID: messageID})
}

func (n *recordingNotifier) NewNotification(_ context.Context, userID uuid.UUID, payload events.NotificationPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{event: events.EventNewNotification, userID: userID, payload: payload})
}

func (n *recordingNotifier) named(event string) []emitted {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []emitted
	for _, e := range n.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type stubPresence map[string]bool

func (p stubPresence) OnlineMap(_ context.Context, ids []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range ids {
		out[id] = p[id]
	}
	return out, nil
}

// steppingClock returns strictly increasing instants so ordering is deterministic.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	users         *fakeUserRepo
	convRepo      *fakeConversationRepo
	msgRepo       *fakeMessageRepo
	notifRepo     *fakeNotificationRepo
	notifier      *recordingNotifier
	clock         *steppingClock
	conversations *ConversationService
	messages      *MessageService
	notifications *NotificationService
}

func newFixture(presence PresenceReader, people ...user.User) *fixture {
	f := &fixture{
		users:     newFakeUserRepo(people...),
		convRepo:  newFakeConversationRepo(),
		notifRepo: &fakeNotificationRepo{},
		notifier:  &recordingNotifier{},
		clock:     newSteppingClock(),
	}
	f.msgRepo = newFakeMessageRepo(f.convRepo)
	f.conversations = NewConversationService(f.users, f.convRepo, f.msgRepo, presence, nil)
	f.notifications = NewNotificationService(f.notifRepo, f.notifier)
	f.notifications.clock = f.clock.Now
	f.messages = NewMessageService(f.conversations, f.convRepo, f.msgRepo, f.users, f.notifications, f.notifier, nil, 10<<20)
	f.messages.clock = f.clock.Now
	return f
}

func newUser(name string, role user.Role) user.User {
	return user.User{
		ID:    uuid.New(),
		Name:  name,
		Email: strings.ToLower(name) + "@example.com",
		Role:  role,
	}
}
