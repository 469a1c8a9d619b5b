package handler_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"marketplace-chat/internal/auth"
	"marketplace-chat/internal/redis"
	"marketplace-chat/internal/services"

	"github.com/google/uuid"
)

type fakeResolver struct {
	identities map[string]auth.Identity
	err        error
}

func (r *fakeResolver) Resolve(_ context.Context, creds auth.Credentials) (*auth.Identity, error) {
	if r.err != nil {
		return nil, r.err
	}
	if id, ok := r.identities[creds.Bearer()]; ok {
		return &id, nil
	}
	return nil, nil
}

type fakeConversations struct {
	mu        sync.Mutex
	created   []uuid.UUID
	listCalls []*bool
	result    *services.ConversationView
	err       error
}

func (f *fakeConversations) GetOrCreate(_ context.Context, requesterID, counterpartID uuid.UUID) (*services.ConversationView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, counterpartID)
	if requesterID == counterpartID {
		return nil, nil
	}
	return f.result, f.err
}

func (f *fakeConversations) Get(_ context.Context, id, _ uuid.UUID) (services.ConversationView, error) {
	if f.err != nil {
		return services.ConversationView{}, f.err
	}
	return services.ConversationView{ID: id}, nil
}

func (f *fakeConversations) List(_ context.Context, _ uuid.UUID, _, _ int, isActive *bool) (services.ConversationPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, isActive)
	return services.ConversationPage{Conversations: []services.ConversationView{}}, f.err
}

func (f *fakeConversations) SetActive(_ context.Context, id, _ uuid.UUID, active bool) (services.ConversationView, error) {
	return services.ConversationView{ID: id, IsActive: active}, f.err
}

type fakeMessages struct {
	mu       sync.Mutex
	sent     []services.SendMessageInput
	searches []string
	sendErr  error
}

func (f *fakeMessages) sends() []services.SendMessageInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]services.SendMessageInput(nil), f.sent...)
}

func (f *fakeMessages) Send(_ context.Context, input services.SendMessageInput) (services.MessageView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return services.MessageView{}, f.sendErr
	}
	f.sent = append(f.sent, input)
	return services.MessageView{
		ID:             uuid.New(),
		ConversationID: input.ConversationID,
		SenderID:       input.SenderID,
		Content:        input.Content,
		MessageType:    input.MessageType,
		CreatedAt:      time.Now(),
	}, nil
}

func (f *fakeMessages) MarkOneRead(_ context.Context, messageID, _ uuid.UUID) (services.MessageView, error) {
	now := time.Now()
	return services.MessageView{ID: messageID, IsRead: true, ReadAt: &now}, nil
}

func (f *fakeMessages) MarkConversationRead(context.Context, uuid.UUID, uuid.UUID) (int64, error) {
	return 3, nil
}

func (f *fakeMessages) Search(_ context.Context, _ uuid.UUID, query string, _ *uuid.UUID) (services.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, query)
	return services.SearchResult{Messages: []services.MessageView{}}, nil
}

func (f *fakeMessages) ListMessages(context.Context, uuid.UUID, uuid.UUID, *time.Time, int) ([]services.MessageView, error) {
	return []services.MessageView{}, nil
}

type fakeNotifications struct {
	mu        sync.Mutex
	created   []services.CreateNotificationInput
	markedIDs []uuid.UUID
	markAll   []bool
}

func (f *fakeNotifications) Create(_ context.Context, input services.CreateNotificationInput) (services.NotificationView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, input)
	return services.NotificationView{ID: uuid.New(), UserID: input.UserID, Title: input.Title}, nil
}

func (f *fakeNotifications) List(_ context.Context, caller auth.Identity, input services.ListNotificationsInput) (services.NotificationPage, error) {
	return services.NotificationPage{Notifications: []services.NotificationView{}}, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id, callerID uuid.UUID) (services.NotificationView, error) {
	return services.NotificationView{ID: id, UserID: callerID, IsRead: true}, nil
}

func (f *fakeNotifications) MarkMany(_ context.Context, _ uuid.UUID, ids []uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedIDs = append(f.markedIDs, ids...)
	return int64(len(ids)), nil
}

func (f *fakeNotifications) MarkAll(_ context.Context, _ auth.Identity, scopeAll bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markAll = append(f.markAll, scopeAll)
	return 7, nil
}

func (f *fakeNotifications) Delete(_ context.Context, id, callerID uuid.UUID) (services.NotificationView, error) {
	return services.NotificationView{ID: id, UserID: callerID}, nil
}

type fakeLimiter struct {
	deny  bool
	err   error
	calls []string
}

func (l *fakeLimiter) AllowMessage(_ context.Context, userID string) (*redis.RateLimitResult, error) {
	l.calls = append(l.calls, userID)
	if l.err != nil {
		return nil, l.err
	}
	if l.deny {
		return &redis.RateLimitResult{Allowed: false, Remaining: 0, ResetIn: 30 * time.Second, Limit: 60}, nil
	}
	return &redis.RateLimitResult{Allowed: true, Remaining: 59, ResetIn: time.Minute, Limit: 60}, nil
}

func jsonRequest(method, path, token, body string) *http.Request {
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
