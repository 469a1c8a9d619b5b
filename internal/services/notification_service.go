package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace-chat/internal/auth"
	"marketplace-chat/internal/domain/notification"
	"marketplace-chat/internal/events"
	"marketplace-chat/internal/repository"
	market_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/metrics"

	"github.com/google/uuid"
)

type CreateNotificationInput struct {
	UserID    uuid.UUID
	Title     string
	Message   string
	Type      notification.Type
	RelatedID *string
}

type ListNotificationsInput struct {
	Page       int
	Limit      int
	UnreadOnly bool
	ScopeAll   bool
}

type NotificationService struct {
	repo     repository.NotificationRepository
	notifier events.Notifier
	clock    func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository, notifier events.Notifier) *NotificationService {
	if notifier == nil {
		notifier = events.NopNotifier{}
	}
	return &NotificationService{repo: repo, notifier: notifier, clock: time.Now}
}

// Create inserts the record and pushes new_notification to the recipient.
// There is no dedup: every call is a new row.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (NotificationView, error) {
	if input.UserID == uuid.Nil {
		return NotificationView{}, fmt.Errorf("%w: userId is required", market_errors.ErrValidation)
	}
	if input.Type == "" {
		input.Type = notification.TypeSystem
	}
	if !input.Type.Valid() {
		return NotificationView{}, fmt.Errorf("%w: unknown notification type %q", market_errors.ErrValidation, input.Type)
	}
	title := strings.TrimSpace(input.Title)
	body := strings.TrimSpace(input.Message)
	if title == "" || body == "" {
		return NotificationView{}, fmt.Errorf("%w: title and message are required", market_errors.ErrValidation)
	}

	n := notification.Notification{
		UserID:    input.UserID,
		Type:      input.Type,
		RelatedID: input.RelatedID,
		Title:     title,
		Message:   body,
		CreatedAt: s.clock(),
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		return NotificationView{}, err
	}
	metrics.NotificationsTotal.WithLabelValues(string(n.Type)).Inc()

	s.notifier.NewNotification(ctx, n.UserID, events.NotificationPayload{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		RelatedID: n.RelatedID,
	})
	return toNotificationView(n), nil
}

// List returns the caller's notifications, or everyone's for an elevated
// caller asking for global scope.
func (s *NotificationService) List(ctx context.Context, caller auth.Identity, input ListNotificationsInput) (NotificationPage, error) {
	if input.ScopeAll && !caller.IsElevated() {
		return NotificationPage{}, market_errors.ErrForbidden
	}

	items, total, err := s.repo.List(ctx, notification.ListFilter{
		UserID:     caller.ID,
		AllUsers:   input.ScopeAll,
		UnreadOnly: input.UnreadOnly,
		Page:       input.Page,
		Limit:      input.Limit,
	})
	if err != nil {
		return NotificationPage{}, err
	}
	unread, err := s.repo.CountUnread(ctx, caller.ID)
	if err != nil {
		return NotificationPage{}, err
	}

	views := make([]NotificationView, 0, len(items))
	for _, n := range items {
		views = append(views, toNotificationView(n))
	}
	return NotificationPage{
		Notifications: views,
		Total:         total,
		HasMore:       hasMore(input.Page, input.Limit, total),
		UnreadCount:   unread,
	}, nil
}

func (s *NotificationService) loadOwned(ctx context.Context, id uuid.UUID, callerID uuid.UUID) (notification.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return notification.Notification{}, err
	}
	if n.UserID != callerID {
		return notification.Notification{}, market_errors.ErrForbidden
	}
	return n, nil
}

// MarkRead is owner only and idempotent.
func (s *NotificationService) MarkRead(ctx context.Context, id, callerID uuid.UUID) (NotificationView, error) {
	n, err := s.loadOwned(ctx, id, callerID)
	if err != nil {
		return NotificationView{}, err
	}
	if n.IsRead {
		return toNotificationView(n), nil
	}

	now := s.clock()
	changed, err := s.repo.MarkRead(ctx, id, now)
	if err != nil {
		return NotificationView{}, err
	}
	if !changed {
		n, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return NotificationView{}, err
		}
		return toNotificationView(n), nil
	}
	n.IsRead = true
	n.ReadAt = &now
	return toNotificationView(n), nil
}

// MarkMany marks the given ids read, ignoring any that are not the caller's.
func (s *NotificationService) MarkMany(ctx context.Context, callerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.repo.MarkReadForUser(ctx, callerID, ids, s.clock())
}

// MarkAll marks the caller's notifications read, or every user's when an
// elevated caller asks for global scope.
func (s *NotificationService) MarkAll(ctx context.Context, caller auth.Identity, scopeAll bool) (int64, error) {
	if scopeAll {
		if !caller.IsElevated() {
			return 0, market_errors.ErrForbidden
		}
		return s.repo.MarkAllRead(ctx, nil, s.clock())
	}
	userID := caller.ID
	return s.repo.MarkAllRead(ctx, &userID, s.clock())
}

// Delete is owner only and returns the removed record.
func (s *NotificationService) Delete(ctx context.Context, id, callerID uuid.UUID) (NotificationView, error) {
	n, err := s.loadOwned(ctx, id, callerID)
	if err != nil {
		return NotificationView{}, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return NotificationView{}, err
	}
	return toNotificationView(n), nil
}
