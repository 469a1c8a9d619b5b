package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/domain/notification"
	"marketplace-chat/internal/domain/user"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.User, error)
}

type ConversationRepository interface {
	// Upsert inserts the pair or re-activates the existing row, then returns it.
	// created is true only when this call inserted the row.
	Upsert(ctx context.Context, clientID, professionalID uuid.UUID) (conv conversation.Conversation, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	GetByPair(ctx context.Context, clientID, professionalID uuid.UUID) (conversation.Conversation, error)
	List(ctx context.Context, filter conversation.ListFilter) ([]conversation.Conversation, int64, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]message.Message, error)
	// MarkRead flips one unread message; false means it was already read.
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int64, error)
	LastMessages(ctx context.Context, conversationIDs []uuid.UUID) (map[uuid.UUID]message.Message, error)
	UnreadCounts(ctx context.Context, conversationIDs []uuid.UUID, readerID uuid.UUID) (map[uuid.UUID]int64, error)
	Search(ctx context.Context, filter message.SearchFilter) ([]message.Message, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (notification.Notification, error)
	List(ctx context.Context, filter notification.ListFilter) ([]notification.Notification, int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// MarkReadForUser silently skips ids that do not belong to userID.
	MarkReadForUser(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error)
	// MarkAllRead marks every unread row; a nil userID means every user.
	MarkAllRead(ctx context.Context, userID *uuid.UUID, at time.Time) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
