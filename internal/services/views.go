package services

import (
	"context"
	"time"

	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/domain/notification"
	"marketplace-chat/internal/domain/user"
	"marketplace-chat/internal/repository"

	"github.com/google/uuid"
)

// MessageView is shared by the REST responses and the new_message payload.
type MessageView struct {
	ID             uuid.UUID     `json:"id"`
	ConversationID uuid.UUID     `json:"conversationId"`
	SenderID       uuid.UUID     `json:"senderId"`
	Content        string        `json:"content"`
	MessageType    message.Type  `json:"messageType"`
	IsRead         bool          `json:"isRead"`
	ReadAt         *time.Time    `json:"readAt"`
	FileName       *string       `json:"fileName,omitempty"`
	FileSize       *int64        `json:"fileSize,omitempty"`
	FileMimeType   *string       `json:"fileMimeType,omitempty"`
	FileURL        string        `json:"fileUrl,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	Sender         *user.Summary `json:"sender,omitempty"`
}

type ConversationView struct {
	ID             uuid.UUID     `json:"id"`
	ClientID       uuid.UUID     `json:"clientId"`
	ProfessionalID uuid.UUID     `json:"professionalId"`
	IsActive       bool          `json:"isActive"`
	LastMessageAt  *time.Time    `json:"lastMessageAt"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	Client         *user.Summary `json:"client,omitempty"`
	Professional   *user.Summary `json:"professional,omitempty"`
	LastMessage    *MessageView  `json:"lastMessage"`
	UnreadCount    int64         `json:"unreadCount"`
}

type ConversationPage struct {
	Conversations []ConversationView `json:"conversations"`
	Total         int64              `json:"total"`
	HasMore       bool               `json:"hasMore"`
}

type SearchResult struct {
	Messages []MessageView `json:"messages"`
	Total    int           `json:"total"`
}

type NotificationView struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"userId"`
	Type      notification.Type `json:"type"`
	RelatedID *string           `json:"relatedId"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	IsRead    bool              `json:"isRead"`
	ReadAt    *time.Time        `json:"readAt"`
	CreatedAt time.Time         `json:"createdAt"`
}

type NotificationPage struct {
	Notifications []NotificationView `json:"notifications"`
	Total         int64              `json:"total"`
	HasMore       bool               `json:"hasMore"`
	UnreadCount   int64              `json:"unreadCount"`
}

// PresenceReader reports which users currently hold an open socket.
type PresenceReader interface {
	OnlineMap(ctx context.Context, userIDs []string) (map[string]bool, error)
}

// FileLocator turns a stored object key into a public URL. Empty means none.
type FileLocator interface {
	FileURL(key string) string
}

func toMessageView(m message.Message, sender *user.Summary, files FileLocator) MessageView {
	v := MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		MessageType:    m.MessageType,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		FileName:       m.FileName,
		FileSize:       m.FileSize,
		FileMimeType:   m.FileMimeType,
		CreatedAt:      m.CreatedAt,
		Sender:         sender,
	}
	if files != nil && m.FileKey != nil {
		v.FileURL = files.FileURL(*m.FileKey)
	}
	return v
}

func toConversationView(c conversation.Conversation) ConversationView {
	return ConversationView{
		ID:             c.ID,
		ClientID:       c.ClientID,
		ProfessionalID: c.ProfessionalID,
		IsActive:       c.IsActive,
		LastMessageAt:  c.LastMessageAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func toNotificationView(n notification.Notification) NotificationView {
	return NotificationView{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		RelatedID: n.RelatedID,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

func hasMore(page, limit int, total int64) bool {
	_, limit, offset := repository.NormalizePage(page, limit)
	return int64(offset+limit) < total
}
