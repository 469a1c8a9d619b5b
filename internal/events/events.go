package events

import (
	"github.com/google/uuid"
)

// Server to client events
const (
	EventNewMessage      = "new_message"
	EventNewNotification = "new_notification"
	EventMessageRead     = "message_read"
)

// Client to server events
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
)

const (
	RoomPrefixConversation = "conversation:"
	RoomPrefixUser         = "user:"
)

func ConversationRoom(id uuid.UUID) string {
	return RoomPrefixConversation + id.String()
}

func UserRoom(id uuid.UUID) string {
	return RoomPrefixUser + id.String()
}

type NewMessagePayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	Message        any       `json:"message"`
}

type NotificationPayload struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	RelatedID *string   `json:"relatedId"`
}

// MessageReadPayload carries no MessageID for bulk conversation reads.
type MessageReadPayload struct {
	MessageID      *uuid.UUID `json:"messageId,omitempty"`
	ConversationID uuid.UUID  `json:"conversationId"`
}
