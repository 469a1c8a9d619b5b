package message

import (
	"time"

	"marketplace-chat/internal/domain/conversation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Type string

const (
	TypeText   Type = "TEXT"
	TypeImage  Type = "IMAGE"
	TypeFile   Type = "FILE"
	TypeSystem Type = "SYSTEM"
)

func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeFile, TypeSystem:
		return true
	}
	return false
}

// HasAttachment reports whether the type carries file metadata.
func (t Type) HasAttachment() bool {
	return t == TypeImage || t == TypeFile
}

// Message belongs to exactly one conversation and is deleted with it.
// The only mutation after insert is the unread -> read transition.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Content        string    `gorm:"type:text;not null"`
	MessageType    Type      `gorm:"type:varchar(10);not null;default:TEXT"`
	IsRead         bool      `gorm:"not null;default:false;index"`
	ReadAt         *time.Time
	FileName       *string   `gorm:"type:varchar(255)"`
	FileSize       *int64
	FileMimeType   *string   `gorm:"type:varchar(120)"`
	FileKey        *string   `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null;index:idx_messages_conversation_created,priority:2,sort:desc"`

	// Relationships
	Conversation *conversation.Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// FileMeta is the optional attachment description supplied on send.
type FileMeta struct {
	Name     string
	Size     int64
	MimeType string
	Key      string
}

// SearchFilter restricts a content search to the caller's conversations.
type SearchFilter struct {
	UserID         uuid.UUID
	Query          string
	ConversationID *uuid.UUID
	Limit          int
}
