package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Type string

const (
	TypeNewMessage     Type = "NEW_MESSAGE"
	TypeBookingRequest Type = "BOOKING_REQUEST"
	TypeBookingUpdate  Type = "BOOKING_UPDATE"
	TypeReviewReceived Type = "REVIEW_RECEIVED"
	TypeReviewResponse Type = "REVIEW_RESPONSE"
	TypeContactForm    Type = "CONTACT_FORM"
	TypeSystem         Type = "SYSTEM"
)

func (t Type) Valid() bool {
	switch t {
	case TypeNewMessage, TypeBookingRequest, TypeBookingUpdate, TypeReviewReceived,
		TypeReviewResponse, TypeContactForm, TypeSystem:
		return true
	}
	return false
}

type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_notifications_user_read,priority:1"`
	Type      Type      `gorm:"type:varchar(32);not null"`
	RelatedID *string   `gorm:"type:varchar(64)"`
	Title     string    `gorm:"type:varchar(200);not null"`
	Message   string    `gorm:"type:text;not null"`
	IsRead    bool      `gorm:"not null;default:false;index:idx_notifications_user_read,priority:2"`
	ReadAt    *time.Time
	CreatedAt time.Time `gorm:"index"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// ListFilter scopes a listing to one recipient unless AllUsers is set.
type ListFilter struct {
	UserID     uuid.UUID
	AllUsers   bool
	UnreadOnly bool
	Page       int
	Limit      int
}
