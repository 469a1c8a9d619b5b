package conversation

import (
	"time"

	"marketplace-chat/internal/domain/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is the unique pairing of one client and one professional.
// (client_id, professional_id) is the upsert key.
type Conversation struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ClientID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_pair,priority:1"`
	ProfessionalID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_pair,priority:2;index"`
	IsActive       bool       `gorm:"not null;default:true"`
	LastMessageAt  *time.Time `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Relationships
	Client       *user.User `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE"`
	Professional *user.User `gorm:"foreignKey:ProfessionalID;constraint:OnDelete:CASCADE"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.ClientID == userID || c.ProfessionalID == userID
}

// Counterpart returns the other participant's id.
func (c Conversation) Counterpart(userID uuid.UUID) uuid.UUID {
	if c.ClientID == userID {
		return c.ProfessionalID
	}
	return c.ClientID
}

// ListFilter drives the paginated per-user listing.
type ListFilter struct {
	UserID   uuid.UUID
	IsActive *bool
	Page     int
	Limit    int
}
