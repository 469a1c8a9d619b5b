package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleClient       Role = "CLIENT"
	RoleProfessional Role = "PROFESSIONAL"
	RoleAdmin        Role = "ADMIN"
)

// User is owned by the surrounding marketplace. The messaging core only reads it.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:varchar(120);not null"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	AvatarURL string    `gorm:"type:text"`
	Role      Role      `gorm:"type:varchar(20);not null;default:CLIENT"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsProfessional reports whether the user holds the professional capability,
// which decides the side they occupy in a conversation.
func (u User) IsProfessional() bool {
	return u.Role == RoleProfessional
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Summary is the participant/sender shape embedded in responses.
type Summary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Role      Role      `json:"role"`
	IsOnline  bool      `json:"isOnline"`
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL, Role: u.Role}
}
