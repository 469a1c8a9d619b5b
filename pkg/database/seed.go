package database

import (
	"errors"
	"fmt"
	"log"
	"time"

	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/domain/user"

	"gorm.io/gorm"
)

// SeedConfig holds configuration for seeding the database
type SeedConfig struct {
	AdminEmail        string
	ClientCount       int
	ProfessionalCount int
	WithConversations bool
}

// DefaultSeedConfig returns default seed configuration
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		AdminEmail:        "admin@marketplace.local",
		ClientCount:       3,
		ProfessionalCount: 2,
		WithConversations: true,
	}
}

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	AdminUser     *user.User
	Clients       []*user.User
	Professionals []*user.User
	Conversations []*conversation.Conversation
	Messages      []*message.Message
}

// Seed creates sample users and, optionally, one conversation per
// client/professional pair with a short exchange.
func Seed(cfg *SeedConfig) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}
	result := &SeedResult{}

	log.Println("Starting database seeding...")

	admin, err := seedUser(cfg.AdminEmail, "Marketplace Admin", user.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to seed admin user: %w", err)
	}
	result.AdminUser = admin

	for i := 1; i <= cfg.ClientCount; i++ {
		u, err := seedUser(fmt.Sprintf("client%d@marketplace.local", i), fmt.Sprintf("Client %d", i), user.RoleClient)
		if err != nil {
			return nil, fmt.Errorf("failed to seed client: %w", err)
		}
		result.Clients = append(result.Clients, u)
	}
	for i := 1; i <= cfg.ProfessionalCount; i++ {
		u, err := seedUser(fmt.Sprintf("pro%d@marketplace.local", i), fmt.Sprintf("Professional %d", i), user.RoleProfessional)
		if err != nil {
			return nil, fmt.Errorf("failed to seed professional: %w", err)
		}
		result.Professionals = append(result.Professionals, u)
	}

	if cfg.WithConversations {
		if err := seedConversations(result); err != nil {
			return nil, fmt.Errorf("failed to seed conversations: %w", err)
		}
	}

	log.Println("Database seeding completed successfully!")
	return result, nil
}

// seedUser is idempotent on email.
func seedUser(email, name string, role user.Role) (*user.User, error) {
	var existing user.User
	err := DB.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	u := &user.User{Name: name, Email: email, Role: role}
	if err := DB.Create(u).Error; err != nil {
		return nil, err
	}
	log.Printf("Created %s user %s", role, email)
	return u, nil
}

func seedConversations(result *SeedResult) error {
	base := time.Now().Add(-2 * time.Hour)
	for ci, client := range result.Clients {
		for pi, pro := range result.Professionals {
			var conv conversation.Conversation
			err := DB.Where("client_id = ? AND professional_id = ?", client.ID, pro.ID).First(&conv).Error
			if err == nil {
				result.Conversations = append(result.Conversations, &conv)
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			conv = conversation.Conversation{ClientID: client.ID, ProfessionalID: pro.ID, IsActive: true}
			if err := DB.Omit("Client", "Professional").Create(&conv).Error; err != nil {
				return err
			}

			sentAt := base.Add(time.Duration(ci*len(result.Professionals)+pi) * time.Minute)
			lines := []struct {
				sender  *user.User
				content string
			}{
				{client, fmt.Sprintf("Hi %s, are you available next week?", pro.Name)},
				{pro, "Hola! Yes, I have a few openings."},
			}
			for i, line := range lines {
				m := &message.Message{
					ConversationID: conv.ID,
					SenderID:       line.sender.ID,
					Content:        line.content,
					MessageType:    message.TypeText,
					CreatedAt:      sentAt.Add(time.Duration(i) * time.Second),
				}
				if err := DB.Omit("Conversation").Create(m).Error; err != nil {
					return err
				}
				result.Messages = append(result.Messages, m)
				conv.LastMessageAt = &m.CreatedAt
			}
			if err := DB.Model(&conv).Update("last_message_at", conv.LastMessageAt).Error; err != nil {
				return err
			}
			result.Conversations = append(result.Conversations, &conv)
		}
	}
	return nil
}
