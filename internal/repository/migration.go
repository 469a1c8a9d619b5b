package repository

import (
	"fmt"

	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/domain/notification"
	"marketplace-chat/internal/domain/user"
	"marketplace-chat/pkg/logger"

	"gorm.io/gorm"
)

// Models lists every table the messaging core migrates, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&conversation.Conversation{},
		&message.Message{},
		&notification.Notification{},
	}
}

// InitSchema runs gorm auto-migration and the raw indexes gorm tags cannot express.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// Partial index backing unread counts and mark-read scans.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_unread
		ON messages (conversation_id, sender_id) WHERE is_read = false`).Error; err != nil {
		return fmt.Errorf("create unread index: %w", err)
	}

	// Trigram search needs pg_trgm, which usually requires superuser.
	// ILIKE search still works without it, just unindexed.
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`).Error; err != nil {
		logger.GetGlobalLogger().Warnf("pg_trgm unavailable, message search will be unindexed: %v", err)
		return nil
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_content_trgm
		ON messages USING gin (content gin_trgm_ops)`).Error; err != nil {
		return fmt.Errorf("create search index: %w", err)
	}
	return nil
}

// DropSchema removes the core tables. Used by the migrate CLI reset command.
func DropSchema(db *gorm.DB) error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(models[i]); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	return nil
}
