package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-chat/internal/domain/message"
	market_errors "marketplace-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	res := r.db.WithContext(ctx).Omit(clause.Associations).Create(m)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return market_errors.ErrConflict
		}
		return fmt.Errorf("create message: %w", res.Error)
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, market_errors.ErrNotFound
		}
		return message.Message{}, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (r *PostgresMessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]message.Message, error) {
	var messages []message.Message
	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if before != nil {
		q = q.Where("created_at < ?", *before)
	}
	if err := q.Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// MarkRead only touches unread rows so concurrent callers converge on one transition.
func (r *PostgresMessageRepository) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if res.Error != nil {
		return false, fmt.Errorf("mark message read: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresMessageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if res.Error != nil {
		return 0, fmt.Errorf("mark conversation read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *PostgresMessageRepository) LastMessages(ctx context.Context, conversationIDs []uuid.UUID) (map[uuid.UUID]message.Message, error) {
	out := make(map[uuid.UUID]message.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	var messages []message.Message
	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (conversation_id) *
			FROM messages
			WHERE conversation_id IN ?
			ORDER BY conversation_id, created_at DESC`, conversationIDs).
		Scan(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("last messages: %w", err)
	}
	for _, m := range messages {
		out[m.ConversationID] = m
	}
	return out, nil
}

type unreadRow struct {
	ConversationID uuid.UUID
	Count          int64
}

// UnreadCounts counts unread messages authored by the other participant,
// grouped per conversation and scoped to readerID.
func (r *PostgresMessageRepository) UnreadCounts(ctx context.Context, conversationIDs []uuid.UUID, readerID uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	var rows []unreadRow
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Select("conversation_id, COUNT(*) AS count").
		Where("conversation_id IN ? AND sender_id <> ? AND is_read = ?", conversationIDs, readerID, false).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}
	for _, row := range rows {
		out[row.ConversationID] = row.Count
	}
	return out, nil
}

func (r *PostgresMessageRepository) Search(ctx context.Context, filter message.SearchFilter) ([]message.Message, error) {
	var messages []message.Message
	q := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("(conversations.client_id = ? OR conversations.professional_id = ?)", filter.UserID, filter.UserID).
		Where("messages.content ILIKE ?", containsPattern(filter.Query))
	if filter.ConversationID != nil {
		q = q.Where("messages.conversation_id = ?", *filter.ConversationID)
	}
	err := q.Select("messages.*").
		Order("messages.created_at DESC").
		Limit(filter.Limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	return messages, nil
}
