package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-chat/internal/domain/conversation"
	market_errors "marketplace-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Upsert(ctx context.Context, clientID, professionalID uuid.UUID) (conversation.Conversation, bool, error) {
	c := conversation.Conversation{
		ClientID:       clientID,
		ProfessionalID: professionalID,
		IsActive:       true,
	}
	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}, {Name: "professional_id"}},
			DoNothing: true,
		}).
		Create(&c)
	// A concurrent insert of the same pair can still surface as a unique violation.
	if res.Error != nil && !isUniqueViolation(res.Error) {
		return conversation.Conversation{}, false, fmt.Errorf("upsert conversation: %w", res.Error)
	}
	created := res.Error == nil && res.RowsAffected == 1

	if !created {
		err := r.db.WithContext(ctx).
			Model(&conversation.Conversation{}).
			Where("client_id = ? AND professional_id = ? AND is_active = ?", clientID, professionalID, false).
			Updates(map[string]interface{}{"is_active": true, "updated_at": time.Now()}).Error
		if err != nil {
			return conversation.Conversation{}, false, fmt.Errorf("reactivate conversation: %w", err)
		}
	}

	conv, err := r.GetByPair(ctx, clientID, professionalID)
	if err != nil {
		return conversation.Conversation{}, false, err
	}
	return conv, created, nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, market_errors.ErrNotFound
		}
		return conversation.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetByPair(ctx context.Context, clientID, professionalID uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND professional_id = ?", clientID, professionalID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, market_errors.ErrNotFound
		}
		return conversation.Conversation{}, fmt.Errorf("get conversation by pair: %w", err)
	}
	return c, nil
}

func (r *PostgresConversationRepository) List(ctx context.Context, filter conversation.ListFilter) ([]conversation.Conversation, int64, error) {
	var conversations []conversation.Conversation
	var total int64

	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).
			Model(&conversation.Conversation{}).
			Where("(client_id = ? OR professional_id = ?)", filter.UserID, filter.UserID)
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		return q
	}

	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	_, limit, offset := NormalizePage(filter.Page, filter.Limit)
	if err := base().
		Order("last_message_at DESC NULLS LAST").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&conversations).Error; err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}

	return conversations, total, nil
}

func (r *PostgresConversationRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": active, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("set conversation active: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return market_errors.ErrNotFound
	}
	return nil
}

// TouchLastMessage is last-write-wins; concurrent senders may overwrite each other.
func (r *PostgresConversationRepository) TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"last_message_at": at, "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("touch conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return market_errors.ErrNotFound
	}
	return nil
}
