package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/domain/notification"
	"marketplace-chat/internal/domain/user"
	"marketplace-chat/internal/events"
	"marketplace-chat/internal/repository"
	"marketplace-chat/internal/storage"
	market_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/logger"
	"marketplace-chat/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxContentLength   = 5000
	MinSearchLength    = 2
	MaxSearchResults   = 50
	DefaultHistorySize = 50
	MaxHistorySize     = 100
	previewLength      = 120
)

type SendMessageInput struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Content        string
	MessageType    message.Type
	File           *message.FileMeta
}

type MessageService struct {
	conversations *ConversationService
	convRepo      repository.ConversationRepository
	repo          repository.MessageRepository
	users         repository.UserRepository
	notifications *NotificationService
	notifier      events.Notifier
	files         FileLocator
	maxFileSize   int64
	clock         func() time.Time
}

func NewMessageService(
	conversations *ConversationService,
	convRepo repository.ConversationRepository,
	repo repository.MessageRepository,
	users repository.UserRepository,
	notifications *NotificationService,
	notifier events.Notifier,
	files FileLocator,
	maxFileSize int64,
) *MessageService {
	if notifier == nil {
		notifier = events.NopNotifier{}
	}
	return &MessageService{
		conversations: conversations,
		convRepo:      convRepo,
		repo:          repo,
		users:         users,
		notifications: notifications,
		notifier:      notifier,
		files:         files,
		maxFileSize:   maxFileSize,
		clock:         time.Now,
	}
}

func (s *MessageService) validate(input *SendMessageInput) error {
	if input.MessageType == "" {
		input.MessageType = message.TypeText
	}
	if !input.MessageType.Valid() {
		return fmt.Errorf("%w: unknown message type %q", market_errors.ErrValidation, input.MessageType)
	}
	input.Content = strings.TrimSpace(input.Content)
	if utf8.RuneCountInString(input.Content) > MaxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", market_errors.ErrValidation, MaxContentLength)
	}

	if !input.MessageType.HasAttachment() {
		if input.Content == "" {
			return fmt.Errorf("%w: content is required", market_errors.ErrValidation)
		}
		input.File = nil
		return nil
	}

	if input.File == nil || strings.TrimSpace(input.File.Name) == "" {
		return fmt.Errorf("%w: %s messages need file metadata", market_errors.ErrValidation, input.MessageType)
	}
	if input.File.Size < 0 {
		return fmt.Errorf("%w: fileSize must not be negative", market_errors.ErrValidation)
	}
	if s.maxFileSize > 0 && input.File.Size > s.maxFileSize {
		return market_errors.ErrTooLarge
	}
	input.File.Key = strings.TrimSpace(input.File.Key)
	if input.File.Key != "" && !storage.OwnsAttachmentKey(input.ConversationID, input.File.Key) {
		return fmt.Errorf("%w: fileKey is not an upload of this conversation", market_errors.ErrValidation)
	}
	if input.Content == "" {
		input.Content = input.File.Name
	}
	return nil
}

// Send persists a message, bumps the conversation's ordering timestamp,
// notifies the recipient and fans the message out to the conversation room.
func (s *MessageService) Send(ctx context.Context, input SendMessageInput) (MessageView, error) {
	conv, err := s.conversations.Load(ctx, input.ConversationID, input.SenderID)
	if err != nil {
		return MessageView{}, err
	}
	if err := s.validate(&input); err != nil {
		return MessageView{}, err
	}

	now := s.clock()
	msg := message.Message{
		ConversationID: conv.ID,
		SenderID:       input.SenderID,
		Content:        input.Content,
		MessageType:    input.MessageType,
		CreatedAt:      now,
	}
	if f := input.File; f != nil {
		msg.FileName = optionalString(f.Name)
		msg.FileMimeType = optionalString(f.MimeType)
		msg.FileKey = optionalString(f.Key)
		if f.Size > 0 {
			size := f.Size
			msg.FileSize = &size
		}
	}

	if err := s.repo.Create(ctx, &msg); err != nil {
		return MessageView{}, err
	}
	metrics.MessagesTotal.WithLabelValues(string(msg.MessageType)).Inc()

	log := logger.GetGlobalLogger().WithContext(ctx)
	if err := s.convRepo.TouchLastMessage(ctx, conv.ID, now); err != nil {
		// the message is stored; ordering catches up on the next send
		log.Warn("failed to bump last_message_at", zap.String("conversation_id", conv.ID.String()), zap.Error(err))
	}

	var sender *user.Summary
	if u, err := s.users.GetUserByID(ctx, input.SenderID); err == nil {
		sum := u.Summary()
		sender = &sum
	} else {
		log.Warn("sender lookup failed", zap.String("sender_id", input.SenderID.String()), zap.Error(err))
	}
	view := toMessageView(msg, sender, s.files)

	if s.notifications != nil {
		relatedID := conv.ID.String()
		if _, err := s.notifications.Create(ctx, CreateNotificationInput{
			UserID:    conv.Counterpart(input.SenderID),
			Title:     newMessageTitle(sender),
			Message:   preview(msg),
			Type:      notification.TypeNewMessage,
			RelatedID: &relatedID,
		}); err != nil {
			log.Warn("failed to record message notification", zap.String("conversation_id", conv.ID.String()), zap.Error(err))
		}
	}

	s.notifier.NewMessage(ctx, conv.ID, view)
	return view, nil
}

// MarkOneRead flips one message to read. Reading your own message is a
// successful no-op, and repeated calls converge on the same state.
func (s *MessageService) MarkOneRead(ctx context.Context, messageID, callerID uuid.UUID) (MessageView, error) {
	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return MessageView{}, err
	}
	conv, err := s.convRepo.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return MessageView{}, err
	}
	if err := AssertParticipant(conv, callerID); err != nil {
		return MessageView{}, err
	}

	if msg.SenderID == callerID || msg.IsRead {
		return toMessageView(msg, nil, s.files), nil
	}

	now := s.clock()
	changed, err := s.repo.MarkRead(ctx, msg.ID, now)
	if err != nil {
		return MessageView{}, err
	}
	if !changed {
		// another request won the race
		msg, err = s.repo.GetByID(ctx, messageID)
		if err != nil {
			return MessageView{}, err
		}
		return toMessageView(msg, nil, s.files), nil
	}

	msg.IsRead = true
	msg.ReadAt = &now
	s.notifier.MessageRead(ctx, conv.ID, &msg.ID)
	return toMessageView(msg, nil, s.files), nil
}

// MarkConversationRead marks every unread message from the other side and
// emits a single message_read for the conversation.
func (s *MessageService) MarkConversationRead(ctx context.Context, conversationID, callerID uuid.UUID) (int64, error) {
	conv, err := s.conversations.Load(ctx, conversationID, callerID)
	if err != nil {
		return 0, err
	}
	updated, err := s.repo.MarkConversationRead(ctx, conv.ID, callerID, s.clock())
	if err != nil {
		return 0, err
	}
	s.notifier.MessageRead(ctx, conv.ID, nil)
	return updated, nil
}

// Search matches content case-insensitively within the caller's conversations.
func (s *MessageService) Search(ctx context.Context, callerID uuid.UUID, query string, conversationID *uuid.UUID) (SearchResult, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < MinSearchLength {
		return SearchResult{}, fmt.Errorf("%w: query must be at least %d characters", market_errors.ErrValidation, MinSearchLength)
	}
	if conversationID != nil {
		if _, err := s.conversations.Load(ctx, *conversationID, callerID); err != nil {
			return SearchResult{}, err
		}
	}

	msgs, err := s.repo.Search(ctx, message.SearchFilter{
		UserID:         callerID,
		Query:          q,
		ConversationID: conversationID,
		Limit:          MaxSearchResults,
	})
	if err != nil {
		return SearchResult{}, err
	}

	views, err := s.withSenders(ctx, msgs)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Messages: views, Total: len(views)}, nil
}

// ListMessages pages history newest first; before is an exclusive cursor.
func (s *MessageService) ListMessages(ctx context.Context, conversationID, callerID uuid.UUID, before *time.Time, limit int) ([]MessageView, error) {
	if _, err := s.conversations.Load(ctx, conversationID, callerID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	if limit > MaxHistorySize {
		limit = MaxHistorySize
	}
	msgs, err := s.repo.ListByConversation(ctx, conversationID, before, limit)
	if err != nil {
		return nil, err
	}
	return s.withSenders(ctx, msgs)
}

func (s *MessageService) withSenders(ctx context.Context, msgs []message.Message) ([]MessageView, error) {
	senders, err := senderSummaries(ctx, s.users, msgs)
	if err != nil {
		return nil, fmt.Errorf("load senders: %w", err)
	}
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		var sender *user.Summary
		if u, ok := senders[m.SenderID]; ok {
			sum := u.Summary()
			sender = &sum
		}
		views = append(views, toMessageView(m, sender, s.files))
	}
	return views, nil
}

func newMessageTitle(sender *user.Summary) string {
	if sender == nil || sender.Name == "" {
		return "New message"
	}
	return "New message from " + sender.Name
}

func preview(m message.Message) string {
	if m.MessageType.HasAttachment() && m.FileName != nil {
		return "Sent a file: " + *m.FileName
	}
	content := m.Content
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLength]) + "..."
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
