package services

import (
	"context"
	"fmt"

	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/domain/user"
	"marketplace-chat/internal/repository"
	market_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/metrics"

	"github.com/google/uuid"
)

type ConversationService struct {
	users    repository.UserRepository
	repo     repository.ConversationRepository
	messages repository.MessageRepository
	presence PresenceReader
	files    FileLocator
}

func NewConversationService(users repository.UserRepository, repo repository.ConversationRepository, messages repository.MessageRepository, presence PresenceReader, files FileLocator) *ConversationService {
	return &ConversationService{
		users:    users,
		repo:     repo,
		messages: messages,
		presence: presence,
		files:    files,
	}
}

// GetOrCreate returns the conversation between the two users, creating or
// re-activating it. A user contacting themselves gets (nil, nil).
func (s *ConversationService) GetOrCreate(ctx context.Context, requesterID, counterpartID uuid.UUID) (*ConversationView, error) {
	if requesterID == uuid.Nil || counterpartID == uuid.Nil {
		return nil, market_errors.ErrInvalidInput
	}
	if requesterID == counterpartID {
		return nil, nil
	}

	requester, err := s.users.GetUserByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	counterpart, err := s.users.GetUserByID(ctx, counterpartID)
	if err != nil {
		return nil, err
	}

	clientID, professionalID, err := conversation.ResolveSides(requester, counterpart)
	if err != nil {
		return nil, err
	}

	conv, created, err := s.repo.Upsert(ctx, clientID, professionalID)
	if err != nil {
		return nil, err
	}
	if created {
		metrics.ConversationsTotal.Inc()
	}

	views, err := s.hydrate(ctx, []conversation.Conversation{conv}, requesterID, map[uuid.UUID]user.User{
		requester.ID:   requester,
		counterpart.ID: counterpart,
	})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Load fetches a conversation and checks membership: 404 first, then 403.
func (s *ConversationService) Load(ctx context.Context, id, callerID uuid.UUID) (conversation.Conversation, error) {
	conv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if err := AssertParticipant(conv, callerID); err != nil {
		return conversation.Conversation{}, err
	}
	return conv, nil
}

func AssertParticipant(conv conversation.Conversation, userID uuid.UUID) error {
	if !conv.HasParticipant(userID) {
		return market_errors.ErrForbidden
	}
	return nil
}

func (s *ConversationService) Get(ctx context.Context, id, callerID uuid.UUID) (ConversationView, error) {
	conv, err := s.Load(ctx, id, callerID)
	if err != nil {
		return ConversationView{}, err
	}
	views, err := s.hydrate(ctx, []conversation.Conversation{conv}, callerID, nil)
	if err != nil {
		return ConversationView{}, err
	}
	return views[0], nil
}

// List pages the caller's conversations, most recently active first.
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID, page, limit int, isActive *bool) (ConversationPage, error) {
	convs, total, err := s.repo.List(ctx, conversation.ListFilter{
		UserID:   userID,
		IsActive: isActive,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return ConversationPage{}, err
	}

	views, err := s.hydrate(ctx, convs, userID, nil)
	if err != nil {
		return ConversationPage{}, err
	}
	return ConversationPage{
		Conversations: views,
		Total:         total,
		HasMore:       hasMore(page, limit, total),
	}, nil
}

// SetActive closes or reopens a conversation. Either participant may do it.
func (s *ConversationService) SetActive(ctx context.Context, id, callerID uuid.UUID, active bool) (ConversationView, error) {
	if _, err := s.Load(ctx, id, callerID); err != nil {
		return ConversationView{}, err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return ConversationView{}, err
	}
	return s.Get(ctx, id, callerID)
}

// hydrate attaches participant summaries, the latest message and the
// viewer's unread count. known may pre-seed the user lookup.
func (s *ConversationService) hydrate(ctx context.Context, convs []conversation.Conversation, viewerID uuid.UUID, known map[uuid.UUID]user.User) ([]ConversationView, error) {
	views := make([]ConversationView, 0, len(convs))
	if len(convs) == 0 {
		return views, nil
	}

	ids := make([]uuid.UUID, 0, len(convs))
	var missing []uuid.UUID
	seen := map[uuid.UUID]bool{}
	for _, c := range convs {
		ids = append(ids, c.ID)
		for _, uid := range []uuid.UUID{c.ClientID, c.ProfessionalID} {
			if _, ok := known[uid]; ok || seen[uid] {
				continue
			}
			seen[uid] = true
			missing = append(missing, uid)
		}
	}

	users := make(map[uuid.UUID]user.User, len(known)+len(missing))
	for id, u := range known {
		users[id] = u
	}
	if len(missing) > 0 {
		fetched, err := s.users.GetUsersByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("load participants: %w", err)
		}
		for id, u := range fetched {
			users[id] = u
		}
	}

	last, err := s.messages.LastMessages(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load last messages: %w", err)
	}
	unread, err := s.messages.UnreadCounts(ctx, ids, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load unread counts: %w", err)
	}
	online := s.onlineMap(ctx, users)

	for _, c := range convs {
		v := toConversationView(c)
		v.Client = summaryOf(users, c.ClientID, online)
		v.Professional = summaryOf(users, c.ProfessionalID, online)
		if m, ok := last[c.ID]; ok {
			mv := toMessageView(m, nil, s.files)
			v.LastMessage = &mv
		}
		v.UnreadCount = unread[c.ID]
		views = append(views, v)
	}
	return views, nil
}

// onlineMap is best effort: a presence outage shows everyone offline.
func (s *ConversationService) onlineMap(ctx context.Context, users map[uuid.UUID]user.User) map[string]bool {
	if s.presence == nil || len(users) == 0 {
		return nil
	}
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id.String())
	}
	online, err := s.presence.OnlineMap(ctx, ids)
	if err != nil {
		return nil
	}
	return online
}

func summaryOf(users map[uuid.UUID]user.User, id uuid.UUID, online map[string]bool) *user.Summary {
	u, ok := users[id]
	if !ok {
		return nil
	}
	sum := u.Summary()
	sum.IsOnline = online[id.String()]
	return &sum
}

func senderSummaries(ctx context.Context, users repository.UserRepository, msgs []message.Message) (map[uuid.UUID]user.User, error) {
	ids := make([]uuid.UUID, 0, len(msgs))
	seen := map[uuid.UUID]bool{}
	for _, m := range msgs {
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			ids = append(ids, m.SenderID)
		}
	}
	if len(ids) == 0 {
		return map[uuid.UUID]user.User{}, nil
	}
	return users.GetUsersByIDs(ctx, ids)
}
