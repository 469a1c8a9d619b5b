package events

import (
	"context"

	"marketplace-chat/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier is the best-effort fanout handle injected into the write paths.
// Methods return nothing: a lost event must never fail the write that caused it.
type Notifier interface {
	NewMessage(ctx context.Context, conversationID uuid.UUID, message any)
	MessageRead(ctx context.Context, conversationID uuid.UUID, messageID *uuid.UUID)
	NewNotification(ctx context.Context, userID uuid.UUID, payload NotificationPayload)
}

// NopNotifier drops every event. Used when no realtime transport is attached.
type NopNotifier struct{}

func (NopNotifier) NewMessage(context.Context, uuid.UUID, any)                     {}
func (NopNotifier) MessageRead(context.Context, uuid.UUID, *uuid.UUID)             {}
func (NopNotifier) NewNotification(context.Context, uuid.UUID, NotificationPayload) {}

type Dispatcher struct {
	emitter Emitter
	logger  *zap.Logger
}

// NewNotifier wraps emitter. A nil emitter yields a NopNotifier.
func NewNotifier(emitter Emitter, logger *zap.Logger) Notifier {
	if emitter == nil {
		return NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{emitter: emitter, logger: logger.With(zap.String("component", "fanout"))}
}

func (d *Dispatcher) NewMessage(ctx context.Context, conversationID uuid.UUID, message any) {
	d.emit(ctx, ConversationRoom(conversationID), EventNewMessage, NewMessagePayload{
		ConversationID: conversationID,
		Message:        message,
	})
}

func (d *Dispatcher) MessageRead(ctx context.Context, conversationID uuid.UUID, messageID *uuid.UUID) {
	d.emit(ctx, ConversationRoom(conversationID), EventMessageRead, MessageReadPayload{
		MessageID:      messageID,
		ConversationID: conversationID,
	})
}

func (d *Dispatcher) NewNotification(ctx context.Context, userID uuid.UUID, payload NotificationPayload) {
	d.emit(ctx, UserRoom(userID), EventNewNotification, payload)
}

func (d *Dispatcher) emit(ctx context.Context, room, event string, data any) {
	env, err := NewEnvelope(room, event, data)
	if err != nil {
		metrics.RecordEvent(event, "encode_error")
		d.logger.Warn("fanout encode failed", zap.String("event", event), zap.Error(err))
		return
	}
	if err := d.emitter.Emit(ctx, env); err != nil {
		metrics.RecordEvent(event, "dropped")
		d.logger.Warn("fanout emit failed", zap.String("event", event), zap.String("room", room), zap.Error(err))
		return
	}
	metrics.RecordEvent(event, "emitted")
}
