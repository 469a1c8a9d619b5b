package events

import (
	"context"
	"encoding/json"
	"time"
)

// Envelope is a room-scoped event as it travels between the write path,
// a broker and the socket hub.
type Envelope struct {
	Room       string          `json:"room"`
	Event      string          `json:"event"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewEnvelope(room, event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Room:       room,
		Event:      event,
		Data:       raw,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// Emitter delivers an envelope to whatever sits behind it: the local hub or a
// broker that every instance's hub listens on.
type Emitter interface {
	Emit(ctx context.Context, env Envelope) error
}
