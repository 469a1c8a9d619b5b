package events

import "context"

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscriber blocks until ctx is done or the subscription fails.
type Subscriber interface {
	Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error
}
