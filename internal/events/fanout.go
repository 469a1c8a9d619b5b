package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace-chat/pkg/metrics"

	"github.com/cenkalti/backoff/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const DefaultRedisChannel = "channel:realtime"

// BrokerEmitter publishes envelopes to a broker channel. Every instance's
// bridge delivers them into its own hub, the publishing instance included.
type BrokerEmitter struct {
	publisher Publisher
	channel   string
}

func NewBrokerEmitter(publisher Publisher, channel string) *BrokerEmitter {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &BrokerEmitter{publisher: publisher, channel: channel}
}

func (e *BrokerEmitter) Emit(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return e.publisher.Publish(ctx, e.channel, data)
}

const (
	bridgeInitialRetry = 500 * time.Millisecond
	bridgeMaxRetry     = 30 * time.Second
	// a subscription that stayed up this long resets the backoff
	bridgeHealthyAfter = time.Minute
)

// Bridge feeds envelopes from a broker subscription into a local emitter.
type Bridge struct {
	subscriber Subscriber
	channel    string
	sink       Emitter
	logger     *zap.Logger

	initialRetry time.Duration
	maxRetry     time.Duration
}

func NewBridge(subscriber Subscriber, channel string, sink Emitter, logger *zap.Logger) *Bridge {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		subscriber:   subscriber,
		channel:      channel,
		sink:         sink,
		logger:       logger,
		initialRetry: bridgeInitialRetry,
		maxRetry:     bridgeMaxRetry,
	}
}

// Run subscribes until ctx is done. A refused or dropped subscription is
// retried with exponential backoff; events published meanwhile are lost.
func (b *Bridge) Run(ctx context.Context) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = b.initialRetry
	retry.MaxInterval = b.maxRetry
	retry.Reset()

	for {
		started := time.Now()
		err := b.subscriber.Subscribe(ctx, []string{b.channel}, func(_ string, payload []byte) {
			deliver(ctx, b.sink, payload, b.logger)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) >= bridgeHealthyAfter {
			retry.Reset()
		}

		wait := retry.NextBackOff()
		metrics.BridgeResubscribesTotal.WithLabelValues(b.channel).Inc()
		b.logger.Warn("fanout subscription lost, retrying",
			zap.String("channel", b.channel),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func deliver(ctx context.Context, sink Emitter, payload []byte, logger *zap.Logger) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logger.Warn("bridge dropped malformed envelope", zap.Error(err))
		return
	}
	if env.Room == "" || env.Event == "" {
		return
	}
	if err := sink.Emit(ctx, env); err != nil {
		logger.Warn("bridge delivery failed", zap.String("event", env.Event), zap.Error(err))
	}
}

// NATS

const DefaultNATSSubject = "marketplace.realtime"

func ConnectNATS(url string, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("marketplace-chat"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error("nats error", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NATSPublisher adapts a NATS connection to Publisher, using the channel as subject.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

func (p *NATSPublisher) Publish(_ context.Context, subject string, payload []byte) error {
	return p.conn.Publish(subject, payload)
}

// NATSSubscriber adapts a NATS connection to Subscriber.
type NATSSubscriber struct {
	conn *nats.Conn
}

func NewNATSSubscriber(conn *nats.Conn) *NATSSubscriber {
	return &NATSSubscriber{conn: conn}
}

func (s *NATSSubscriber) Subscribe(ctx context.Context, subjects []string, handler func(channel string, payload []byte)) error {
	subs := make([]*nats.Subscription, 0, len(subjects))
	defer func() {
		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}
	}()

	for _, subject := range subjects {
		sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
			handler(msg.Subject, msg.Data)
		})
		if err != nil {
			return fmt.Errorf("nats subscribe %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}

	<-ctx.Done()
	return ctx.Err()
}
