package notify

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// RedisBroker publishes messages on a Redis channel and delivers the messages
// it receives to a local Hub, so every process sees every notification.
type RedisBroker struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
	logger  *zap.Logger
}

// BrokerOption configures a RedisBroker.
type BrokerOption func(*RedisBroker)

// WithChannel overrides the Redis channel name. Defaults to Group.
func WithChannel(channel string) BrokerOption {
	return func(b *RedisBroker) {
		if channel != "" {
			b.channel = channel
		}
	}
}

// WithBrokerLogger sets the logger. Defaults to a no-op logger.
func WithBrokerLogger(logger *zap.Logger) BrokerOption {
	return func(b *RedisBroker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewRedisBroker creates a broker delivering to hub.
func NewRedisBroker(client redis.UniversalClient, hub *Hub, opts ...BrokerOption) *RedisBroker {
	b := &RedisBroker{
		client:  client,
		channel: Group,
		hub:     hub,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.Named("broker")
	return b
}

// Channel returns the Redis channel in use.
func (b *RedisBroker) Channel() string {
	return b.channel
}

// Publish implements Publisher.
func (b *RedisBroker) Publish(ctx context.Context, msg Message) error {
	payload, err := msgpack.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "broker: encode message")
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return errors.Wrapf(err, "broker: publish to %s", b.channel)
	}
	return nil
}

// Run subscribes to the channel and delivers messages to the hub until ctx is
// done. ready, when not nil, is closed once the subscription is confirmed.
func (b *RedisBroker) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return errors.Wrapf(err, "broker: subscribe to %s", b.channel)
	}
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := msgpack.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				b.logger.Warn("discarding undecodable message", zap.Error(err))
				continue
			}
			b.hub.Deliver(msg)
		}
	}
}
