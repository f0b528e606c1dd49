package message_broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
	"github.com/satriahrh/cocoa-fruit/jester/utils/log"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("message broker is closed")

const bufferSize = 100

// ChannelMessageBroker implements MessageBroker using Go channels.
// Each topic/routingKey pair has at most one subscriber channel.
type ChannelMessageBroker struct {
	topics map[string]chan domain.Message
	mu     sync.RWMutex
	closed bool
}

func NewChannelMessageBroker() *ChannelMessageBroker {
	return &ChannelMessageBroker{
		topics: make(map[string]chan domain.Message),
	}
}

func makeKey(topic, routingKey string) string {
	return topic + ":" + routingKey
}

// Publish hands the message to the subscriber of topic/routingKey. With no
// subscriber the message is dropped.
func (b *ChannelMessageBroker) Publish(ctx context.Context, topic string, routingKey string, message []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	channel, exists := b.topics[makeKey(topic, routingKey)]
	if !exists {
		return nil
	}

	msg := domain.Message{
		Topic:      topic,
		RoutingKey: routingKey,
		Payload:    message,
		Timestamp:  time.Now(),
	}

	select {
	case channel <- msg:
		log.WithCtx(ctx).Debug("📤 Message published",
			zap.String("topic", topic),
			zap.String("routing_key", routingKey),
			zap.Int("payload_size", len(message)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("topic channel is full: %s:%s", topic, routingKey)
	}
}

// Subscribe returns the channel for topic/routingKey, creating it on first use.
func (b *ChannelMessageBroker) Subscribe(ctx context.Context, topic string, routingKey string) (<-chan domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	key := makeKey(topic, routingKey)
	channel, exists := b.topics[key]
	if !exists {
		channel = make(chan domain.Message, bufferSize)
		b.topics[key] = channel
	}

	log.WithCtx(ctx).Info("📡 Subscribed", zap.String("topic", topic), zap.String("routing_key", routingKey))
	return channel, nil
}

func (b *ChannelMessageBroker) Unsubscribe(topic string, routingKey string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := makeKey(topic, routingKey)
	if channel, exists := b.topics[key]; exists {
		close(channel)
		delete(b.topics, key)
	}
}

// Close closes every subscriber channel. Further calls fail with ErrClosed.
func (b *ChannelMessageBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for key, channel := range b.topics {
		close(channel)
		log.With(zap.String("key", key)).Debug("🔒 Closed topic channel")
	}
	b.topics = make(map[string]chan domain.Message)

	log.With().Info("🔒 Message broker closed")
	return nil
}

// TopicCount returns the number of live subscriptions.
func (b *ChannelMessageBroker) TopicCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics)
}
