package domain

import (
	"context"
	"time"
)

// MessageBroker fans out messages by topic and routing key.
type MessageBroker interface {
	// Publish delivers a message to the subscriber of topic/routingKey, if any.
	Publish(ctx context.Context, topic string, routingKey string, message []byte) error

	// Subscribe returns the channel for topic/routingKey.
	Subscribe(ctx context.Context, topic string, routingKey string) (<-chan Message, error)

	// Unsubscribe drops the channel for topic/routingKey and closes it.
	Unsubscribe(topic string, routingKey string)

	Close() error
}

// Message represents a message received from the broker
type Message struct {
	Topic      string
	RoutingKey string
	Payload    []byte
	Timestamp  time.Time
}

// StageTopic carries StageEvent payloads keyed by session ID.
const StageTopic = "pipeline.stages"
