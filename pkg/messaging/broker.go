package messaging

import (
	"context"
	"errors"
)

// ErrClosed is returned when publishing on a closed broker.
var ErrClosed = errors.New("broker closed")

// Broker defines the interface for message brokers. Messages are JSON-encoded
// by Publish and delivered to exactly one subscriber of the topic.
type Broker interface {
	Publish(ctx context.Context, topic string, message interface{}) error
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
	Close() error
}
