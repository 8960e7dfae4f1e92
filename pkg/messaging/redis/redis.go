package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/certify-api/pkg/circuitbreaker"
	"github.com/jwalitptl/certify-api/pkg/messaging"
)

// RedisBroker queues messages on Redis lists (RPUSH / BLPOP) so jobs published
// while no worker is listening are not lost.
type RedisBroker struct {
	client    *redis.Client
	cb        *circuitbreaker.CircuitBreaker
	logger    *zerolog.Logger
	keyPrefix string
	pollWait  time.Duration
}

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
	KeyPrefix    string
	PollWait     time.Duration
}

func NewRedisBroker(config Config, logger *zerolog.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pooling
	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, config, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, config Config, logger *zerolog.Logger) *RedisBroker {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "certify:queue:"
	}
	if config.PollWait <= 0 {
		config.PollWait = 5 * time.Second
	}

	return &RedisBroker{
		client: client,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "redis-broker",
			MaxFailures: 10,
			Timeout:     5 * time.Second,
		}),
		logger:    logger,
		keyPrefix: config.KeyPrefix,
		pollWait:  config.PollWait,
	}
}

func (b *RedisBroker) key(topic string) string {
	return b.keyPrefix + topic
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return b.cb.Execute(func() error {
		return b.client.RPush(ctx, b.key(topic), payload).Err()
	})
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	msgChan := make(chan []byte, 100)
	key := b.key(topic)

	go func() {
		defer close(msgChan)

		for {
			if ctx.Err() != nil {
				return
			}

			res, err := b.client.BLPop(ctx, b.pollWait, key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue
				}
				b.logger.Error().Err(err).Str("topic", topic).Msg("Failed to pop message")
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
				}
				continue
			}

			// BLPOP returns [key, value]
			if len(res) != 2 {
				continue
			}

			select {
			case msgChan <- []byte(res[1]):
			case <-ctx.Done():
				return
			}
		}
	}()

	return msgChan, nil
}

// Ping reports whether Redis is reachable; used by readiness checks.
func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

var _ messaging.Broker = (*RedisBroker)(nil)
