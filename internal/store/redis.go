package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BradenHooton/admingate/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// RedisStore keeps keys in Redis and broadcasts changes on a pub/sub channel
// so gatekeepers on every replica observe session deletions.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	channel string
	hub     *hub
	logger  *slog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// RedisOptions configures key namespacing for RedisStore
type RedisOptions struct {
	KeyPrefix string
	Channel   string
}

// NewRedisStore creates a store over client. Call Start to begin receiving notifications.
func NewRedisStore(client *redis.Client, opts RedisOptions, logger *slog.Logger) *RedisStore {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "admingate:"
	}
	if opts.Channel == "" {
		opts.Channel = "admingate:changes"
	}
	return &RedisStore{
		client:  client,
		prefix:  opts.KeyPrefix,
		channel: opts.Channel,
		hub:     newHub(),
		logger:  logger,
	}
}

// changeEnvelope is the msgpack payload published for every mutation
type changeEnvelope struct {
	Key     string `msgpack:"k"`
	Deleted bool   `msgpack:"d"`
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key: %w", err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	payload, err := msgpack.Marshal(changeEnvelope{Key: key})
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.prefix+key, value, 0)
		pipe.Publish(ctx, s.channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	removed, err := s.client.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	if removed == 0 {
		return nil
	}

	payload, err := msgpack.Marshal(changeEnvelope{Key: key, Deleted: true})
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish deletion: %w", err)
	}
	return nil
}

func (s *RedisStore) Subscribe(key string, fn func(Change)) (func(), error) {
	return s.hub.subscribe(key, fn), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Start subscribes to the change channel and waits for Redis to confirm the subscription
func (s *RedisStore) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubsub != nil {
		return nil
	}

	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	s.pubsub = pubsub
	s.done = make(chan struct{})
	go s.relay(pubsub.Channel())

	s.logger.Info("session store subscribed", slog.String("channel", s.channel))
	return nil
}

func (s *RedisStore) relay(messages <-chan *redis.Message) {
	defer close(s.done)

	for msg := range messages {
		var env changeEnvelope
		if err := msgpack.Unmarshal([]byte(msg.Payload), &env); err != nil {
			s.logger.Warn("ignoring malformed session store message", slog.Any("error", err))
			continue
		}
		s.hub.publish(Change{Key: env.Key, Deleted: env.Deleted})
	}
}

// Close unsubscribes and stops all subscriptions. The client is owned by the caller.
func (s *RedisStore) Close() {
	s.mu.Lock()
	pubsub, done := s.pubsub, s.done
	s.pubsub = nil
	s.mu.Unlock()

	if pubsub != nil {
		_ = pubsub.Close()
		<-done
	}
	s.hub.close()
}

var (
	_ SessionStore  = (*RedisStore)(nil)
	_ HealthChecker = (*RedisStore)(nil)
)
