package memsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshotter keeps the snapshot under a single Redis key.
type RedisSnapshotter struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// RedisConfig holds configuration for the Redis snapshotter.
type RedisConfig struct {
	Key string // Defaults to "session:" + DefaultSnapshotName.
	// TTL bounds how long a snapshot is kept. Zero keeps it forever.
	TTL time.Duration
}

// NewRedisSnapshotter wraps an existing client.
func NewRedisSnapshotter(client *redis.Client, cfg RedisConfig) *RedisSnapshotter {
	if cfg.Key == "" {
		cfg.Key = "session:" + DefaultSnapshotName
	}
	return &RedisSnapshotter{
		client: client,
		key:    cfg.Key,
		ttl:    cfg.TTL,
	}
}

// NewRedisSnapshotterFromURL connects to the server at a redis:// URL and
// checks it is reachable.
func NewRedisSnapshotterFromURL(ctx context.Context, rawURL string) (*RedisSnapshotter, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisSnapshotter(client, RedisConfig{}), nil
}

func (s *RedisSnapshotter) SaveSnapshot(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (s *RedisSnapshotter) RestoreSnapshot(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return data, nil
}

func (s *RedisSnapshotter) Close() error {
	return s.client.Close()
}
