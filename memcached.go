package memsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// DefaultMemcachedMaxBytes is the default memcached item size limit.
const DefaultMemcachedMaxBytes = 1 << 20

// MemcachedSnapshotter keeps the snapshot under a single Memcached key.
type MemcachedSnapshotter struct {
	client   *memcache.Client
	key      string
	ttl      time.Duration
	maxBytes int
}

// MemcachedConfig holds configuration for the Memcached snapshotter.
type MemcachedConfig struct {
	Servers []string
	Key     string // Defaults to DefaultSnapshotName.
	// TTL bounds how long a snapshot is kept. Once every session in it has
	// expired it is useless, so the session lifetime is a sensible value.
	// Zero keeps it until evicted.
	TTL      time.Duration
	MaxBytes int           // Defaults to DefaultMemcachedMaxBytes.
	Timeout  time.Duration // Timeout for Memcached operations.
}

// NewMemcachedSnapshotter creates a MemcachedSnapshotter.
func NewMemcachedSnapshotter(servers ...string) *MemcachedSnapshotter {
	return NewMemcachedSnapshotterWithConfig(MemcachedConfig{
		Servers: servers,
		// Don't hang forever if Memcached is down.
		Timeout: 1 * time.Second,
	})
}

// NewMemcachedSnapshotterWithConfig creates a MemcachedSnapshotter with custom configuration.
func NewMemcachedSnapshotterWithConfig(cfg MemcachedConfig) *MemcachedSnapshotter {
	if cfg.Key == "" {
		cfg.Key = DefaultSnapshotName
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMemcachedMaxBytes
	}
	client := memcache.New(cfg.Servers...)
	client.Timeout = cfg.Timeout

	return &MemcachedSnapshotter{
		client:   client,
		key:      cfg.Key,
		ttl:      cfg.TTL,
		maxBytes: cfg.MaxBytes,
	}
}

// SaveSnapshot stores data in Memcached.
func (s *MemcachedSnapshotter) SaveSnapshot(ctx context.Context, data []byte) error {
	if len(data) > s.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds memcached limit of %d", ErrSnapshotTooLarge, len(data), s.maxBytes)
	}
	err := s.client.Set(&memcache.Item{
		Key:        s.key,
		Value:      data,
		Expiration: calculateMemcachedExpiration(time.Now(), s.ttl),
	})
	if err != nil {
		return fmt.Errorf("failed to save to memcached: %w", err)
	}
	return nil
}

// RestoreSnapshot loads the snapshot from Memcached.
func (s *MemcachedSnapshotter) RestoreSnapshot(ctx context.Context) ([]byte, error) {
	item, err := s.client.Get(s.key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from memcached: %w", err)
	}
	return item.Value, nil
}

// Close is a no-op for the Memcached client.
func (s *MemcachedSnapshotter) Close() error {
	return nil
}

// calculateMemcachedExpiration calculates the expiration value for Memcached.
// Memcached treats values > 30 days (60*60*24*30 seconds) as absolute Unix timestamps.
// Values <= 30 days are treated as a delta from the current time.
func calculateMemcachedExpiration(now time.Time, ttl time.Duration) int32 {
	const maxDelta = 30 * 24 * 60 * 60 // 30 days in seconds

	if ttl <= 0 {
		return 0
	}
	// A large delta would be read as a timestamp in 1970.
	if ttl > maxDelta*time.Second {
		return int32(now.Add(ttl).Unix())
	}
	return int32(ttl / time.Second)
}
