package memsession

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func getTestRedisURL() string {
	if u := os.Getenv("REDIS_TEST_URL"); u != "" {
		return u
	}
	return "redis://localhost:6379/0"
}

func TestRedisSnapshotter(t *testing.T) {
	ctx := context.Background()
	opts, err := redis.ParseURL(getTestRedisURL())
	if err != nil {
		t.Fatalf("invalid redis url: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Skipping Redis test: %v (is redis running?)", err)
	}

	key := fmt.Sprintf("memsession-test:%d", time.Now().UnixNano())
	snap := NewRedisSnapshotter(client, RedisConfig{Key: key, TTL: time.Minute})
	defer snap.Close()
	defer client.Del(ctx, key)

	testSnapshotter(t, snap)

	ttl, err := client.TTL(ctx, key).Result()
	if err != nil {
		t.Fatalf("failed to read ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("expected ttl within a minute, got %v", ttl)
	}
}

func TestNewRedisSnapshotterFromURL_BadURL(t *testing.T) {
	if _, err := NewRedisSnapshotterFromURL(context.Background(), "not a url"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}
