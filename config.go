package memsession

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvConfig is the part of the configuration that can come from the
// environment.
type EnvConfig struct {
	Lifetime           time.Duration `env:"SESSION_LIFETIME" envDefault:"36h"`
	CookieName         string        `env:"SESSION_COOKIE_NAME" envDefault:"shelf_session_id"`
	CleanupInterval    time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"10m"`
	CheckpointInterval time.Duration `env:"SESSION_CHECKPOINT_INTERVAL" envDefault:"5m"`
	// SecureCookies forces the Secure attribute regardless of the request
	// scheme. Useful behind a TLS-terminating proxy.
	SecureCookies bool `env:"SESSION_SECURE_COOKIES" envDefault:"false"`

	// SnapshotBackend is one of the names accepted by OpenSnapshotter.
	// Empty disables persistence.
	SnapshotBackend string `env:"SESSION_SNAPSHOT_BACKEND"`
	SnapshotDSN     string `env:"SESSION_SNAPSHOT_DSN"`
}

// LoadEnvConfig parses EnvConfig from the process environment.
func LoadEnvConfig() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("failed to parse session config: %w", err)
	}
	return cfg, nil
}

// Config converts the environment settings into a manager Config, opening
// the snapshot backend when one is named.
func (e EnvConfig) Config(ctx context.Context) (Config, error) {
	cfg := Config{
		TTL:                e.Lifetime,
		CookieName:         e.CookieName,
		CleanupInterval:    e.CleanupInterval,
		CheckpointInterval: e.CheckpointInterval,
	}
	if e.SecureCookies {
		secure := true
		cfg.Secure = &secure
	}
	if e.SnapshotBackend != "" {
		snap, err := OpenSnapshotter(ctx, e.SnapshotBackend, e.SnapshotDSN)
		if err != nil {
			return Config{}, err
		}
		cfg.Snapshotter = snap
	}
	return cfg, nil
}
