package memsession

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrNoSnapshot is returned by a Restorer that holds no snapshot yet.
	ErrNoSnapshot = errors.New("no session snapshot stored")

	// ErrSnapshotTooLarge is returned when a snapshot exceeds the size a
	// backend accepts.
	ErrSnapshotTooLarge = errors.New("session snapshot too large")
)

// Saver durably stores snapshot documents.
type Saver interface {
	// SaveSnapshot replaces the stored snapshot with data.
	SaveSnapshot(ctx context.Context, data []byte) error
}

// Restorer produces the most recently saved snapshot document.
type Restorer interface {
	// RestoreSnapshot returns ErrNoSnapshot when nothing was saved yet.
	RestoreSnapshot(ctx context.Context) ([]byte, error)
}

// Snapshotter is a storage medium for snapshots of the session table.
type Snapshotter interface {
	Saver
	Restorer
	// Close releases the underlying connection.
	Close() error
}

// DefaultSnapshotName is the row, key or object name snapshots are saved
// under when none is configured.
const DefaultSnapshotName = "memsession"

// OpenSnapshotter opens the snapshot backend named by backend:
//
//	file       dsn is a file path
//	sqlite     dsn is a modernc.org/sqlite DSN
//	postgres   dsn is a lib/pq connection string
//	memcached  dsn is a comma separated server list
//	redis      dsn is a redis:// URL
//	s3         dsn is s3://bucket/key
func OpenSnapshotter(ctx context.Context, backend, dsn string) (Snapshotter, error) {
	switch strings.ToLower(backend) {
	case "file":
		return NewFileSnapshotter(dsn), nil
	case "sqlite":
		return NewSQLiteSnapshotter(dsn)
	case "postgres", "postgresql":
		return NewPostgreSQLSnapshotter(dsn)
	case "memcached":
		return NewMemcachedSnapshotter(strings.Split(dsn, ",")...), nil
	case "redis":
		return NewRedisSnapshotterFromURL(ctx, dsn)
	case "s3":
		u, err := url.Parse(dsn)
		if err != nil || u.Scheme != "s3" || u.Host == "" {
			return nil, fmt.Errorf("invalid s3 snapshot location %q", dsn)
		}
		return NewS3Snapshotter(ctx, S3Config{
			Bucket: u.Host,
			Key:    strings.TrimPrefix(u.Path, "/"),
		})
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", backend)
	}
}
