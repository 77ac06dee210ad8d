package memsession

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgreSQLSnapshotter keeps snapshots in a PostgreSQL table, one row per
// name.
type PostgreSQLSnapshotter struct {
	db       *sql.DB
	name     string
	saveStmt *sql.Stmt
	getStmt  *sql.Stmt
}

// PostgreSQLConfig holds configuration for the PostgreSQL snapshotter.
type PostgreSQLConfig struct {
	DSN             string
	Name            string // Row the snapshot is stored under. Defaults to DefaultSnapshotName.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// NewPostgreSQLSnapshotter creates a PostgreSQL snapshotter with default configuration.
func NewPostgreSQLSnapshotter(dsn string) (*PostgreSQLSnapshotter, error) {
	return NewPostgreSQLSnapshotterWithConfig(PostgreSQLConfig{
		DSN:             dsn,
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	})
}

// NewPostgreSQLSnapshotterWithConfig creates a PostgreSQL snapshotter with custom configuration.
func NewPostgreSQLSnapshotterWithConfig(cfg PostgreSQLConfig) (*PostgreSQLSnapshotter, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultSnapshotName
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgresql database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgresql database: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS session_snapshots (
		name TEXT PRIMARY KEY,
		data BYTEA NOT NULL,
		saved_at TIMESTAMP WITH TIME ZONE NOT NULL
	);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session_snapshots table: %w", err)
	}

	s := &PostgreSQLSnapshotter{db: db, name: cfg.Name}

	s.saveStmt, err = db.Prepare(`
		INSERT INTO session_snapshots (name, data, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT(name) DO UPDATE SET
			data = EXCLUDED.data,
			saved_at = EXCLUDED.saved_at
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare save statement: %w", err)
	}

	s.getStmt, err = db.Prepare("SELECT data FROM session_snapshots WHERE name = $1")
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare get statement: %w", err)
	}

	return s, nil
}

func (s *PostgreSQLSnapshotter) SaveSnapshot(ctx context.Context, data []byte) error {
	if _, err := s.saveStmt.ExecContext(ctx, s.name, data, time.Now()); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *PostgreSQLSnapshotter) RestoreSnapshot(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.getStmt.QueryRowContext(ctx, s.name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return data, nil
}

func (s *PostgreSQLSnapshotter) Close() error {
	if s.saveStmt != nil {
		s.saveStmt.Close()
	}
	if s.getStmt != nil {
		s.getStmt.Close()
	}
	return s.db.Close()
}
