package memsession

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSnapshotter keeps snapshots in a SQLite table, one row per name.
type SQLiteSnapshotter struct {
	db       *sql.DB
	mu       sync.Mutex // Serializes writes to avoid SQLITE_BUSY
	name     string
	saveStmt *sql.Stmt
	getStmt  *sql.Stmt
}

// SQLiteConfig holds configuration for the SQLite snapshotter.
type SQLiteConfig struct {
	DSN             string
	Name            string // Row the snapshot is stored under. Defaults to DefaultSnapshotName.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func NewSQLiteSnapshotter(dsn string) (*SQLiteSnapshotter, error) {
	return NewSQLiteSnapshotterWithConfig(SQLiteConfig{
		DSN:          dsn,
		MaxOpenConns: 4,
		MaxIdleConns: 4,
	})
}

func NewSQLiteSnapshotterWithConfig(cfg SQLiteConfig) (*SQLiteSnapshotter, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultSnapshotName
	}

	// PRAGMAs go into the DSN so that they apply to every pooled connection.
	if !strings.Contains(cfg.DSN, "busy_timeout") {
		separator := "?"
		if strings.Contains(cfg.DSN, "?") {
			separator = "&"
		}
		cfg.DSN = fmt.Sprintf("%s%s_pragma=busy_timeout=5000", cfg.DSN, separator)
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
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

	query := `
	CREATE TABLE IF NOT EXISTS session_snapshots (
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		saved_at DATETIME NOT NULL
	);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session_snapshots table: %w", err)
	}

	s := &SQLiteSnapshotter{db: db, name: cfg.Name}

	s.saveStmt, err = db.Prepare(`
		INSERT INTO session_snapshots (name, data, saved_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			saved_at = excluded.saved_at
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare save statement: %w", err)
	}

	s.getStmt, err = db.Prepare("SELECT data FROM session_snapshots WHERE name = ?")
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare get statement: %w", err)
	}

	return s, nil
}

func (s *SQLiteSnapshotter) SaveSnapshot(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.saveStmt.ExecContext(ctx, s.name, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteSnapshotter) RestoreSnapshot(ctx context.Context) ([]byte, error) {
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

func (s *SQLiteSnapshotter) Close() error {
	if s.saveStmt != nil {
		s.saveStmt.Close()
	}
	if s.getStmt != nil {
		s.getStmt.Close()
	}
	return s.db.Close()
}
