package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/newsdesk/internal/domain"
	_ "modernc.org/sqlite"
)

// DefaultDSN keeps the database in process memory.
const DefaultDSN = ":memory:"

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite-backed repository.
//
// The pool is pinned to a single connection that never expires: an
// in-memory database lives exactly as long as its connection.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	PRAGMA foreign_keys = ON;
	CREATE TABLE IF NOT EXISTS sessions (
		session_key TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_key TEXT NOT NULL REFERENCES sessions(session_key) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_key, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// History returns the turns of a session ordered by insertion.
func (s *SQLiteStore) History(ctx context.Context, sessionKey string) (domain.History, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM turns WHERE session_key = ? ORDER BY id ASC`, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close history rows", "error", closeErr)
		}
	}()

	history := domain.History{}
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		history = append(history, domain.Message{Role: domain.Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}

// AppendExchange inserts both turns in one transaction.
func (s *SQLiteStore) AppendExchange(ctx context.Context, sessionKey string, user, assistant domain.Message) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("failed to roll back exchange", "session_key", sessionKey, "error", rbErr)
			}
		}
	}()

	now := time.Now().Unix()
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_key, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET updated_at = excluded.updated_at`,
		sessionKey, now, now,
	); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	for _, msg := range []domain.Message{user, assistant} {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO turns (session_key, role, content, created_at) VALUES (?, ?, ?, ?)`,
			sessionKey, string(msg.Role), msg.Content, now,
		); err != nil {
			return fmt.Errorf("insert %s turn: %w", msg.Role, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit exchange: %w", err)
	}
	return nil
}

// ClearHistory removes a session's turns and its session row in one
// transaction.
func (s *SQLiteStore) ClearHistory(ctx context.Context, sessionKey string) (n int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("failed to roll back clear", "session_key", sessionKey, "error", rbErr)
			}
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_key = ?`, sessionKey)
	if err != nil {
		return 0, fmt.Errorf("delete turns: %w", err)
	}
	if n, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_key = ?`, sessionKey); err != nil {
		return 0, fmt.Errorf("delete session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear: %w", err)
	}
	return n, nil
}

// Touch marks an existing session as active so CleanupIdle keeps it.
// Unknown sessions are left absent.
func (s *SQLiteStore) Touch(ctx context.Context, sessionKey string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE session_key = ?`,
		time.Now().Unix(), sessionKey,
	); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// CleanupIdle removes sessions (and their turns) not updated within ttl.
func (s *SQLiteStore) CleanupIdle(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup idle sessions: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
