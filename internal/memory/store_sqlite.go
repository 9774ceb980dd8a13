package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore persists turns in a local message_store table, the default
// for single-machine deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the history database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memory: open history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("memory: set pragma: %w", err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS message_store (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			turn_id    TEXT NOT NULL,
			session_id TEXT NOT NULL,
			question   TEXT NOT NULL,
			answer     TEXT NOT NULL,
			lang       TEXT NOT NULL DEFAULT '',
			is_summary INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: create schema: %w", err)
	}
	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_message_store_session
		ON message_store (session_id, id)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveTurn(ctx context.Context, sessionID string, turn Turn) error {
	isSummary := 0
	if turn.IsSummary {
		isSummary = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_store (turn_id, session_id, question, answer, lang, is_summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, sessionID, turn.Question, turn.Answer, turn.Lang, isSummary,
		turn.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("memory: insert turn: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT turn_id, question, answer, lang, is_summary, created_at
		FROM (
			SELECT id, turn_id, question, answer, lang, is_summary, created_at
			FROM message_store WHERE session_id = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t         Turn
			isSummary int
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.Question, &t.Answer, &t.Lang, &isSummary, &createdAt); err != nil {
			return nil, fmt.Errorf("memory: scan turn: %w", err)
		}
		t.IsSummary = isSummary != 0
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			t.CreatedAt = ts
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory: iterate turns: %w", err)
	}
	return turns, nil
}

func (s *SQLiteStore) DeleteTurns(ctx context.Context, sessionID string, turnIDs []string) error {
	if len(turnIDs) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(turnIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(turnIDs)+1)
	args = append(args, sessionID)
	for _, id := range turnIDs {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM message_store WHERE session_id = ? AND turn_id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("memory: delete turns: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ TurnStore = (*SQLiteStore)(nil)
