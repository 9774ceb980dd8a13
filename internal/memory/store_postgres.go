package memory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists turns in PostgreSQL for deployments where several
// instances share one history database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("memory: connect postgres: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS message_store (
			id BIGSERIAL PRIMARY KEY,
			turn_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			lang TEXT NOT NULL DEFAULT '',
			is_summary BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_message_store_session ON message_store (session_id, id);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("memory: init postgres schema: %w", err)
		}
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SaveTurn(ctx context.Context, sessionID string, turn Turn) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO message_store (turn_id, session_id, question, answer, lang, is_summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		turn.ID, sessionID, turn.Question, turn.Answer, turn.Lang, turn.IsSummary, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("memory: insert turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT turn_id, question, answer, lang, is_summary, created_at
		FROM (
			SELECT id, turn_id, question, answer, lang, is_summary, created_at
			FROM message_store WHERE session_id = $1
			ORDER BY id DESC LIMIT $2
		) recent ORDER BY id ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.Question, &t.Answer, &t.Lang, &t.IsSummary, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("memory: scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory: iterate turns: %w", err)
	}
	return turns, nil
}

func (s *PostgresStore) DeleteTurns(ctx context.Context, sessionID string, turnIDs []string) error {
	if len(turnIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM message_store WHERE session_id = $1 AND turn_id = ANY($2)`,
		sessionID, turnIDs,
	)
	if err != nil {
		return fmt.Errorf("memory: delete turns: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var _ TurnStore = (*PostgresStore)(nil)
