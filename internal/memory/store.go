package memory

import (
	"context"
	"strings"
)

// TurnStore persists completed turns so a session survives process
// restarts. Implementations must be safe for concurrent use: independent
// conversations share one store.
type TurnStore interface {
	// SaveTurn appends one turn for the given session.
	SaveTurn(ctx context.Context, sessionID string, turn Turn) error
	// LoadTurns returns the most recent turns for a session in
	// chronological order, capped at limit.
	LoadTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	// DeleteTurns removes the given turns for a session. Used by
	// compaction to drop rows that were folded into a summary.
	DeleteTurns(ctx context.Context, sessionID string, turnIDs []string) error
	Close() error
}

// NewTurnStore selects an implementation: Postgres when databaseURL is set,
// SQLite when sqlitePath is set, otherwise a no-op store for purely
// in-memory conversations.
func NewTurnStore(ctx context.Context, databaseURL, sqlitePath string) (TurnStore, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(sqlitePath) != "" {
		return NewSQLiteStore(sqlitePath)
	}
	return NoopStore{}, nil
}

// NoopStore discards turns. LoadTurns always returns nil.
type NoopStore struct{}

func (NoopStore) SaveTurn(context.Context, string, Turn) error { return nil }

func (NoopStore) LoadTurns(context.Context, string, int) ([]Turn, error) { return nil, nil }

func (NoopStore) DeleteTurns(context.Context, string, []string) error { return nil }

func (NoopStore) Close() error { return nil }
