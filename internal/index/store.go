package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store wraps the SQLite database holding embedded review chunks.
type Store struct {
	db *sql.DB
}

// ReviewChunk is one indexed fragment: the row format of the review_chunks
// table. Embeddings are JSON-encoded float32 arrays, produced offline by the
// same embedding model configured for queries.
type ReviewChunk struct {
	BusinessID   string
	ReviewID     string
	BusinessName string
	PlaceRating  float64
	Street       string
	Neighborhood string
	City         string
	Text         string
	Embedding    []float32
}

// Open opens (or creates) the index database at path and ensures the schema
// exists. SQLite is single-writer; a single shared connection serializes
// writers while reads remain concurrent under WAL.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("index: open database: %w", err)
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
			return nil, fmt.Errorf("index: set pragma: %w", err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS review_chunks (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id   TEXT NOT NULL,
			review_id     TEXT NOT NULL,
			business_name TEXT NOT NULL DEFAULT '',
			place_rating  REAL NOT NULL DEFAULT 0,
			street        TEXT NOT NULL DEFAULT '',
			neighborhood  TEXT NOT NULL DEFAULT '',
			city          TEXT NOT NULL DEFAULT '',
			text          TEXT NOT NULL,
			embedding     BLOB NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts one chunk. Used by the offline index builder and by tests;
// the serving path never writes.
func (s *Store) Add(ctx context.Context, chunk ReviewChunk) error {
	embJSON, err := json.Marshal(chunk.Embedding)
	if err != nil {
		return fmt.Errorf("index: marshal embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_chunks
			(business_id, review_id, business_name, place_rating, street, neighborhood, city, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chunk.BusinessID, chunk.ReviewID, chunk.BusinessName, chunk.PlaceRating,
		chunk.Street, chunk.Neighborhood, chunk.City, chunk.Text, embJSON,
	)
	if err != nil {
		return fmt.Errorf("index: insert chunk: %w", err)
	}
	return nil
}

// Count reports how many chunks are indexed.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM review_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count chunks: %w", err)
	}
	return n, nil
}

// all loads every chunk in insertion (rowid) order. Brute-force similarity
// over the full table is fine at the expected scale of a few thousand
// reviews; modernc.org/sqlite cannot host custom similarity functions, so
// scoring happens Go-side.
func (s *Store) all(ctx context.Context) ([]ReviewChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT business_id, review_id, business_name, place_rating, street, neighborhood, city, text, embedding
		FROM review_chunks
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("index: query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []ReviewChunk
	for rows.Next() {
		var (
			c       ReviewChunk
			embJSON []byte
		)
		if err := rows.Scan(&c.BusinessID, &c.ReviewID, &c.BusinessName, &c.PlaceRating,
			&c.Street, &c.Neighborhood, &c.City, &c.Text, &embJSON); err != nil {
			return nil, fmt.Errorf("index: scan chunk: %w", err)
		}
		if err := json.Unmarshal(embJSON, &c.Embedding); err != nil {
			return nil, fmt.Errorf("index: unmarshal embedding: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterate chunks: %w", err)
	}
	return chunks, nil
}
