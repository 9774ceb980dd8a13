// Package index wraps the semantic review index: a SQLite table of embedded
// review chunks queried by cosine similarity. Population happens offline;
// at serving time the index is read-only and safe for concurrent queries.
package index

import (
	"fmt"
	"strings"
)

// Passage is one retrieved review fragment. It lives for a single turn:
// the retriever builds a fresh result set per question and nothing persists
// Passages.
type Passage struct {
	// Text is the review fragment.
	Text string
	// Score is the cosine similarity to the query, in [0, 1] for the
	// normalized embeddings the providers return.
	Score float64
	// BusinessID and ReviewID identify the source for attribution.
	BusinessID string
	ReviewID   string
	// Business metadata shown alongside the review so the model does not
	// confuse which business a complaint belongs to.
	BusinessName string
	PlaceRating  float64
	Street       string
	Neighborhood string
	City         string
}

// Formatted renders the passage with its light metadata header:
//
//	Happy Paws (Rating: 4.5) — Rua das Flores, Centro, Curitiba
//	Review: The groomer was gentle and quick.
func (p Passage) Formatted() string {
	name := p.BusinessName
	if name == "" {
		name = "Unknown business"
	}
	loc := make([]string, 0, 3)
	for _, part := range []string{p.Street, p.Neighborhood, p.City} {
		if part != "" {
			loc = append(loc, part)
		}
	}
	location := "no address provided"
	if len(loc) > 0 {
		location = strings.Join(loc, ", ")
	}
	return fmt.Sprintf("%s (Rating: %.1f) — %s\nReview: %s", name, p.PlaceRating, location, strings.TrimSpace(p.Text))
}
