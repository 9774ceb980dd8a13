// Package memory owns the bounded multi-turn conversation history. The
// manager keeps a sliding window of recent turns verbatim; older turns are
// trimmed, and once the serialized history grows past the token budget the
// evicted span is compressed into a single summary turn by the language
// model. All mutation goes through the manager; callers only ever see
// copies.
package memory

import "time"

// summaryPrefix heads the text of every summary turn so the model can tell
// compressed context from verbatim exchanges.
const summaryPrefix = "Summary of previous conversation:\n"

// Turn is one question/answer exchange, immutable once created. A summary
// turn is synthetic: it compresses one or more evicted turns, carries the
// compressed text in Answer, and has no Question.
type Turn struct {
	ID        string
	Question  string
	Answer    string
	Lang      string
	IsSummary bool
	CreatedAt time.Time
}

// Transcript renders the turn for inclusion in a prompt or a summarization
// request.
func (t Turn) Transcript() string {
	if t.IsSummary {
		return summaryPrefix + t.Answer
	}
	return "user: " + t.Question + "\nassistant: " + t.Answer
}

// estimateTokens returns a rough token count for a span of turns, using the
// ~4 characters per token English heuristic plus a small per-turn overhead
// for role framing. The budget is a soft limit; precision is not the point.
func estimateTokens(turns []Turn) int {
	const charsPerToken = 4
	const perTurnOverhead = 8

	total := 0
	for _, t := range turns {
		total += (len(t.Question)+len(t.Answer))/charsPerToken + perTurnOverhead
	}
	return total
}
