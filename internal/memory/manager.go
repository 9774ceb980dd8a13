package memory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ricardo-yos/rag-petmarket-reviews/internal/llm"
)

// summarizeInstruction is the system prompt for history compression.
const summarizeInstruction = "Summarize the following chat history to preserve useful context " +
	"for the next user query. Be concise, accurate, and preserve the intent of both questions and answers."

// CompactionMode reports what Compact did. Exposed for metrics.
type CompactionMode string

const (
	// CompactionNone means history was already within bounds.
	CompactionNone CompactionMode = "none"
	// CompactionTrim means oldest turns beyond the window were dropped.
	CompactionTrim CompactionMode = "trim"
	// CompactionSummarize means the evicted span became one summary turn.
	CompactionSummarize CompactionMode = "summarize"
	// CompactionTrimFallback means summarization failed and the evicted
	// span was dropped instead. The conversation continues either way.
	CompactionTrimFallback CompactionMode = "trim_fallback"
)

// ManagerConfig bounds a conversation's history.
type ManagerConfig struct {
	// WindowSize is the number of recent turns kept verbatim.
	WindowSize int
	// MaxTokens is the estimated token cost at which eviction switches from
	// plain trimming to summarization.
	MaxTokens int
}

// Manager owns the history of a single conversation. It is not safe for
// concurrent use: the engine processes turns strictly sequentially per
// conversation and holds the only reference.
type Manager struct {
	cfg        ManagerConfig
	summarizer llm.Client
	store      TurnStore
	sessionID  string
	logger     *slog.Logger
	history    []Turn
}

// NewManager creates a Manager for one conversation session. summarizer may
// be nil, in which case compaction always falls back to trimming. store may
// be nil for purely in-memory conversations.
func NewManager(cfg ManagerConfig, summarizer llm.Client, store TurnStore, sessionID string, logger *slog.Logger) *Manager {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 6
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:        cfg,
		summarizer: summarizer,
		store:      store,
		sessionID:  sessionID,
		logger:     logger,
	}
}

// Restore replaces the in-memory history with turns loaded from the turn
// store, without writing them back. Call before the first Append. A summary
// turn is stored after the window it was compacted alongside, so the most
// recent one is moved back to the head; any older summaries were already
// folded into it and are dropped.
func (m *Manager) Restore(turns []Turn) {
	var summary *Turn
	rest := make([]Turn, 0, len(turns))
	for i := range turns {
		if turns[i].IsSummary {
			summary = &turns[i]
			continue
		}
		rest = append(rest, turns[i])
	}

	m.history = make([]Turn, 0, len(rest)+1)
	if summary != nil {
		m.history = append(m.history, *summary)
	}
	m.history = append(m.history, rest...)
}

// Len reports the current number of turns, including a summary turn if any.
func (m *Manager) Len() int {
	return len(m.history)
}

// Snapshot returns a copy of the history for prompting. Mutating the
// returned slice does not affect the manager.
func (m *Manager) Snapshot() []Turn {
	out := make([]Turn, len(m.history))
	copy(out, m.history)
	return out
}

// Append records a completed turn. Persistence to the turn store is
// best-effort: a storage failure is logged, never surfaced, because the
// in-memory history is the source of truth for the running conversation.
func (m *Manager) Append(ctx context.Context, turn Turn) {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	m.history = append(m.history, turn)

	if m.store != nil {
		if err := m.store.SaveTurn(ctx, m.sessionID, turn); err != nil {
			m.logger.Warn("memory: persist turn failed",
				"session_id", m.sessionID, "turn_id", turn.ID, "err", err)
		}
	}
}

// Compact brings history back within the configured bounds and reports what
// it did. Below the window it is a no-op; beyond the window it trims, or,
// once the serialized cost reaches the token budget, collapses the evicted
// span into a single summary turn. Summarization failure degrades to
// trimming so a model outage never blocks the conversation. Repeated calls
// at steady state leave history unchanged.
func (m *Manager) Compact(ctx context.Context) CompactionMode {
	// A leading summary turn does not count against the window, otherwise
	// a freshly compacted history would be re-compacted on the next call.
	limit := m.cfg.WindowSize
	if len(m.history) > 0 && m.history[0].IsSummary {
		limit++
	}
	if len(m.history) <= limit {
		return CompactionNone
	}

	evicted := m.history[:len(m.history)-m.cfg.WindowSize]
	retained := m.history[len(m.history)-m.cfg.WindowSize:]

	if estimateTokens(m.history) < m.cfg.MaxTokens {
		m.replaceHistory(retained, nil)
		m.persistEviction(ctx, evicted, nil)
		return CompactionTrim
	}

	if m.summarizer == nil {
		m.replaceHistory(retained, nil)
		m.persistEviction(ctx, evicted, nil)
		return CompactionTrimFallback
	}

	summary, err := m.summarize(ctx, evicted)
	if err != nil {
		m.logger.Warn("memory: summarization failed, falling back to trimming",
			"session_id", m.sessionID, "evicted", len(evicted), "err", err)
		m.replaceHistory(retained, nil)
		m.persistEviction(ctx, evicted, nil)
		return CompactionTrimFallback
	}

	summaryTurn := Turn{
		ID:        uuid.NewString(),
		Answer:    summary,
		IsSummary: true,
		CreatedAt: time.Now().UTC(),
	}
	m.replaceHistory(retained, &summaryTurn)
	m.persistEviction(ctx, evicted, &summaryTurn)

	m.logger.Debug("memory: compacted history",
		"session_id", m.sessionID, "evicted", len(evicted), "summary_len", len(summary))
	return CompactionSummarize
}

// persistEviction mirrors a compaction into the turn store: the summary
// turn (if any) is saved and the rows it replaced are deleted, so a
// restarted session restores the compacted view instead of the raw evicted
// turns. Best-effort, like Append: store failures are logged, never
// surfaced.
func (m *Manager) persistEviction(ctx context.Context, evicted []Turn, summary *Turn) {
	if m.store == nil {
		return
	}
	if summary != nil {
		if err := m.store.SaveTurn(ctx, m.sessionID, *summary); err != nil {
			m.logger.Warn("memory: persist summary failed",
				"session_id", m.sessionID, "turn_id", summary.ID, "err", err)
		}
	}
	ids := make([]string, 0, len(evicted))
	for _, t := range evicted {
		ids = append(ids, t.ID)
	}
	if err := m.store.DeleteTurns(ctx, m.sessionID, ids); err != nil {
		m.logger.Warn("memory: delete evicted turns failed",
			"session_id", m.sessionID, "evicted", len(ids), "err", err)
	}
}

// replaceHistory rebuilds the owned slice from the retained window and an
// optional leading summary turn. The old backing array is abandoned; the
// evicted turns are gone for good.
func (m *Manager) replaceHistory(retained []Turn, summary *Turn) {
	fresh := make([]Turn, 0, len(retained)+1)
	if summary != nil {
		fresh = append(fresh, *summary)
	}
	fresh = append(fresh, retained...)
	m.history = fresh
}

// summarize asks the model to compress the evicted span into one block of
// text.
func (m *Manager) summarize(ctx context.Context, evicted []Turn) (string, error) {
	transcript := make([]string, 0, len(evicted))
	for _, t := range evicted {
		transcript = append(transcript, t.Transcript())
	}

	completion, err := m.summarizer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: summarizeInstruction},
			{Role: "user", Content: strings.Join(transcript, "\n")},
		},
		MaxTokens: 256,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(completion.Text), nil
}
