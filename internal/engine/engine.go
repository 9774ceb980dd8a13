// Package engine runs the per-turn pipeline: retrieve review passages,
// assemble a grounded prompt, generate an answer, update conversation
// memory. Each conversation processes one turn at a time; a failed turn
// leaves memory exactly as it was.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ricardo-yos/rag-petmarket-reviews/common/retry"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/config"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/index"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/llm"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/memory"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/observability"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/prompt"
)

// ErrGenerationFailed means the language model could not produce an answer
// within the configured retry budget. The conversation history is unchanged
// and the same question can be asked again.
var ErrGenerationFailed = errors.New("engine: generation failed")

// ErrEmptyQuestion rejects blank input before any stage runs.
var ErrEmptyQuestion = errors.New("engine: empty question")

// Retriever is the slice of the index the engine needs. *index.Retriever
// satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, threshold float64, n int) ([]index.Passage, error)
}

// Engine holds the process-wide collaborators shared by all conversations.
// Config is read once at startup and never mutated, so Engine needs no
// locking of its own.
type Engine struct {
	cfg       *config.Config
	prompts   *config.PromptConfig
	retriever Retriever
	client    llm.Client
	assembler *prompt.Assembler
	store     memory.TurnStore
	metrics   *observability.Metrics
	logger    *slog.Logger

	retrievalPolicy  retry.Policy
	generationPolicy retry.Policy
}

// New wires an Engine. metrics may be nil (tests); store may be nil for
// in-memory conversations only.
func New(cfg *config.Config, prompts *config.PromptConfig, retriever Retriever, client llm.Client, store memory.TurnStore, metrics *observability.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := cfg.LLM.MaxAttempts
	if attempts < 1 {
		attempts = retry.DefaultPolicy.Attempts
	}
	return &Engine{
		cfg:       cfg,
		prompts:   prompts,
		retriever: retriever,
		client:    client,
		assembler: prompt.NewAssembler(*prompts),
		store:     store,
		metrics:   metrics,
		logger:    logger,
		retrievalPolicy: retry.Policy{
			Attempts:  2,
			BaseDelay: 100 * time.Millisecond,
			CapDelay:  time.Second,
		},
		generationPolicy: retry.Policy{
			Attempts:  attempts,
			BaseDelay: retry.DefaultPolicy.BaseDelay,
			CapDelay:  retry.DefaultPolicy.CapDelay,
		},
	}
}

// NewConversation creates the single-writer state for one session. Prior
// turns are restored from the turn store when one is configured; a store
// read failure starts the conversation empty rather than failing it.
func (e *Engine) NewConversation(ctx context.Context, sessionID string) *Conversation {
	mgr := memory.NewManager(memory.ManagerConfig{
		WindowSize: e.cfg.Memory.TrimmingWindowSize,
		MaxTokens:  e.cfg.Memory.SummarizationMaxTokens,
	}, e.client, e.store, sessionID, e.logger)

	if e.store != nil {
		limit := e.cfg.Memory.TrimmingWindowSize + 1
		turns, err := e.store.LoadTurns(ctx, sessionID, limit)
		if err != nil {
			e.logger.Warn("engine: restore history failed, starting empty",
				"session_id", sessionID, "err", err)
		} else if len(turns) > 0 {
			mgr.Restore(turns)
		}
	}

	return &Conversation{eng: e, memory: mgr, sessionID: sessionID}
}

func (e *Engine) observeStage(stage string, start time.Time) {
	if e.metrics != nil {
		e.metrics.ObserveStage(stage, time.Since(start))
	}
}

func (e *Engine) countTurn(outcome string) {
	if e.metrics != nil {
		e.metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	}
}
