package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ricardo-yos/rag-petmarket-reviews/common/retry"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/index"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/llm"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/memory"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/prompt"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/strategy"
)

// Conversation is the per-session pipeline state. The mutex serializes
// turns: a second Ask against the same session blocks until the first
// completes, so the memory manager never sees overlapping mutations.
type Conversation struct {
	eng       *Engine
	mu        sync.Mutex
	memory    *memory.Manager
	sessionID string
}

// SessionID identifies this conversation in the turn store.
func (c *Conversation) SessionID() string {
	return c.sessionID
}

// HistoryLen reports the current number of turns held in memory.
func (c *Conversation) HistoryLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memory.Len()
}

// Ask runs one full turn and returns the answer. When no retrieved review
// clears the similarity threshold the configured decline answer is returned
// verbatim without calling the model. Retrieval and generation failures are
// surfaced after bounded retries and leave history untouched, so the caller
// can simply ask again.
func (c *Conversation) Ask(ctx context.Context, question string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	e := c.eng

	start := time.Now()
	var passages []index.Passage
	err := retry.Do(ctx, e.retrievalPolicy, func(int) error {
		var rerr error
		passages, rerr = e.retriever.Retrieve(ctx, question, e.cfg.VectorDB.Threshold, e.cfg.VectorDB.NResults)
		return rerr
	})
	e.observeStage("retrieve", start)
	if err != nil {
		e.countTurn("retrieval_error")
		return "", err
	}
	if e.metrics != nil {
		e.metrics.RetrievedPassages.Observe(float64(len(passages)))
	}

	start = time.Now()
	instruction := e.cfg.Strategy.Instruction(e.cfg.StrategyTemplates())
	multiCall := e.cfg.Strategy == strategy.ReAct && e.cfg.Reasoning.ReAct.MultiCall
	if multiCall {
		instruction += "\n" + strategy.ReActLoopInstruction
	}
	spec := e.assembler.Assemble(prompt.Input{
		Question:            question,
		Passages:            passages,
		History:             c.memory.Snapshot(),
		StrategyInstruction: instruction,
	})
	e.observeStage("assemble", start)

	var answer string
	outcome := "answered"
	if !spec.Grounded {
		// Grounding guarantee: no relevant reviews means the canonical
		// decline answer, never a model improvisation.
		answer = e.prompts.DeclineAnswer
		outcome = "declined"
		e.logger.Info("engine: no passages cleared threshold, declining",
			"session_id", c.sessionID)
	} else {
		start = time.Now()
		answer, err = e.generate(ctx, spec, multiCall)
		e.observeStage("generate", start)
		if err != nil {
			e.countTurn("generation_error")
			return "", err
		}
	}

	start = time.Now()
	c.memory.Append(ctx, memory.Turn{Question: question, Answer: answer})
	if mode := c.memory.Compact(ctx); mode != memory.CompactionNone && e.metrics != nil {
		e.metrics.CompactionsTotal.WithLabelValues(string(mode)).Inc()
	}
	e.observeStage("update", start)

	e.countTurn(outcome)
	return answer, nil
}

// generate runs the model call, retrying transient failures. In multi-call
// ReAct mode it feeds each completion back until the model emits a final
// answer or the iteration cap is reached; the cap guarantees the loop
// terminates even against a model that keeps asking to continue.
func (e *Engine) generate(ctx context.Context, spec prompt.Spec, multiCall bool) (string, error) {
	messages := []llm.Message{{Role: "user", Content: spec.Text}}

	iterations := 1
	if multiCall {
		iterations = e.cfg.Reasoning.ReAct.MaxIterations
	}

	var last string
	for i := 0; i < iterations; i++ {
		var completion *llm.Completion
		err := retry.Do(ctx, e.generationPolicy, func(int) error {
			var cerr error
			completion, cerr = e.client.Complete(ctx, llm.Request{Messages: messages})
			return cerr
		})
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
		}

		if !multiCall {
			return completion.Text, nil
		}

		answer, done := strategy.ParseReActStep(completion.Text)
		if done {
			return answer, nil
		}
		last = completion.Text
		messages = append(messages,
			llm.Message{Role: "assistant", Content: completion.Text},
			llm.Message{Role: "user", Content: "Continue with the next cycle."},
		)
	}

	// Cap reached with the model still asking to continue: keep the last
	// reasoning text, minus the marker, rather than failing the turn.
	e.logger.Warn("engine: react iteration cap reached without final answer",
		"iterations", iterations)
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(last), strategy.ContinueMarker))
	return trimmed, nil
}
