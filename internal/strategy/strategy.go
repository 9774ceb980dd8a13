// Package strategy defines the closed set of reasoning strategies the
// assistant can be configured with. A strategy is a block of instruction
// text injected into the prompt; it shapes how the model reasons before
// answering, nothing more. Strategy names are resolved exactly once, at
// configuration load: an unknown name is a startup error, never a
// per-request one.
package strategy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidStrategy is returned by Parse for a name outside the closed set.
var ErrInvalidStrategy = errors.New("strategy: unknown reasoning strategy")

// Strategy identifies one of the built-in reasoning strategies.
type Strategy string

const (
	// ChainOfThought asks the model for stepwise decomposition in a single pass.
	ChainOfThought Strategy = "CoT"
	// ReAct asks the model to interleave Thought/Action/Observation/Reflection.
	// By default the cycle is textual: the model simulates the loop inside one
	// completion. The engine can optionally run it as a bounded multi-call loop.
	ReAct Strategy = "ReAct"
	// SelfAsk asks the model to pose and answer sub-questions before synthesis.
	SelfAsk Strategy = "Self-Ask"
)

// All lists every valid strategy, in a stable order.
func All() []Strategy {
	return []Strategy{ChainOfThought, ReAct, SelfAsk}
}

// Parse resolves a configured strategy name. The match is exact; the
// configuration surface documents the three canonical spellings.
func Parse(name string) (Strategy, error) {
	switch Strategy(name) {
	case ChainOfThought, ReAct, SelfAsk:
		return Strategy(name), nil
	}
	return "", fmt.Errorf("%w: %q (valid: CoT, ReAct, Self-Ask)", ErrInvalidStrategy, name)
}

const cotInstruction = `Think through the question step by step before answering.
First identify what the question asks, then go through the retrieved reviews one
by one and note which facts are relevant, then combine those facts into the answer.
Only the final answer should be shown to the user, not the intermediate steps.`

const reactInstruction = `Answer using an iterative Thought / Action / Observation / Reflection cycle.
Thought: state what you need to find out from the reviews.
Action: pick the review excerpts that could contain it.
Observation: write down what those excerpts actually say.
Reflection: decide whether that is enough to answer or another cycle is needed.
Repeat the cycle in your reasoning as needed, then give only the final answer.`

const selfAskInstruction = `Break the question into simpler sub-questions.
Answer each sub-question using only the retrieved reviews, then synthesize the
sub-answers into one final answer. Show only the final answer to the user.`

// Instruction returns the instruction text for s. When overrides contains a
// non-empty entry for s (from the prompt configuration file), that text wins;
// otherwise the built-in default is used.
func (s Strategy) Instruction(overrides map[Strategy]string) string {
	if text, ok := overrides[s]; ok && strings.TrimSpace(text) != "" {
		return text
	}
	switch s {
	case ReAct:
		return reactInstruction
	case SelfAsk:
		return selfAskInstruction
	default:
		return cotInstruction
	}
}
