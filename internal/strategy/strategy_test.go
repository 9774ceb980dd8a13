package strategy

import (
	"errors"
	"strings"
	"testing"
)

func TestParse_ValidNames(t *testing.T) {
	for _, name := range []string{"CoT", "ReAct", "Self-Ask"} {
		s, err := Parse(name)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", name, err)
		}
		if string(s) != name {
			t.Errorf("Parse(%q) = %q", name, s)
		}
	}
}

func TestParse_UnknownName(t *testing.T) {
	_, err := Parse("Foo")
	if !errors.Is(err, ErrInvalidStrategy) {
		t.Fatalf("expected ErrInvalidStrategy, got %v", err)
	}
}

func TestParse_CaseSensitive(t *testing.T) {
	if _, err := Parse("cot"); !errors.Is(err, ErrInvalidStrategy) {
		t.Fatalf("expected ErrInvalidStrategy for lowercase name, got %v", err)
	}
}

func TestInstruction_Defaults(t *testing.T) {
	tests := []struct {
		strategy Strategy
		want     string
	}{
		{ChainOfThought, "step by step"},
		{ReAct, "Thought / Action / Observation / Reflection"},
		{SelfAsk, "sub-questions"},
	}
	for _, tt := range tests {
		got := tt.strategy.Instruction(nil)
		if !strings.Contains(got, tt.want) {
			t.Errorf("%s instruction missing %q:\n%s", tt.strategy, tt.want, got)
		}
	}
}

func TestInstruction_Override(t *testing.T) {
	overrides := map[Strategy]string{ChainOfThought: "custom reasoning text"}
	if got := ChainOfThought.Instruction(overrides); got != "custom reasoning text" {
		t.Errorf("expected override, got %q", got)
	}
	// Blank override falls through to the default.
	overrides[ChainOfThought] = "   "
	if got := ChainOfThought.Instruction(overrides); !strings.Contains(got, "step by step") {
		t.Errorf("blank override should use default, got %q", got)
	}
}

func TestParseReActStep(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		wantAnswer string
		wantDone   bool
	}{
		{
			name:       "final answer marker",
			output:     "Thought: enough evidence.\nFINAL ANSWER: The groomer is praised for punctuality.",
			wantAnswer: "The groomer is praised for punctuality.",
			wantDone:   true,
		},
		{
			name:     "continue marker",
			output:   "Thought: need delivery reviews too.\nCONTINUE",
			wantDone: false,
		},
		{
			name:       "no marker treated as final",
			output:     "The reviews mention long waits on weekends.",
			wantAnswer: "The reviews mention long waits on weekends.",
			wantDone:   true,
		},
		{
			name:       "last final marker wins",
			output:     "FINAL ANSWER: draft\nReflection: revise.\nFINAL ANSWER: polished",
			wantAnswer: "polished",
			wantDone:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, done := ParseReActStep(tt.output)
			if done != tt.wantDone {
				t.Fatalf("done = %v, want %v", done, tt.wantDone)
			}
			if answer != tt.wantAnswer {
				t.Errorf("answer = %q, want %q", answer, tt.wantAnswer)
			}
		})
	}
}
