package prompt

import (
	"strings"
	"testing"

	"github.com/ricardo-yos/rag-petmarket-reviews/internal/config"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/index"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/memory"
)

func testInput() Input {
	return Input{
		Question: "Which groomer handles anxious dogs well?",
		Passages: []index.Passage{
			{
				Text:         "They were so patient with my nervous terrier.",
				Score:        0.82,
				BusinessName: "Happy Paws Grooming",
				PlaceRating:  4.5,
				Street:       "Rua Augusta 12",
				Neighborhood: "Consolação",
				City:         "São Paulo",
			},
			{
				Text:         "Calm staff, my rescue dog stopped shaking within minutes.",
				Score:        0.74,
				BusinessName: "PetStyle",
				PlaceRating:  4.0,
				Street:       "Av. Paulista 900",
				Neighborhood: "Bela Vista",
				City:         "São Paulo",
			},
		},
		History: []memory.Turn{
			{Question: "Any groomers nearby?", Answer: "Reviews mention Happy Paws and PetStyle."},
		},
		StrategyInstruction: "Think step by step before answering.",
	}
}

func TestAssemble_SectionOrder(t *testing.T) {
	spec := NewAssembler(*config.DefaultPrompt()).Assemble(testInput())
	if !spec.Grounded {
		t.Fatal("expected grounded spec")
	}

	order := []string{
		"Role:",
		"Style / Tone:",
		"Instruction:",
		"Context:",
		"Output Constraints:",
		"Output Format:",
		"Reasoning Strategy:",
		"Conversation so far:",
		"User's question:",
	}
	pos := -1
	for _, marker := range order {
		i := strings.Index(spec.Text, marker)
		if i < 0 {
			t.Fatalf("section %q missing from prompt", marker)
		}
		if i < pos {
			t.Fatalf("section %q out of order", marker)
		}
		pos = i
	}
}

func TestAssemble_PassagesCarryMetadata(t *testing.T) {
	spec := NewAssembler(*config.DefaultPrompt()).Assemble(testInput())

	for _, want := range []string{
		"Happy Paws Grooming (Rating: 4.5)",
		"Rua Augusta 12, Consolação, São Paulo",
		"Review: They were so patient with my nervous terrier.",
		"PetStyle (Rating: 4.0)",
	} {
		if !strings.Contains(spec.Text, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.Contains(spec.Text, "user: Any groomers nearby?\nassistant: Reviews mention Happy Paws and PetStyle.") {
		t.Error("history transcript missing from prompt")
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	a := NewAssembler(*config.DefaultPrompt())
	in := testInput()
	first := a.Assemble(in)
	second := a.Assemble(in)
	if first.Text != second.Text {
		t.Fatal("same input produced different prompts")
	}
}

func TestAssemble_EmptyPassagesDirectsDecline(t *testing.T) {
	cfg := *config.DefaultPrompt()
	in := testInput()
	in.Passages = nil
	a := NewAssembler(cfg)

	spec := a.Assemble(in)
	if spec.Grounded {
		t.Fatal("spec should not be grounded without passages")
	}
	if !strings.Contains(spec.Text, "No customer reviews relevant to this question were found.") {
		t.Error("empty context notice missing")
	}
	if !strings.Contains(spec.Text, "Reply exactly with: "+cfg.DeclineAnswer) {
		t.Error("decline directive missing")
	}

	// The shared constraint list must not accumulate decline directives.
	a.Assemble(in)
	third := a.Assemble(in)
	if n := strings.Count(third.Text, "Reply exactly with:"); n != 1 {
		t.Errorf("decline directive appears %d times, want 1", n)
	}
}

func TestAssemble_OmitsEmptyOptionalSections(t *testing.T) {
	cfg := *config.DefaultPrompt()
	cfg.StyleOrTone = nil
	cfg.OutputFormat = nil
	in := testInput()
	in.History = nil
	in.StrategyInstruction = ""

	spec := NewAssembler(cfg).Assemble(in)
	for _, absent := range []string{"Style / Tone:", "Output Format:", "Reasoning Strategy:", "Conversation so far:"} {
		if strings.Contains(spec.Text, absent) {
			t.Errorf("section %q should be omitted", absent)
		}
	}
}
