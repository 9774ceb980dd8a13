// Package prompt assembles the per-turn instruction block sent to the
// language model. Assembly is a pure function of its input: same passages,
// history, and question produce the same text, and nothing is cached across
// turns.
package prompt

import (
	"strings"

	"github.com/ricardo-yos/rag-petmarket-reviews/internal/config"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/index"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/memory"
)

// Input carries everything one generation call depends on.
type Input struct {
	Question string
	// Passages are the retrieved reviews, already filtered and ranked.
	// Empty means the question is not answerable from the index.
	Passages []index.Passage
	// History is the compacted conversation so far, oldest first.
	History []memory.Turn
	// StrategyInstruction is the reasoning-strategy text for this turn.
	StrategyInstruction string
}

// Spec is the assembled prompt for one generation call.
type Spec struct {
	// Text is the full prompt, sections in fixed order.
	Text string
	// Grounded is false when no passage cleared the similarity threshold.
	Grounded bool
}

// Assembler builds prompts from a fixed set of configured text blocks.
type Assembler struct {
	cfg config.PromptConfig
}

func NewAssembler(cfg config.PromptConfig) *Assembler {
	return &Assembler{cfg: cfg}
}

// Assemble concatenates the prompt sections in a fixed order: role, style,
// instruction, retrieved reviews, output constraints, output format,
// reasoning strategy, conversation history, and finally the question. When
// no passages are available the context section is replaced by an explicit
// directive to return the configured decline answer, so grounding is never
// left to model discretion.
func (a *Assembler) Assemble(in Input) Spec {
	grounded := len(in.Passages) > 0
	sections := make([]string, 0, 9)

	sections = append(sections, textSection("Role:", a.cfg.Role))
	if len(a.cfg.StyleOrTone) > 0 {
		sections = append(sections, listSection("Style / Tone:", a.cfg.StyleOrTone))
	}
	sections = append(sections, textSection("Instruction:", a.cfg.Instruction))

	if grounded {
		formatted := make([]string, 0, len(in.Passages))
		for _, p := range in.Passages {
			formatted = append(formatted, p.Formatted())
		}
		sections = append(sections, "Context:\n"+strings.Join(formatted, "\n"))
	} else {
		sections = append(sections,
			"Context:\nNo customer reviews relevant to this question were found.")
	}

	constraints := a.cfg.OutputConstraints
	if !grounded {
		constraints = append(constraints[:len(constraints):len(constraints)],
			"The context contains no relevant reviews. Reply exactly with: "+a.cfg.DeclineAnswer)
	}
	sections = append(sections, listSection("Output Constraints:", constraints))

	if len(a.cfg.OutputFormat) > 0 {
		sections = append(sections, listSection("Output Format:", a.cfg.OutputFormat))
	}
	if in.StrategyInstruction != "" {
		sections = append(sections, textSection("Reasoning Strategy:", in.StrategyInstruction))
	}

	if len(in.History) > 0 {
		transcripts := make([]string, 0, len(in.History))
		for _, t := range in.History {
			transcripts = append(transcripts, t.Transcript())
		}
		sections = append(sections, "Conversation so far:\n"+strings.Join(transcripts, "\n"))
	}

	sections = append(sections, "User's question:\n"+in.Question)

	return Spec{Text: strings.Join(sections, "\n\n"), Grounded: grounded}
}

// textSection renders a titled single-entry section.
func textSection(title, content string) string {
	return title + "\n- " + content
}

// listSection renders a titled section with one line per item.
func listSection(title string, items []string) string {
	var b strings.Builder
	b.WriteString(title)
	for _, item := range items {
		b.WriteString("\n- ")
		b.WriteString(item)
	}
	return b.String()
}
