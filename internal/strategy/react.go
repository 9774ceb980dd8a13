package strategy

import "strings"

// Markers for the opt-in multi-call ReAct mode. When the loop is enabled the
// model is told to end each completion with either a continue marker (another
// cycle is needed) or the final-answer marker followed by the answer text.
const (
	ContinueMarker    = "CONTINUE"
	FinalAnswerMarker = "FINAL ANSWER:"
)

// ReActLoopInstruction is appended to the reasoning section when the engine
// runs ReAct as a real multi-call loop instead of a single completion.
const ReActLoopInstruction = `Run exactly one Thought/Action/Observation/Reflection cycle per response.
If another cycle is needed, end your response with the single word CONTINUE.
If you can answer now, end your response with "FINAL ANSWER:" followed by the answer.`

// ParseReActStep inspects one completion produced in multi-call ReAct mode.
// It returns the final answer and done=true when the completion carries the
// final-answer marker. When the completion ends with the continue marker,
// done is false and answer is empty. A completion with neither marker is
// treated as final, with the whole text as the answer: models drift, and
// stalling the turn on a missing marker would be worse than accepting the
// output.
func ParseReActStep(output string) (answer string, done bool) {
	trimmed := strings.TrimSpace(output)

	if idx := strings.LastIndex(trimmed, FinalAnswerMarker); idx >= 0 {
		return strings.TrimSpace(trimmed[idx+len(FinalAnswerMarker):]), true
	}
	if strings.HasSuffix(trimmed, ContinueMarker) {
		return "", false
	}
	return trimmed, true
}
