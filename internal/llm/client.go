// Package llm provides the chat-completions client used for answer
// generation and history summarization. The wire format is the
// OpenAI-compatible /chat/completions API, which covers Groq, OpenAI,
// Ollama and most local proxies.
package llm

import (
	"context"
	"errors"
)

// ErrRateLimit is returned when the upstream provider reports HTTP 429.
// The retry layer treats it as retryable with backoff.
var ErrRateLimit = errors.New("llm: upstream rate limit exceeded")

// Message is a single chat message in provider wire order.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one generation call.
type Request struct {
	// Messages is the full context window, system prompt first.
	Messages []Message
	// MaxTokens caps the completion length. Zero leaves the provider default.
	MaxTokens int
	// Temperature of 0 is sent as-is; grounded answering wants low variance.
	Temperature float64
}

// TokenUsage carries the token counts reported by the provider for one call.
// Zero-valued when the provider does not report usage.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the provider's reply for one Request.
type Completion struct {
	Text  string
	Usage TokenUsage
}

// Client generates completions. Implementations must be safe for concurrent
// use by independent conversations.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}
