package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Option overrides per-call generation parameters.
type Option func(*Options)

type Options struct {
	Temperature float64
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}

// StreamingProvider produces the response incrementally.
//
// The returned channel carries Fragment events followed by exactly one Done or Error
// event, then closes. It is finite and cannot be restarted; there must be a single
// reader. When ctx is cancelled the channel closes without a Done event.
type StreamingProvider interface {
	LLMProvider
	Stream(ctx context.Context, history []Message, options ...Option) <-chan StreamEvent
}
