// Package llm holds the remote text-generation client used by the triage
// assistants. Exactly one backend is active per process; the assistants only
// see the Client interface.
package llm

import (
	"context"
	"time"
)

// Client sends a system/user prompt pair to a remote language model and
// returns its raw text reply. Implementations do not retry; fallback policy
// belongs to the callers.
type Client interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Provider names a supported backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

const (
	// DefaultTemperature keeps replies stable enough for structured parsing.
	DefaultTemperature = 0.3
	// DefaultTimeout bounds a single remote call when the caller's context has no deadline.
	DefaultTimeout = 60 * time.Second
)

// withCallTimeout applies timeout when ctx carries no deadline of its own.
func withCallTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
