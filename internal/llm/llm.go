// Package llm provides chat-completion clients for the analysis stage.
//
// Two implementations exist: OpenAIClient talks to OpenAI through the
// official SDK, CompatClient talks to any OpenAI-compatible endpoint over
// plain HTTP. Both classify provider errors into apierr sentinels, retry
// transient failures with exponential backoff, and pace requests with a
// shared token-bucket limiter.
package llm

import (
	"context"
)

// Request is one chat completion: a system prompt and the user content.
type Request struct {
	System    string
	User      string
	MaxTokens int // 0 uses the client default
}

// Client executes chat completions.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Token estimation: English voice memos average ~4 chars/token.
const charsPerToken = 4

func estimateTokens(text string) int {
	return len(text) / charsPerToken
}
