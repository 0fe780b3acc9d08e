package llm

import "context"

type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Provider completes one prompt. Errors are *errorModel.ServiceError carrying
// the retry classification; the provider itself never retries.
type Provider interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}
