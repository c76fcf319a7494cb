package ai

import "context"

// Provider sends a prompt to an LLM and returns the raw text response.
// Implementations must be safe for concurrent use; the enrichment stage calls
// Complete from many workers at once.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
