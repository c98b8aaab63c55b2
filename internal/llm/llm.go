// Package llm abstracts the hosted chat model behind a narrow capability
// interface so the reflection loop can run against test doubles.
package llm

import "context"

// Generator produces diagram source text for a prompt. Implementations must
// honor ctx cancellation; the loop applies a per-call timeout through it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config carries the provider settings for a concrete client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
}
