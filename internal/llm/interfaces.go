package llm

import "context"

// EmbeddingResult carries a generated vector together with the
// provider-reported token usage for the (possibly truncated) input.
type EmbeddingResult struct {
	Vector []float64
	Tokens int
	Model  string
}

// EmbeddingGenerator is the interface for generating vector embeddings.
// Implementations own truncation, bounded concurrency, and retry policy;
// callers see either a usable result or a final error.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) (*EmbeddingResult, error)
	GetModel() string
	Dimension() int
}
