package llm

import "fmt"

// FactoryConfig selects and configures an embedding provider.
type FactoryConfig struct {
	Provider       string // "openai" or "ollama" (default)
	APIKey         string
	Model          string
	BaseURL        string
	MaxConcurrent  int     // concurrent provider calls, default 3
	RequestsPerSec float64 // sustained request pacing, 0 disables
	MaxTokens      int     // input token budget
	Dimension      int     // expected embedding dimension
}

// NewEmbeddingGenerator creates the appropriate EmbeddingGenerator for the
// configured provider. A single Gate is constructed here and owned by the
// returned client, so all calls through it share one concurrency bound.
func NewEmbeddingGenerator(cfg FactoryConfig) (EmbeddingGenerator, error) {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent == 0 {
		maxConcurrent = 3
	}
	gate := NewGate(maxConcurrent, cfg.RequestsPerSec)

	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			MaxTokens: cfg.MaxTokens,
			Dim:       cfg.Dimension,
		}, gate), nil
	case "ollama", "":
		return NewOllamaClient(OllamaConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Dim:       cfg.Dimension,
		}, gate), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
}
