package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaConfig holds configuration for the Ollama embedding client.
type OllamaConfig struct {
	BaseURL   string        // default: http://localhost:11434
	Model     string        // default: nomic-embed-text
	Timeout   time.Duration // default: 60s (local models can be slow to load)
	MaxTokens int           // input token budget, default: 2000
	Dim       int           // embedding dimension, default: 768
}

// OllamaClient implements EmbeddingGenerator against a local Ollama server.
type OllamaClient struct {
	cfg            OllamaConfig
	client         *http.Client
	gate           *Gate
	retry          retryPolicy
	circuitBreaker *CircuitBreaker
}

// NewOllamaClient creates a new Ollama embedding client.
func NewOllamaClient(cfg OllamaConfig, gate *Gate) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Dim == 0 {
		cfg.Dim = 768
	}
	if gate == nil {
		gate = NewGate(1, 0)
	}
	return &OllamaClient{
		cfg:            cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		gate:           gate,
		retry:          defaultRetryPolicy(),
		circuitBreaker: NewCircuitBreaker(),
	}
}

// ollamaEmbedRequest is the request body for POST /api/embed.
type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// ollamaEmbedResponse is the response body from POST /api/embed.
type ollamaEmbedResponse struct {
	Embeddings      [][]float64 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

// Embed generates an embedding vector for the given text.
func (c *OllamaClient) Embed(ctx context.Context, text string) (*EmbeddingResult, error) {
	truncated := TruncateForEmbedding(text, c.cfg.MaxTokens)

	return c.gate.do(ctx, c.retry, func() (*EmbeddingResult, error) {
		result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
			return c.embed(ctx, truncated)
		})
		if err != nil {
			if errors.Is(err, ErrCircuitOpen) {
				return nil, fmt.Errorf("ollama circuit breaker open: %w", err)
			}
			return nil, err
		}
		return result.(*EmbeddingResult), nil
	})
}

func (c *OllamaClient) embed(ctx context.Context, text string) (*EmbeddingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := ollamaEmbedRequest{
		Model: c.cfg.Model,
		Input: text,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/api/embed", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, providerStatusError("ollama", resp.StatusCode, body)
	}

	var respData ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(respData.Embeddings) == 0 || len(respData.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding vector")
	}

	vec := respData.Embeddings[0]
	if len(vec) != c.cfg.Dim {
		return nil, fmt.Errorf("ollama returned dimension %d, expected %d", len(vec), c.cfg.Dim)
	}

	return &EmbeddingResult{Vector: vec, Tokens: respData.PromptEvalCount, Model: c.cfg.Model}, nil
}

// HealthCheck verifies the Ollama server is reachable via /api/version.
// Bypasses the circuit breaker since it is itself the health probe.
func (c *OllamaClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.BaseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// GetModel returns the configured model name.
func (c *OllamaClient) GetModel() string {
	return c.cfg.Model
}

// Dimension returns the configured embedding dimension.
func (c *OllamaClient) Dimension() int {
	return c.cfg.Dim
}

// Compile-time assertion.
var _ EmbeddingGenerator = (*OllamaClient)(nil)
