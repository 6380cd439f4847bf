// Package llm provides embedding-provider clients for NewsLens.
// Clients truncate input to the provider token budget, bound concurrency
// through a shared Gate, retry rate-limit failures with exponential backoff,
// and protect themselves with a circuit breaker.
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

// OpenAIConfig holds configuration for the OpenAI embedding client.
type OpenAIConfig struct {
	APIKey    string
	Model     string        // default: text-embedding-3-small
	BaseURL   string        // default: https://api.openai.com
	Timeout   time.Duration // default: 30s
	MaxTokens int           // input token budget, default: 8000
	Dim       int           // embedding dimension, default: 1536
}

// OpenAIClient implements EmbeddingGenerator using the OpenAI embeddings API.
type OpenAIClient struct {
	cfg            OpenAIConfig
	client         *http.Client
	gate           *Gate
	retry          retryPolicy
	circuitBreaker *CircuitBreaker
}

// NewOpenAIClient creates a new OpenAI embedding client. The gate is shared
// with any other clients talking to the same provider; pass nil to create a
// private single-slot gate.
func NewOpenAIClient(cfg OpenAIConfig, gate *Gate) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 8000
	}
	if cfg.Dim == 0 {
		cfg.Dim = 1536
	}
	if gate == nil {
		gate = NewGate(1, 0)
	}
	return &OpenAIClient{
		cfg:            cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		gate:           gate,
		retry:          defaultRetryPolicy(),
		circuitBreaker: NewCircuitBreaker(),
	}
}

// openAIEmbeddingRequest is the request body for POST /v1/embeddings.
type openAIEmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// openAIEmbeddingResponse is the response body from POST /v1/embeddings.
type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed generates an embedding vector for the given text. Input is truncated
// to the configured token budget at a sentence boundary before the call.
func (c *OpenAIClient) Embed(ctx context.Context, text string) (*EmbeddingResult, error) {
	truncated := TruncateForEmbedding(text, c.cfg.MaxTokens)

	return c.gate.do(ctx, c.retry, func() (*EmbeddingResult, error) {
		result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
			return c.embed(ctx, truncated)
		})
		if err != nil {
			if errors.Is(err, ErrCircuitOpen) {
				return nil, fmt.Errorf("openai circuit breaker open: %w", err)
			}
			return nil, err
		}
		return result.(*EmbeddingResult), nil
	})
}

func (c *OpenAIClient) embed(ctx context.Context, text string) (*EmbeddingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := openAIEmbeddingRequest{
		Model: c.cfg.Model,
		Input: text,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, providerStatusError("openai", resp.StatusCode, body)
	}

	var respData openAIEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(respData.Data) == 0 || len(respData.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned empty embedding")
	}

	vec := respData.Data[0].Embedding
	if len(vec) != c.cfg.Dim {
		return nil, fmt.Errorf("openai returned dimension %d, expected %d", len(vec), c.cfg.Dim)
	}

	tokens := respData.Usage.PromptTokens
	if tokens == 0 {
		tokens = respData.Usage.TotalTokens
	}

	return &EmbeddingResult{Vector: vec, Tokens: tokens, Model: c.cfg.Model}, nil
}

// GetModel returns the configured model name.
func (c *OpenAIClient) GetModel() string {
	return c.cfg.Model
}

// Dimension returns the configured embedding dimension.
func (c *OpenAIClient) Dimension() int {
	return c.cfg.Dim
}

// Compile-time assertion.
var _ EmbeddingGenerator = (*OpenAIClient)(nil)
