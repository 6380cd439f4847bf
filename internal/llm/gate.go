package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// Gate bounds concurrency and request rate against the embedding provider.
// The provider enforces its own limits; exceeding them fails the whole
// ingestion pipeline, not just one article, so every client call must pass
// through a Gate. Construct one per process and hand it to the clients —
// it is deliberately not package-global state.
type Gate struct {
	sem     chan struct{}
	limiter *rate.Limiter
}

// NewGate creates a gate allowing at most maxConcurrent in-flight provider
// calls, paced to reqPerSec sustained requests. maxConcurrent values below 1
// are clamped to 1. A reqPerSec of 0 disables pacing.
func NewGate(maxConcurrent int, reqPerSec float64) *Gate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	var limiter *rate.Limiter
	if reqPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(reqPerSec), maxConcurrent)
	}

	return &Gate{
		sem:     make(chan struct{}, maxConcurrent),
		limiter: limiter,
	}
}

// acquire blocks until a concurrency slot and a rate token are available,
// or the context is cancelled. Callers must release() after the provider
// call returns.
func (g *Gate) acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			<-g.sem
			return err
		}
	}

	return nil
}

func (g *Gate) release() {
	<-g.sem
}

// retryPolicy controls the backoff loop for rate-limited provider calls.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{maxAttempts: 4, baseDelay: time.Second}
}

// do runs fn through the gate, retrying with exponential backoff on
// rate-limit-class errors. All other errors propagate immediately.
func (g *Gate) do(ctx context.Context, p retryPolicy, fn func() (*EmbeddingResult, error)) (*EmbeddingResult, error) {
	var lastErr error

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.baseDelay << (attempt - 1) // 1s, 2s, 4s...
			log.Printf("llm: rate limited, retrying in %v (attempt %d/%d)", delay, attempt+1, p.maxAttempts)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := g.acquire(ctx); err != nil {
			return nil, err
		}
		result, err := fn()
		g.release()

		if err == nil {
			return result, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("retry budget exhausted after %d attempts: %w", p.maxAttempts, lastErr)
}
