package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/newslens/newslens/internal/llm"
	"github.com/newslens/newslens/internal/storage"
	"github.com/newslens/newslens/pkg/types"
)

// Embedder runs the embedding backfill: it claims pending articles and fills
// in their embeddings via the configured provider. A pool of workers drains
// each batch; provider-level concurrency and rate limits are enforced inside
// the llm package, so the pool size only bounds local fan-out.
type Embedder struct {
	store     storage.ArticleStore
	generator llm.EmbeddingGenerator
	config    Config
}

// NewEmbedder creates an embedding backfill pipeline.
func NewEmbedder(store storage.ArticleStore, generator llm.EmbeddingGenerator, config Config) *Embedder {
	if config.EmbeddingWorkers <= 0 {
		config.EmbeddingWorkers = DefaultConfig().EmbeddingWorkers
	}
	if config.EmbeddingBatchSize <= 0 {
		config.EmbeddingBatchSize = DefaultConfig().EmbeddingBatchSize
	}
	if config.EmbeddingMaxAttempts <= 0 {
		config.EmbeddingMaxAttempts = DefaultConfig().EmbeddingMaxAttempts
	}
	return &Embedder{store: store, generator: generator, config: config}
}

// RunBackfill processes one batch of pending articles. Safe to call from a
// ticker: a pass that finds nothing pending returns immediately.
func (em *Embedder) RunBackfill(ctx context.Context) (*BackfillSummary, error) {
	articles, err := em.store.ArticlesPendingEmbedding(ctx, em.config.EmbeddingBatchSize)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to claim pending articles: %w", err)
	}

	summary := &BackfillSummary{Claimed: len(articles)}
	if len(articles) == 0 {
		return summary, nil
	}

	jobs := make(chan *types.Article)
	var embedded, failed, permanent int64

	var wg sync.WaitGroup
	for i := 0; i < em.config.EmbeddingWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for article := range jobs {
				switch em.embedOne(ctx, workerID, article) {
				case backfillOK:
					atomic.AddInt64(&embedded, 1)
				case backfillPermanent:
					atomic.AddInt64(&permanent, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
			}
		}(i)
	}

	for _, a := range articles {
		select {
		case jobs <- a:
		case <-ctx.Done():
			// Stop feeding; workers drain what they already hold.
			close(jobs)
			wg.Wait()
			summary.Embedded = int(embedded)
			summary.Failed = int(failed)
			summary.Permanent = int(permanent)
			return summary, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	summary.Embedded = int(embedded)
	summary.Failed = int(failed)
	summary.Permanent = int(permanent)
	log.Printf("engine: backfill pass done (claimed=%d embedded=%d failed=%d permanent=%d)",
		summary.Claimed, summary.Embedded, summary.Failed, summary.Permanent)
	return summary, nil
}

type backfillResult int

const (
	backfillOK backfillResult = iota
	backfillRetry
	backfillPermanent
)

// embedOne embeds a single article and records the result. Transient
// failures leave the article pending for the next pass; after the attempt
// budget is spent the article is marked failed for good.
func (em *Embedder) embedOne(ctx context.Context, workerID int, article *types.Article) backfillResult {
	text := embeddingText(article)
	if text == "" {
		// Nothing to embed. Permanently failing keeps the article from
		// cycling through every future pass.
		if err := em.store.MarkEmbeddingFailed(ctx, article.ID, article.EmbeddingAttempts+1, "article has no text", true); err != nil {
			log.Printf("engine: ERROR worker %d failed to mark article %s: %v", workerID, article.ID, err)
		}
		return backfillPermanent
	}

	result, err := em.generator.Embed(ctx, text)
	if err != nil {
		attempts := article.EmbeddingAttempts + 1
		isPermanent := attempts >= em.config.EmbeddingMaxAttempts && !llm.IsRetryable(err)
		log.Printf("engine: WARNING worker %d embedding failed for article %s (attempt %d): %v",
			workerID, article.ID, attempts, err)
		if markErr := em.store.MarkEmbeddingFailed(ctx, article.ID, attempts, err.Error(), isPermanent); markErr != nil {
			log.Printf("engine: ERROR worker %d failed to record failure for %s: %v", workerID, article.ID, markErr)
		}
		if isPermanent {
			return backfillPermanent
		}
		return backfillRetry
	}

	if err := em.store.SetArticleEmbedding(ctx, article.ID, result.Vector, result.Model, result.Tokens); err != nil {
		log.Printf("engine: ERROR worker %d failed to store embedding for %s: %v", workerID, article.ID, err)
		return backfillRetry
	}
	return backfillOK
}

// embeddingText builds the provider input for an article: the headline
// carries the most signal, so it leads, followed by the body. Truncation to
// the provider's token budget happens inside the llm clients.
func embeddingText(article *types.Article) string {
	title := strings.TrimSpace(article.Title)
	content := strings.TrimSpace(article.Content)
	switch {
	case title == "":
		return content
	case content == "":
		return title
	default:
		return title + "\n\n" + content
	}
}
