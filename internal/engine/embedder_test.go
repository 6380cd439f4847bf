package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/newslens/newslens/internal/engine"
	"github.com/newslens/newslens/internal/llm"
	"github.com/newslens/newslens/pkg/types"
)

// fakeArticleStore implements storage.ArticleStore over a map.
type fakeArticleStore struct {
	mu       sync.Mutex
	articles map[string]*types.Article
}

func newFakeArticleStore(articles ...*types.Article) *fakeArticleStore {
	s := &fakeArticleStore{articles: make(map[string]*types.Article)}
	for _, a := range articles {
		if a.EmbeddingStatus == "" {
			a.EmbeddingStatus = types.EmbeddingStatusPending
		}
		s.articles[a.ID] = a
	}
	return s
}

func (s *fakeArticleStore) StoreArticle(ctx context.Context, a *types.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[a.ID] = a
	return nil
}

func (s *fakeArticleStore) GetArticle(ctx context.Context, id string) (*types.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, fmt.Errorf("article %s not found", id)
	}
	return a, nil
}

func (s *fakeArticleStore) ArticlesPendingEmbedding(ctx context.Context, limit int) ([]*types.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Article
	for _, a := range s.articles {
		if a.EmbeddingStatus == types.EmbeddingStatusPending {
			out = append(out, a)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeArticleStore) SetArticleEmbedding(ctx context.Context, id string, embedding []float64, model string, tokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return fmt.Errorf("article %s not found", id)
	}
	a.Embedding = embedding
	a.EmbeddingModel = model
	a.EmbeddingTokens = tokens
	a.EmbeddingStatus = types.EmbeddingStatusCompleted
	a.EmbeddingError = ""
	return nil
}

func (s *fakeArticleStore) MarkEmbeddingFailed(ctx context.Context, id string, attempts int, errMsg string, permanent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return fmt.Errorf("article %s not found", id)
	}
	a.EmbeddingAttempts = attempts
	a.EmbeddingError = errMsg
	if permanent {
		a.EmbeddingStatus = types.EmbeddingStatusFailed
	} else {
		a.EmbeddingStatus = types.EmbeddingStatusPending
	}
	return nil
}

func (s *fakeArticleStore) EventArticles(ctx context.Context, eventID string) ([]*types.Article, error) {
	return nil, nil
}

// fakeGenerator returns a fixed vector or a fixed error.
type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *fakeGenerator) Embed(ctx context.Context, text string) (*llm.EmbeddingResult, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return &llm.EmbeddingResult{Vector: []float64{0.1, 0.2}, Tokens: 7, Model: "fake-model"}, nil
}

func (g *fakeGenerator) GetModel() string { return "fake-model" }
func (g *fakeGenerator) Dimension() int   { return 2 }

func testEmbedderConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.EmbeddingMaxAttempts = 2
	return cfg
}

func TestRunBackfill_EmbedsPendingArticles(t *testing.T) {
	store := newFakeArticleStore(
		&types.Article{ID: "a1", Title: "One", Content: "Body one"},
		&types.Article{ID: "a2", Title: "Two", Content: "Body two"},
	)
	gen := &fakeGenerator{}

	summary, err := engine.NewEmbedder(store, gen, testEmbedderConfig()).RunBackfill(context.Background())
	if err != nil {
		t.Fatalf("RunBackfill: %v", err)
	}

	if summary.Claimed != 2 || summary.Embedded != 2 {
		t.Errorf("summary = %+v, want Claimed=2 Embedded=2", summary)
	}
	for _, id := range []string{"a1", "a2"} {
		a, _ := store.GetArticle(context.Background(), id)
		if a.EmbeddingStatus != types.EmbeddingStatusCompleted {
			t.Errorf("%s status = %s, want completed", id, a.EmbeddingStatus)
		}
		if a.EmbeddingModel != "fake-model" || a.EmbeddingTokens != 7 {
			t.Errorf("%s model/tokens = %s/%d", id, a.EmbeddingModel, a.EmbeddingTokens)
		}
	}
}

func TestRunBackfill_TransientFailureStaysPending(t *testing.T) {
	store := newFakeArticleStore(&types.Article{ID: "a1", Title: "One", Content: "Body"})
	gen := &fakeGenerator{err: fmt.Errorf("embed: %w", llm.ErrRateLimited)}

	summary, err := engine.NewEmbedder(store, gen, testEmbedderConfig()).RunBackfill(context.Background())
	if err != nil {
		t.Fatalf("RunBackfill: %v", err)
	}

	if summary.Failed != 1 || summary.Permanent != 0 {
		t.Errorf("summary = %+v, want Failed=1 Permanent=0", summary)
	}
	a, _ := store.GetArticle(context.Background(), "a1")
	if a.EmbeddingStatus != types.EmbeddingStatusPending {
		t.Errorf("status = %s, want pending (retryable failure)", a.EmbeddingStatus)
	}
	if a.EmbeddingAttempts != 1 {
		t.Errorf("attempts = %d, want 1", a.EmbeddingAttempts)
	}
}

func TestRunBackfill_ExhaustedAttemptsGoPermanent(t *testing.T) {
	store := newFakeArticleStore(&types.Article{ID: "a1", Title: "One", Content: "Body", EmbeddingAttempts: 1})
	gen := &fakeGenerator{err: errors.New("invalid request")}

	summary, err := engine.NewEmbedder(store, gen, testEmbedderConfig()).RunBackfill(context.Background())
	if err != nil {
		t.Fatalf("RunBackfill: %v", err)
	}

	if summary.Permanent != 1 {
		t.Errorf("summary = %+v, want Permanent=1", summary)
	}
	a, _ := store.GetArticle(context.Background(), "a1")
	if a.EmbeddingStatus != types.EmbeddingStatusFailed {
		t.Errorf("status = %s, want failed", a.EmbeddingStatus)
	}
	if a.EmbeddingError == "" {
		t.Error("expected the failure reason to be recorded")
	}
}

func TestRunBackfill_EmptyArticleFailsPermanently(t *testing.T) {
	store := newFakeArticleStore(&types.Article{ID: "a1"})
	gen := &fakeGenerator{}

	summary, err := engine.NewEmbedder(store, gen, testEmbedderConfig()).RunBackfill(context.Background())
	if err != nil {
		t.Fatalf("RunBackfill: %v", err)
	}

	if summary.Permanent != 1 {
		t.Errorf("summary = %+v, want Permanent=1", summary)
	}
	if gen.calls != 0 {
		t.Errorf("provider called %d times for an empty article, want 0", gen.calls)
	}
}

func TestRunBackfill_NothingPending(t *testing.T) {
	store := newFakeArticleStore(&types.Article{ID: "a1", Title: "Done", EmbeddingStatus: types.EmbeddingStatusCompleted})
	gen := &fakeGenerator{}

	start := time.Now()
	summary, err := engine.NewEmbedder(store, gen, testEmbedderConfig()).RunBackfill(context.Background())
	if err != nil {
		t.Fatalf("RunBackfill: %v", err)
	}
	if summary.Claimed != 0 {
		t.Errorf("Claimed = %d, want 0", summary.Claimed)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("empty pass took %v", elapsed)
	}
}
