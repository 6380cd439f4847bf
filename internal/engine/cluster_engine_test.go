package engine_test

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/newslens/newslens/internal/engine"
	"github.com/newslens/newslens/pkg/types"
)

// fakeStore is an in-memory ClusterStore that preserves insertion order so
// passes process articles deterministically.
type fakeStore struct {
	mu       sync.Mutex
	articles []*types.Article
	events   []*types.Event
}

func (f *fakeStore) addArticle(a *types.Article) {
	if a.FetchedAt.IsZero() {
		a.FetchedAt = time.Now()
	}
	if a.EmbeddingStatus == "" && len(a.Embedding) > 0 {
		a.EmbeddingStatus = types.EmbeddingStatusCompleted
	}
	f.articles = append(f.articles, a)
}

func (f *fakeStore) article(id string) *types.Article {
	for _, a := range f.articles {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (f *fakeStore) event(id string) *types.Event {
	for _, e := range f.events {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (f *fakeStore) UnclusteredArticles(ctx context.Context, fetchedAfter time.Time) ([]*types.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Article
	for _, a := range f.articles {
		if a.EventID == nil && a.EmbeddingStatus == types.EmbeddingStatusCompleted && a.FetchedAt.After(fetchedAfter) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveEvents(ctx context.Context, updatedAfter time.Time) ([]*types.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Event
	for _, e := range f.events {
		if e.Status == types.EventStatusActive && e.LastUpdatedAt.After(updatedAfter) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) AssignArticle(ctx context.Context, articleID, eventID string, centroid []float64, articleCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.article(articleID)
	if a == nil || a.EventID != nil {
		return fmt.Errorf("article %s missing or already assigned", articleID)
	}
	e := f.event(eventID)
	if e == nil {
		return fmt.Errorf("event %s not found", eventID)
	}
	id := eventID
	a.EventID = &id
	e.Centroid = centroid
	e.ArticleCount = articleCount
	e.LastUpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) CreateEventWithArticle(ctx context.Context, event *types.Event, articleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.article(articleID)
	if a == nil || a.EventID != nil {
		return fmt.Errorf("article %s missing or already assigned", articleID)
	}
	now := time.Now()
	event.CreatedAt = now
	event.LastUpdatedAt = now
	if event.ArticleCount == 0 {
		event.ArticleCount = 1
	}
	f.events = append(f.events, event)
	id := event.ID
	a.EventID = &id
	return nil
}

func (f *fakeStore) MarkStaleEvents(ctx context.Context, olderThan time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Status == types.EventStatusActive && e.LastUpdatedAt.Before(olderThan) {
			e.Status = types.EventStatusStale
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) EventMemberEmbeddings(ctx context.Context, eventID string) ([][]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]float64
	for _, a := range f.articles {
		if a.EventID != nil && *a.EventID == eventID && len(a.Embedding) > 0 {
			out = append(out, a.Embedding)
		}
	}
	return out, nil
}

func (f *fakeStore) ResetEventCentroid(ctx context.Context, eventID string, centroid []float64, articleCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.event(eventID)
	if e == nil {
		return fmt.Errorf("event %s not found", eventID)
	}
	e.Centroid = centroid
	e.ArticleCount = articleCount
	return nil
}

// unitVec returns a 2D unit vector whose cosine similarity to unitVec(0) is
// cos(theta).
func unitVec(theta float64) []float64 {
	return []float64{math.Cos(theta), math.Sin(theta)}
}

// vecWithSim returns a unit vector whose cosine similarity to base (assumed
// unit length, 2D) is exactly sim.
func vecWithSim(base []float64, sim float64) []float64 {
	theta := math.Acos(sim)
	// Rotate base by theta.
	return []float64{
		base[0]*math.Cos(theta) - base[1]*math.Sin(theta),
		base[0]*math.Sin(theta) + base[1]*math.Cos(theta),
	}
}

func newTestEngine(store *fakeStore) *engine.ClusterEngine {
	return engine.NewClusterEngine(store, engine.DefaultConfig())
}

func TestClusterArticles_SimilarArticlesShareEvent(t *testing.T) {
	store := &fakeStore{}
	base := unitVec(0)
	store.addArticle(&types.Article{ID: "a1", Title: "Quake hits coast", Language: "en", Embedding: base})
	store.addArticle(&types.Article{ID: "a2", Title: "Coastal quake aftermath", Language: "en", Embedding: vecWithSim(base, 0.95)})

	summary, err := newTestEngine(store).ClusterArticles(context.Background())
	if err != nil {
		t.Fatalf("ClusterArticles: %v", err)
	}

	if summary.Processed != 2 {
		t.Errorf("Processed = %d, want 2", summary.Processed)
	}
	if summary.Created != 1 {
		t.Errorf("Created = %d, want 1", summary.Created)
	}
	if summary.Assigned != 1 {
		t.Errorf("Assigned = %d, want 1", summary.Assigned)
	}
	if len(store.events) != 1 {
		t.Fatalf("got %d events, want 1", len(store.events))
	}
	if store.events[0].ArticleCount != 2 {
		t.Errorf("ArticleCount = %d, want 2", store.events[0].ArticleCount)
	}
}

func TestClusterArticles_DissimilarArticlesFoundSeparateEvents(t *testing.T) {
	store := &fakeStore{}
	store.addArticle(&types.Article{ID: "a1", Title: "Quake hits coast", Language: "en", Embedding: unitVec(0)})
	store.addArticle(&types.Article{ID: "a2", Title: "Election results announced", Language: "en", Embedding: unitVec(math.Pi / 2)})

	summary, err := newTestEngine(store).ClusterArticles(context.Background())
	if err != nil {
		t.Fatalf("ClusterArticles: %v", err)
	}

	if summary.Created != 2 {
		t.Errorf("Created = %d, want 2", summary.Created)
	}
	if len(store.events) != 2 {
		t.Errorf("got %d events, want 2", len(store.events))
	}
}

// An article processed later in a pass must be able to join an event founded
// earlier in the same pass.
func TestClusterArticles_InPassResidency(t *testing.T) {
	store := &fakeStore{}
	base := unitVec(0)
	store.addArticle(&types.Article{ID: "a1", Title: "First report", Language: "en", Embedding: base})
	store.addArticle(&types.Article{ID: "a2", Title: "Second report", Language: "en", Embedding: vecWithSim(base, 0.97)})
	store.addArticle(&types.Article{ID: "a3", Title: "Third report", Language: "en", Embedding: vecWithSim(base, 0.96)})

	summary, err := newTestEngine(store).ClusterArticles(context.Background())
	if err != nil {
		t.Fatalf("ClusterArticles: %v", err)
	}

	if summary.Created != 1 {
		t.Errorf("Created = %d, want 1", summary.Created)
	}
	if len(store.events) != 1 {
		t.Fatalf("got %d events, want 1", len(store.events))
	}
	if store.events[0].ArticleCount != 3 {
		t.Errorf("ArticleCount = %d, want 3", store.events[0].ArticleCount)
	}
}

// Highest match above threshold wins, not the first found.
func TestClusterArticles_BestMatchWins(t *testing.T) {
	store := &fakeStore{}
	now := time.Now()
	base := unitVec(0)
	store.events = []*types.Event{
		{ID: "e-far", Title: "Far event", Centroid: vecWithSim(base, 0.82), ArticleCount: 2, Language: "en", Status: types.EventStatusActive, LastUpdatedAt: now},
		{ID: "e-near", Title: "Near event", Centroid: vecWithSim(base, 0.95), ArticleCount: 2, Language: "en", Status: types.EventStatusActive, LastUpdatedAt: now},
	}
	store.addArticle(&types.Article{ID: "a1", Title: "Update", Language: "en", Embedding: base})

	summary, err := newTestEngine(store).ClusterArticles(context.Background())
	if err != nil {
		t.Fatalf("ClusterArticles: %v", err)
	}

	if summary.Assigned != 1 {
		t.Fatalf("Assigned = %d, want 1", summary.Assigned)
	}
	a := store.article("a1")
	if a.EventID == nil || *a.EventID != "e-near" {
		t.Errorf("article assigned to %v, want e-near", a.EventID)
	}
}

// Cross-language pairs use the lower threshold; a similarity between the two
// bars joins across languages but founds a new event within one.
func TestClusterArticles_LanguageAwareThresholds(t *testing.T) {
	base := unitVec(0)
	borderline := vecWithSim(base, 0.77)
	now := time.Now()

	frEvent := func() *types.Event {
		return &types.Event{ID: "e-fr", Title: "Séisme", Centroid: base, ArticleCount: 1, Language: "fr", Status: types.EventStatusActive, LastUpdatedAt: now}
	}

	t.Run("cross-language joins at 0.77", func(t *testing.T) {
		store := &fakeStore{}
		store.events = []*types.Event{frEvent()}
		store.addArticle(&types.Article{ID: "a1", Title: "Earthquake", Language: "en", Embedding: borderline})

		if _, err := newTestEngine(store).ClusterArticles(context.Background()); err != nil {
			t.Fatalf("ClusterArticles: %v", err)
		}
		a := store.article("a1")
		if a.EventID == nil || *a.EventID != "e-fr" {
			t.Errorf("article assigned to %v, want e-fr", a.EventID)
		}
	})

	t.Run("same-language founds new event at 0.77", func(t *testing.T) {
		store := &fakeStore{}
		ev := frEvent()
		store.events = []*types.Event{ev}
		store.addArticle(&types.Article{ID: "a1", Title: "Séisme ressenti", Language: "fr", Embedding: borderline})

		if _, err := newTestEngine(store).ClusterArticles(context.Background()); err != nil {
			t.Fatalf("ClusterArticles: %v", err)
		}
		a := store.article("a1")
		if a.EventID == nil || *a.EventID == "e-fr" {
			t.Errorf("article assigned to %v, want a new event", a.EventID)
		}
		if len(store.events) != 2 {
			t.Errorf("got %d events, want 2", len(store.events))
		}
	})

	// An unknown language on either side may well be a cross-language pair,
	// so the cross-language bar applies.
	t.Run("unknown article language joins at 0.77", func(t *testing.T) {
		store := &fakeStore{}
		store.events = []*types.Event{frEvent()}
		store.addArticle(&types.Article{ID: "a1", Title: "Earthquake felt", Embedding: borderline})

		if _, err := newTestEngine(store).ClusterArticles(context.Background()); err != nil {
			t.Fatalf("ClusterArticles: %v", err)
		}
		a := store.article("a1")
		if a.EventID == nil || *a.EventID != "e-fr" {
			t.Errorf("article assigned to %v, want e-fr", a.EventID)
		}
	})

	t.Run("unknown event language joins at 0.77", func(t *testing.T) {
		store := &fakeStore{}
		store.events = []*types.Event{{ID: "e-unk", Title: "Quake", Centroid: base, ArticleCount: 1, Status: types.EventStatusActive, LastUpdatedAt: now}}
		store.addArticle(&types.Article{ID: "a1", Title: "Earthquake felt", Language: "en", Embedding: borderline})

		if _, err := newTestEngine(store).ClusterArticles(context.Background()); err != nil {
			t.Fatalf("ClusterArticles: %v", err)
		}
		a := store.article("a1")
		if a.EventID == nil || *a.EventID != "e-unk" {
			t.Errorf("article assigned to %v, want e-unk", a.EventID)
		}
	})
}

func TestClusterArticles_SecondPassIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	base := unitVec(0)
	store.addArticle(&types.Article{ID: "a1", Title: "One", Language: "en", Embedding: base})
	store.addArticle(&types.Article{ID: "a2", Title: "Two", Language: "en", Embedding: vecWithSim(base, 0.95)})

	eng := newTestEngine(store)
	if _, err := eng.ClusterArticles(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	count := store.events[0].ArticleCount
	summary, err := eng.ClusterArticles(context.Background())
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}

	if summary.Processed != 0 {
		t.Errorf("second pass Processed = %d, want 0", summary.Processed)
	}
	if store.events[0].ArticleCount != count {
		t.Errorf("ArticleCount changed across idempotent pass: %d -> %d", count, store.events[0].ArticleCount)
	}
}

func TestClusterArticles_StaleEventsAreNotCandidates(t *testing.T) {
	store := &fakeStore{}
	base := unitVec(0)
	store.events = []*types.Event{{
		ID: "e-old", Title: "Old story", Centroid: base, ArticleCount: 3,
		Language: "en", Status: types.EventStatusActive,
		LastUpdatedAt: time.Now().Add(-10 * 24 * time.Hour),
	}}
	store.addArticle(&types.Article{ID: "a1", Title: "Fresh take", Language: "en", Embedding: base})

	if _, err := newTestEngine(store).ClusterArticles(context.Background()); err != nil {
		t.Fatalf("ClusterArticles: %v", err)
	}

	a := store.article("a1")
	if a.EventID == nil || *a.EventID == "e-old" {
		t.Errorf("article joined event outside the age window, assigned to %v", a.EventID)
	}
}

func TestClusterArticles_SkipsDimensionMismatch(t *testing.T) {
	store := &fakeStore{}
	now := time.Now()
	store.events = []*types.Event{{
		ID: "e-3d", Title: "Other model", Centroid: []float64{1, 0, 0}, ArticleCount: 1,
		Language: "en", Status: types.EventStatusActive, LastUpdatedAt: now,
	}}
	store.addArticle(&types.Article{ID: "a1", Title: "New", Language: "en", Embedding: unitVec(0)})

	summary, err := newTestEngine(store).ClusterArticles(context.Background())
	if err != nil {
		t.Fatalf("ClusterArticles: %v", err)
	}
	if summary.Created != 1 {
		t.Errorf("Created = %d, want 1 (mismatched event must not be a candidate)", summary.Created)
	}
}

func TestMarkStaleEvents(t *testing.T) {
	store := &fakeStore{}
	store.events = []*types.Event{
		{ID: "e-fresh", Status: types.EventStatusActive, LastUpdatedAt: time.Now()},
		{ID: "e-idle", Status: types.EventStatusActive, LastUpdatedAt: time.Now().Add(-8 * 24 * time.Hour)},
	}

	n, err := newTestEngine(store).MarkStaleEvents(context.Background())
	if err != nil {
		t.Fatalf("MarkStaleEvents: %v", err)
	}
	if n != 1 {
		t.Errorf("retired %d events, want 1", n)
	}
	if store.event("e-idle").Status != types.EventStatusStale {
		t.Errorf("e-idle status = %s, want stale", store.event("e-idle").Status)
	}
	if store.event("e-fresh").Status != types.EventStatusActive {
		t.Errorf("e-fresh status = %s, want active", store.event("e-fresh").Status)
	}
}

func TestReclusterEvent_RecomputesCentroidFromMembers(t *testing.T) {
	store := &fakeStore{}
	eid := "e1"
	store.events = []*types.Event{{ID: eid, Status: types.EventStatusActive, Centroid: []float64{9, 9}, ArticleCount: 99, LastUpdatedAt: time.Now()}}
	for i, v := range [][]float64{{1, 0}, {0, 1}} {
		id := eid
		store.addArticle(&types.Article{ID: fmt.Sprintf("a%d", i), Embedding: v, EventID: &id})
	}

	if err := newTestEngine(store).ReclusterEvent(context.Background(), eid); err != nil {
		t.Fatalf("ReclusterEvent: %v", err)
	}

	e := store.event(eid)
	want := []float64{0.5, 0.5}
	for i := range want {
		if math.Abs(e.Centroid[i]-want[i]) > 1e-12 {
			t.Errorf("Centroid[%d] = %v, want %v", i, e.Centroid[i], want[i])
		}
	}
	if e.ArticleCount != 2 {
		t.Errorf("ArticleCount = %d, want 2", e.ArticleCount)
	}
}

// ReclusterEvent is a best-effort repair path invoked speculatively; an event
// with no embedded members is skipped, never an error.
func TestReclusterEvent_NoMembers(t *testing.T) {
	store := &fakeStore{}
	store.events = []*types.Event{{ID: "e1", Status: types.EventStatusActive, Centroid: []float64{9, 9}, ArticleCount: 1, LastUpdatedAt: time.Now()}}

	if err := newTestEngine(store).ReclusterEvent(context.Background(), "e1"); err != nil {
		t.Errorf("ReclusterEvent on empty event = %v, want nil", err)
	}
	// The stored centroid is left untouched.
	if c := store.event("e1").Centroid; len(c) != 2 || c[0] != 9 {
		t.Errorf("Centroid = %v, want unchanged", c)
	}
}

// blockingStore parks UnclusteredArticles until released, so a test can hold
// a pass open while probing the single-flight guard.
type blockingStore struct {
	fakeStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) UnclusteredArticles(ctx context.Context, fetchedAfter time.Time) ([]*types.Article, error) {
	close(b.entered)
	<-b.release
	return b.fakeStore.UnclusteredArticles(ctx, fetchedAfter)
}

func TestTryClusterArticles_SkipsWhenPassRunning(t *testing.T) {
	store := &blockingStore{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	eng := engine.NewClusterEngine(store, engine.DefaultConfig())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := eng.ClusterArticles(context.Background()); err != nil {
			t.Errorf("blocked pass: %v", err)
		}
	}()

	<-store.entered
	summary, err := eng.TryClusterArticles(context.Background())
	if err != nil {
		t.Fatalf("TryClusterArticles: %v", err)
	}
	if summary != nil {
		t.Error("expected nil summary while another pass holds the lock")
	}

	close(store.release)
	<-done
}

// The staleness sweep shares the pass lock: it must never demote an event
// while a clustering pass holds it as a candidate.
func TestMarkStaleEvents_WaitsForRunningPass(t *testing.T) {
	store := &blockingStore{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	store.events = []*types.Event{
		{ID: "e-idle", Status: types.EventStatusActive, LastUpdatedAt: time.Now().Add(-8 * 24 * time.Hour)},
	}
	eng := engine.NewClusterEngine(store, engine.DefaultConfig())

	passDone := make(chan struct{})
	go func() {
		defer close(passDone)
		if _, err := eng.ClusterArticles(context.Background()); err != nil {
			t.Errorf("blocked pass: %v", err)
		}
	}()
	<-store.entered

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		if _, err := eng.MarkStaleEvents(context.Background()); err != nil {
			t.Errorf("MarkStaleEvents: %v", err)
		}
	}()

	select {
	case <-sweepDone:
		t.Fatal("staleness sweep completed while a clustering pass held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	<-passDone
	<-sweepDone

	if store.event("e-idle").Status != types.EventStatusStale {
		t.Errorf("e-idle status = %s, want stale after the pass finished", store.event("e-idle").Status)
	}
}

func TestPassCallback(t *testing.T) {
	store := &fakeStore{}
	store.addArticle(&types.Article{ID: "a1", Title: "One", Language: "en", Embedding: unitVec(0)})

	eng := newTestEngine(store)
	var got *engine.PassSummary
	eng.SetPassCallback(func(s *engine.PassSummary) { got = s })

	if _, err := eng.ClusterArticles(context.Background()); err != nil {
		t.Fatalf("ClusterArticles: %v", err)
	}
	if got == nil || got.Created != 1 {
		t.Errorf("callback summary = %+v, want Created=1", got)
	}
}
