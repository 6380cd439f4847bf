package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newslens/newslens/internal/similarity"
	"github.com/newslens/newslens/internal/storage"
	"github.com/newslens/newslens/pkg/types"
)

// ClusterEngine assigns embedded articles to events. Passes are serialised:
// only one goroutine may run ClusterArticles at a time, enforced by an
// internal mutex. Callers that must not block use TryClusterArticles.
type ClusterEngine struct {
	store  storage.ClusterStore
	config Config

	passMu sync.Mutex

	// onPassComplete, when set, receives the summary of every finished pass.
	// Used by the web layer to broadcast updates.
	onPassComplete func(*PassSummary)
}

// NewClusterEngine creates a clustering engine over the given store.
func NewClusterEngine(store storage.ClusterStore, config Config) *ClusterEngine {
	if config.SameLanguageThreshold == 0 {
		config = DefaultConfig()
	}
	return &ClusterEngine{store: store, config: config}
}

// SetPassCallback registers a callback invoked after every completed pass.
// Must be called before the engine starts running passes.
func (e *ClusterEngine) SetPassCallback(fn func(*PassSummary)) {
	e.onPassComplete = fn
}

// residentEvent is an event loaded into a pass's working set. The centroid
// and count are mutated in memory as articles join, so that later articles
// in the same pass see earlier assignments.
type residentEvent struct {
	event    *types.Event
	centroid []float64
	count    int
}

// ClusterArticles runs one clustering pass: it loads unassigned articles
// fetched within the window and the active events updated within the event
// age limit, and assigns each article to its best-matching event or founds
// a new one. Blocks if another pass is already running.
func (e *ClusterEngine) ClusterArticles(ctx context.Context) (*PassSummary, error) {
	e.passMu.Lock()
	defer e.passMu.Unlock()
	return e.runPass(ctx)
}

// TryClusterArticles runs a pass unless one is already in progress, in
// which case it returns (nil, nil) immediately. The scheduler uses this so
// a slow pass never queues up behind itself.
func (e *ClusterEngine) TryClusterArticles(ctx context.Context) (*PassSummary, error) {
	if !e.passMu.TryLock() {
		return nil, nil
	}
	defer e.passMu.Unlock()
	return e.runPass(ctx)
}

func (e *ClusterEngine) runPass(ctx context.Context) (*PassSummary, error) {
	start := time.Now()

	articleCutoff := start.Add(-time.Duration(e.config.ArticleWindowHours) * time.Hour)
	eventCutoff := start.Add(-time.Duration(e.config.MaxEventAgeDays) * 24 * time.Hour)

	articles, err := e.store.UnclusteredArticles(ctx, articleCutoff)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to load unclustered articles: %w", err)
	}

	summary := &PassSummary{StartedAt: start}
	if len(articles) == 0 {
		summary.Duration = time.Since(start)
		return summary, nil
	}

	events, err := e.store.ActiveEvents(ctx, eventCutoff)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to load active events: %w", err)
	}

	// The resident set is pass-scoped: events loaded once, then mutated in
	// memory as assignments land. Articles processed later in the pass can
	// join events founded earlier in the same pass.
	residents := make([]*residentEvent, 0, len(events))
	for _, ev := range events {
		residents = append(residents, &residentEvent{
			event:    ev,
			centroid: ev.Centroid,
			count:    ev.ArticleCount,
		})
	}

	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		if !article.HasEmbedding() {
			summary.Skipped++
			continue
		}

		outcome, err := e.clusterOne(ctx, article, &residents)
		if err != nil {
			// One bad article must not sink the pass. Log and move on;
			// the article stays unassigned and the next pass retries it.
			log.Printf("engine: WARNING failed to cluster article %s: %v", article.ID, err)
			summary.Skipped++
			continue
		}

		summary.Processed++
		if outcome.Created {
			summary.Created++
		} else {
			summary.Assigned++
		}
		summary.Outcomes = append(summary.Outcomes, *outcome)
	}

	summary.Duration = time.Since(start)
	log.Printf("engine: clustering pass done in %v (processed=%d assigned=%d created=%d skipped=%d)",
		summary.Duration, summary.Processed, summary.Assigned, summary.Created, summary.Skipped)

	if e.onPassComplete != nil {
		e.onPassComplete(summary)
	}
	return summary, nil
}

// clusterOne places a single article: best match above threshold wins,
// otherwise the article founds a new event. The residents slice is extended
// in place when a new event is created.
func (e *ClusterEngine) clusterOne(ctx context.Context, article *types.Article, residents *[]*residentEvent) (*ClusterOutcome, error) {
	var best *residentEvent
	bestSim := -1.0

	for _, r := range *residents {
		if len(r.centroid) == 0 {
			continue
		}
		sim, err := similarity.CosineSimilarity(article.Embedding, r.centroid)
		if err != nil {
			// Dimension mismatch means a different embedding model produced
			// this centroid. Such events are never candidates.
			continue
		}
		if sim < e.threshold(article, r.event) {
			continue
		}
		if sim > bestSim {
			best = r
			bestSim = sim
		}
	}

	if best != nil {
		updated, err := similarity.UpdateCentroid(best.centroid, article.Embedding, best.count)
		if err != nil {
			return nil, fmt.Errorf("engine: centroid update: %w", err)
		}
		if err := e.store.AssignArticle(ctx, article.ID, best.event.ID, updated, best.count+1); err != nil {
			return nil, err
		}
		best.centroid = updated
		best.count++
		return &ClusterOutcome{
			ArticleID:  article.ID,
			EventID:    best.event.ID,
			Similarity: bestSim,
		}, nil
	}

	event := &types.Event{
		ID:       uuid.NewString(),
		Title:    deriveEventTitle(article.Title),
		Centroid: article.Embedding,
		Language: article.Language,
		Status:   types.EventStatusActive,
	}
	if err := e.store.CreateEventWithArticle(ctx, event, article.ID); err != nil {
		return nil, err
	}

	*residents = append(*residents, &residentEvent{
		event:    event,
		centroid: event.Centroid,
		count:    1,
	})
	return &ClusterOutcome{
		ArticleID:  article.ID,
		EventID:    event.ID,
		Similarity: 1.0,
		Created:    true,
	}, nil
}

// threshold picks the similarity bar for an article/event pair. The same-
// language bar applies only when both languages are known and equal; any
// unknown language means the pair may well be cross-language, so the looser
// cross-language bar is used.
func (e *ClusterEngine) threshold(article *types.Article, event *types.Event) float64 {
	if article.Language != "" && article.Language == event.Language {
		return e.config.SameLanguageThreshold
	}
	return e.config.CrossLanguageThreshold
}

// maxTitleRunes caps derived event titles.
const maxTitleRunes = 180

// deriveEventTitle turns a founding article's headline into an event title.
// Outlet suffixes like " - Reuters" or " | BBC News" are stripped, and the
// result is capped at maxTitleRunes.
func deriveEventTitle(articleTitle string) string {
	title := strings.TrimSpace(articleTitle)

	for _, sep := range []string{" | ", " - ", " – " /* en dash */} {
		if idx := strings.LastIndex(title, sep); idx > 0 {
			// Only strip when what follows looks like an outlet tag, not a
			// subtitle: short relative to the headline itself.
			tail := title[idx+len(sep):]
			if len(tail) > 0 && len(tail) < len(title)/2 && len(tail) <= 40 {
				title = strings.TrimSpace(title[:idx])
			}
			break
		}
	}

	runes := []rune(title)
	if len(runes) > maxTitleRunes {
		title = strings.TrimSpace(string(runes[:maxTitleRunes-1])) + "…"
	}
	if title == "" {
		title = "Untitled event"
	}
	return title
}
