// Package storage provides composable storage interfaces for NewsLens.
//
// The layer is split into small, focused interfaces that backends implement
// independently; Store composes them all. Two backends exist: PostgreSQL
// (with optional pgvector support) and SQLite.
package storage

import (
	"context"
	"time"

	"github.com/newslens/newslens/pkg/types"
)

// ClusterStore provides the operations the clustering engine needs.
// Write operations that touch both an article and an event are atomic:
// both changes commit or both roll back, never a partial application.
type ClusterStore interface {
	// UnclusteredArticles returns articles with no event assignment and a
	// completed embedding, fetched after the given cutoff, ordered by
	// published_at ascending with undated articles last.
	UnclusteredArticles(ctx context.Context, fetchedAfter time.Time) ([]*types.Article, error)

	// ActiveEvents returns events with status=active whose last_updated_at is
	// after the given cutoff, in creation order.
	ActiveEvents(ctx context.Context, updatedAfter time.Time) ([]*types.Event, error)

	// AssignArticle links an unclustered article to an existing event and
	// writes the event's new centroid, article count, and last_updated_at in
	// the same transaction. Returns ErrNotFound if the article is missing or
	// already clustered.
	AssignArticle(ctx context.Context, articleID, eventID string, centroid []float64, articleCount int) error

	// CreateEventWithArticle inserts a new event and links its founding
	// article in the same transaction. Returns ErrNotFound if the article is
	// missing or already clustered.
	CreateEventWithArticle(ctx context.Context, event *types.Event, articleID string) error

	// MarkStaleEvents transitions every active event whose last_updated_at is
	// older than the cutoff to stale. Returns the number of demoted events.
	MarkStaleEvents(ctx context.Context, olderThan time.Time) (int, error)

	// EventMemberEmbeddings returns the embeddings of all articles currently
	// assigned to the event. Members without embeddings are skipped.
	EventMemberEmbeddings(ctx context.Context, eventID string) ([][]float64, error)

	// ResetEventCentroid overwrites an event's centroid and article count.
	// Used only by the recluster repair path.
	ResetEventCentroid(ctx context.Context, eventID string, centroid []float64, articleCount int) error
}

// ArticleStore provides article persistence and the embedding backfill queue.
type ArticleStore interface {
	// StoreArticle creates or updates an article (upsert by ID). Embedding
	// omission must not block storage of the article itself.
	StoreArticle(ctx context.Context, article *types.Article) error

	// GetArticle retrieves an article by ID. Returns ErrNotFound if missing.
	GetArticle(ctx context.Context, id string) (*types.Article, error)

	// ArticlesPendingEmbedding returns up to limit articles whose embedding
	// generation has not yet succeeded or permanently failed, oldest first.
	ArticlesPendingEmbedding(ctx context.Context, limit int) ([]*types.Article, error)

	// SetArticleEmbedding stores a generated vector with its model and token
	// usage and marks the article's embedding completed.
	SetArticleEmbedding(ctx context.Context, id string, embedding []float64, model string, tokens int) error

	// MarkEmbeddingFailed records a failed generation attempt. Once attempts
	// reach the caller's budget the status moves to failed permanently.
	MarkEmbeddingFailed(ctx context.Context, id string, attempts int, errMsg string, permanent bool) error

	// EventArticles returns the articles assigned to an event, newest first.
	EventArticles(ctx context.Context, eventID string) ([]*types.Article, error)
}

// EventStore provides read-side access to events.
type EventStore interface {
	// GetEvent retrieves an event by ID. Returns ErrNotFound if missing.
	GetEvent(ctx context.Context, id string) (*types.Event, error)

	// ListEvents retrieves events with pagination and optional status filter,
	// most recently updated first.
	ListEvents(ctx context.Context, opts ListOptions) (*PaginatedResult[*types.Event], error)

	// Stats returns aggregate counts for the read API.
	Stats(ctx context.Context) (*Stats, error)
}

// OutletStore persists the outlet registry.
type OutletStore interface {
	// UpsertOutlet creates or updates an outlet by ID.
	UpsertOutlet(ctx context.Context, outlet *types.Outlet) error

	// GetOutlet retrieves an outlet by ID. Returns ErrNotFound if missing.
	GetOutlet(ctx context.Context, id string) (*types.Outlet, error)
}

// Store composes all storage capabilities of a backend.
type Store interface {
	ClusterStore
	ArticleStore
	EventStore
	OutletStore

	// Close releases any resources held by the store.
	Close() error
}
