package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/newslens/newslens/internal/storage"
	"github.com/newslens/newslens/pkg/types"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite store with WAL self-healing.
// If the initial open fails due to stale WAL files (left behind by a crashed
// process), it verifies no other process holds them and retries once after
// removing the stale -shm/-wal files.
func NewStore(dsn string) (*Store, error) {
	store, err := openStore(dsn)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || dbPath == ":memory:" {
		return nil, err
	}

	if !isWALStale(dbPath) {
		return nil, err
	}

	removeStaleWAL(dbPath)

	store, retryErr := openStore(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("failed after WAL recovery: %w (original: %v)", retryErr, err)
	}

	log.Printf("sqlite: recovered from stale WAL files for %s", dbPath)
	return store, nil
}

// openStore opens a SQLite database, configures WAL mode, and creates the schema.
func openStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Using a single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	// WAL mode allows concurrent readers to proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Connections live for the lifetime of the store.

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set busy timeout so that callers wait instead of getting an immediate
	// SQLITE_BUSY error when the connection is held by another goroutine.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases any resources held by the store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --- ArticleStore ---

const articleSelectColumns = `
	id, outlet_id, title, url, content, language,
	published_at, fetched_at, created_at, updated_at,
	embedding, embedding_model, embedding_status, embedding_attempts,
	embedding_error, embedding_tokens, event_id`

func scanArticle(row interface {
	Scan(dest ...interface{}) error
}) (*types.Article, error) {
	var a types.Article
	var outletID, content, language, embeddingModel, embeddingError sql.NullString
	var publishedAt sql.NullTime
	var embedding []byte
	var tokens sql.NullInt64
	var eventID sql.NullString

	err := row.Scan(
		&a.ID, &outletID, &a.Title, &a.URL, &content, &language,
		&publishedAt, &a.FetchedAt, &a.CreatedAt, &a.UpdatedAt,
		&embedding, &embeddingModel, &a.EmbeddingStatus, &a.EmbeddingAttempts,
		&embeddingError, &tokens, &eventID,
	)
	if err != nil {
		return nil, err
	}

	a.OutletID = outletID.String
	a.Content = content.String
	a.Language = language.String
	a.EmbeddingModel = embeddingModel.String
	a.EmbeddingError = embeddingError.String
	if publishedAt.Valid {
		t := publishedAt.Time
		a.PublishedAt = &t
	}
	if tokens.Valid {
		a.EmbeddingTokens = int(tokens.Int64)
	}
	if eventID.Valid {
		id := eventID.String
		a.EventID = &id
	}
	if len(embedding) > 0 {
		vec, err := storage.DecodeVector(embedding)
		if err != nil {
			return nil, fmt.Errorf("sqlite: corrupt embedding for article %s: %w", a.ID, err)
		}
		a.Embedding = vec
	}
	return &a, nil
}

// StoreArticle creates or updates an article (upsert on ID). Clustering and
// embedding backfill state survive re-ingest of the same article.
func (s *Store) StoreArticle(ctx context.Context, article *types.Article) error {
	if article == nil {
		return storage.ErrInvalidInput
	}
	if article.ID == "" {
		return fmt.Errorf("%w: article ID is required", storage.ErrInvalidInput)
	}
	if article.URL == "" {
		return fmt.Errorf("%w: article URL is required", storage.ErrInvalidInput)
	}

	now := time.Now()
	if article.CreatedAt.IsZero() {
		article.CreatedAt = now
	}
	if article.FetchedAt.IsZero() {
		article.FetchedAt = now
	}
	article.UpdatedAt = now
	if article.EmbeddingStatus == "" {
		article.EmbeddingStatus = types.EmbeddingStatusPending
	}

	var embedding []byte
	if len(article.Embedding) > 0 {
		embedding = storage.EncodeVector(article.Embedding)
	}

	query := `
		INSERT INTO articles (
			id, outlet_id, title, url, content, language,
			published_at, fetched_at, created_at, updated_at,
			embedding, embedding_model, embedding_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			language = excluded.language,
			published_at = excluded.published_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		article.ID,
		sql.NullString{String: article.OutletID, Valid: article.OutletID != ""},
		article.Title,
		article.URL,
		sql.NullString{String: article.Content, Valid: article.Content != ""},
		sql.NullString{String: article.Language, Valid: article.Language != ""},
		article.PublishedAt,
		article.FetchedAt,
		article.CreatedAt,
		article.UpdatedAt,
		embedding,
		sql.NullString{String: article.EmbeddingModel, Valid: article.EmbeddingModel != ""},
		article.EmbeddingStatus,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to store article: %w", err)
	}
	return nil
}

// GetArticle retrieves an article by ID.
func (s *Store) GetArticle(ctx context.Context, id string) (*types.Article, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: article ID is required", storage.ErrInvalidInput)
	}

	query := `SELECT ` + articleSelectColumns + ` FROM articles WHERE id = ?`
	article, err := scanArticle(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get article: %w", err)
	}
	return article, nil
}

// ArticlesPendingEmbedding returns articles awaiting embedding backfill,
// oldest first.
func (s *Store) ArticlesPendingEmbedding(ctx context.Context, limit int) ([]*types.Article, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + articleSelectColumns + `
		FROM articles
		WHERE embedding_status = ?
		ORDER BY fetched_at ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, types.EmbeddingStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query pending articles: %w", err)
	}
	defer rows.Close()

	var articles []*types.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// SetArticleEmbedding stores a completed embedding for an article.
func (s *Store) SetArticleEmbedding(ctx context.Context, id string, embedding []float64, model string, tokens int) error {
	if id == "" {
		return fmt.Errorf("%w: article ID is required", storage.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding is required", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE articles
		SET embedding = ?,
		    embedding_model = ?,
		    embedding_tokens = ?,
		    embedding_status = ?,
		    embedding_error = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, storage.EncodeVector(embedding), model, tokens, types.EmbeddingStatusCompleted, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to set embedding: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkEmbeddingFailed records a failed embedding attempt. Permanent failures
// leave the backfill queue; transient ones stay pending for a later pass.
func (s *Store) MarkEmbeddingFailed(ctx context.Context, id string, attempts int, errMsg string, permanent bool) error {
	if id == "" {
		return fmt.Errorf("%w: article ID is required", storage.ErrInvalidInput)
	}

	status := types.EmbeddingStatusPending
	if permanent {
		status = types.EmbeddingStatusFailed
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE articles
		SET embedding_attempts = ?,
		    embedding_error = ?,
		    embedding_status = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, attempts, errMsg, status, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to mark embedding failure: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// EventArticles returns the member articles of an event, newest first.
func (s *Store) EventArticles(ctx context.Context, eventID string) ([]*types.Article, error) {
	if eventID == "" {
		return nil, fmt.Errorf("%w: event ID is required", storage.ErrInvalidInput)
	}

	query := `
		SELECT ` + articleSelectColumns + `
		FROM articles
		WHERE event_id = ?
		ORDER BY COALESCE(published_at, fetched_at) DESC
	`
	rows, err := s.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query event articles: %w", err)
	}
	defer rows.Close()

	var articles []*types.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// --- ClusterStore ---

// UnclusteredArticles returns embedded, unassigned articles fetched after
// the cutoff, in publication order with undated articles last.
func (s *Store) UnclusteredArticles(ctx context.Context, fetchedAfter time.Time) ([]*types.Article, error) {
	query := `
		SELECT ` + articleSelectColumns + `
		FROM articles
		WHERE event_id IS NULL
		  AND embedding_status = ?
		  AND fetched_at > ?
		ORDER BY published_at IS NULL, published_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, types.EmbeddingStatusCompleted, fetchedAfter)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query unclustered articles: %w", err)
	}
	defer rows.Close()

	var articles []*types.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

const eventSelectColumns = `
	id, title, centroid, article_count, language, status, created_at, last_updated_at`

func scanEvent(row interface {
	Scan(dest ...interface{}) error
}) (*types.Event, error) {
	var e types.Event
	var centroid []byte
	var language sql.NullString

	err := row.Scan(&e.ID, &e.Title, &centroid, &e.ArticleCount, &language, &e.Status, &e.CreatedAt, &e.LastUpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Language = language.String
	if len(centroid) > 0 {
		vec, err := storage.DecodeVector(centroid)
		if err != nil {
			return nil, fmt.Errorf("sqlite: corrupt centroid for event %s: %w", e.ID, err)
		}
		e.Centroid = vec
	}
	return &e, nil
}

// ActiveEvents returns active events updated after the cutoff.
func (s *Store) ActiveEvents(ctx context.Context, updatedAfter time.Time) ([]*types.Event, error) {
	query := `
		SELECT ` + eventSelectColumns + `
		FROM events
		WHERE status = ?
		  AND last_updated_at > ?
		ORDER BY last_updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, types.EventStatusActive, updatedAfter)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query active events: %w", err)
	}
	defer rows.Close()

	var events []*types.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// AssignArticle attaches an article to an event and updates the event's
// centroid and article count in a single transaction. The event_id IS NULL
// guard keeps a retried pass from double-counting an article.
func (s *Store) AssignArticle(ctx context.Context, articleID, eventID string, centroid []float64, articleCount int) error {
	if articleID == "" || eventID == "" {
		return fmt.Errorf("%w: article and event IDs are required", storage.ErrInvalidInput)
	}
	if len(centroid) == 0 {
		return fmt.Errorf("%w: centroid is required", storage.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE articles
		SET event_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND event_id IS NULL
	`, eventID, articleID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to assign article: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: article %s missing or already assigned", storage.ErrNotFound, articleID)
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE events
		SET centroid = ?,
		    article_count = ?,
		    last_updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, storage.EncodeVector(centroid), articleCount, eventID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update event centroid: %w", err)
	}
	n, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: event %s", storage.ErrNotFound, eventID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit assignment: %w", err)
	}
	return nil
}

// CreateEventWithArticle creates a new event founded by the given article
// and assigns the article to it in a single transaction.
func (s *Store) CreateEventWithArticle(ctx context.Context, event *types.Event, articleID string) error {
	if event == nil || event.ID == "" {
		return fmt.Errorf("%w: event with ID is required", storage.ErrInvalidInput)
	}
	if articleID == "" {
		return fmt.Errorf("%w: article ID is required", storage.ErrInvalidInput)
	}
	if len(event.Centroid) == 0 {
		return fmt.Errorf("%w: event centroid is required", storage.ErrInvalidInput)
	}

	now := time.Now()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	if event.LastUpdatedAt.IsZero() {
		event.LastUpdatedAt = now
	}
	if event.Status == "" {
		event.Status = types.EventStatusActive
	}
	if event.ArticleCount == 0 {
		event.ArticleCount = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, title, centroid, article_count, language, status, created_at, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.Title,
		storage.EncodeVector(event.Centroid),
		event.ArticleCount,
		sql.NullString{String: event.Language, Valid: event.Language != ""},
		event.Status,
		event.CreatedAt,
		event.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create event: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE articles
		SET event_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND event_id IS NULL
	`, event.ID, articleID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to assign founding article: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: article %s missing or already assigned", storage.ErrNotFound, articleID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit event creation: %w", err)
	}
	return nil
}

// MarkStaleEvents transitions active events last updated before the cutoff
// to stale. Returns the number of events transitioned.
func (s *Store) MarkStaleEvents(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET status = ?
		WHERE status = ? AND last_updated_at < ?
	`, types.EventStatusStale, types.EventStatusActive, olderThan)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to mark stale events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// EventMemberEmbeddings returns the embeddings of all member articles of an event.
func (s *Store) EventMemberEmbeddings(ctx context.Context, eventID string) ([][]float64, error) {
	if eventID == "" {
		return nil, fmt.Errorf("%w: event ID is required", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT embedding
		FROM articles
		WHERE event_id = ? AND embedding IS NOT NULL
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query member embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings [][]float64
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan embedding: %w", err)
		}
		vec, err := storage.DecodeVector(raw)
		if err != nil {
			return nil, fmt.Errorf("sqlite: corrupt member embedding: %w", err)
		}
		embeddings = append(embeddings, vec)
	}
	return embeddings, rows.Err()
}

// ResetEventCentroid overwrites an event's centroid and article count.
func (s *Store) ResetEventCentroid(ctx context.Context, eventID string, centroid []float64, articleCount int) error {
	if eventID == "" {
		return fmt.Errorf("%w: event ID is required", storage.ErrInvalidInput)
	}
	if len(centroid) == 0 {
		return fmt.Errorf("%w: centroid is required", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET centroid = ?,
		    article_count = ?,
		    last_updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, storage.EncodeVector(centroid), articleCount, eventID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to reset centroid: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- EventStore ---

// GetEvent retrieves an event by ID.
func (s *Store) GetEvent(ctx context.Context, id string) (*types.Event, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: event ID is required", storage.ErrInvalidInput)
	}

	query := `SELECT ` + eventSelectColumns + ` FROM events WHERE id = ?`
	event, err := scanEvent(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get event: %w", err)
	}
	return event, nil
}

// ListEvents returns a page of events, most recently updated first,
// optionally filtered by status.
func (s *Store) ListEvents(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[*types.Event], error) {
	opts.Normalize()

	where := ""
	args := []interface{}{}
	if opts.Status != "" {
		where = "WHERE status = ?"
		args = append(args, opts.Status)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events %s", where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count events: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM events
		%s
		ORDER BY last_updated_at DESC
		LIMIT ? OFFSET ?
	`, eventSelectColumns, where)
	args = append(args, opts.Limit, (opts.Page-1)*opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*types.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &storage.PaginatedResult[*types.Event]{
		Items: events,
		Total: total,
		Page:  opts.Page,
		Limit: opts.Limit,
	}, nil
}

// Stats returns aggregate counts for the dashboard and health endpoints.
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	var stats storage.Stats

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(event_id),
			COALESCE(SUM(CASE WHEN embedding_status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN embedding_status = ? THEN 1 ELSE 0 END), 0)
		FROM articles
	`, types.EmbeddingStatusPending, types.EmbeddingStatusFailed).Scan(
		&stats.TotalArticles, &stats.ClusteredArticles,
		&stats.PendingEmbeddings, &stats.FailedEmbeddings,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query article stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM events
	`, types.EventStatusActive, types.EventStatusStale).Scan(
		&stats.TotalEvents, &stats.ActiveEvents, &stats.StaleEvents,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query event stats: %w", err)
	}

	return &stats, nil
}

// --- OutletStore ---

// UpsertOutlet creates or updates an outlet record.
func (s *Store) UpsertOutlet(ctx context.Context, outlet *types.Outlet) error {
	if outlet == nil || outlet.ID == "" {
		return fmt.Errorf("%w: outlet with ID is required", storage.ErrInvalidInput)
	}

	if outlet.CreatedAt.IsZero() {
		outlet.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outlets (id, name, feed_url, language, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			feed_url = excluded.feed_url,
			language = excluded.language
	`, outlet.ID, outlet.Name, outlet.FeedURL,
		sql.NullString{String: outlet.Language, Valid: outlet.Language != ""},
		outlet.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert outlet: %w", err)
	}
	return nil
}

// GetOutlet retrieves an outlet by ID.
func (s *Store) GetOutlet(ctx context.Context, id string) (*types.Outlet, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: outlet ID is required", storage.ErrInvalidInput)
	}

	var o types.Outlet
	var language sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, feed_url, language, created_at FROM outlets WHERE id = ?
	`, id).Scan(&o.ID, &o.Name, &o.FeedURL, &language, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get outlet: %w", err)
	}
	o.Language = language.String
	return &o, nil
}

// --- WAL recovery helpers ---

// dbPathFromDSN extracts the on-disk database path from a SQLite DSN.
// Returns "" for in-memory databases or unparseable DSNs.
func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || dsn == "" {
		return ""
	}

	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == ":memory:" || path == "" {
			return ""
		}
		return path
	}

	return dsn
}

// isRecoverableWALError returns true if the error matches patterns caused by
// stale WAL files left behind after a crash (SIGKILL, OOM, etc.).
func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") ||
		strings.Contains(msg, "database is locked")
}

// isWALStale checks whether -shm/-wal files exist for the given database path
// AND no other process currently holds them open (via lsof).
// Returns false if lsof is unavailable (conservative: no deletion).
func isWALStale(dbPath string) bool {
	shmPath := dbPath + "-shm"
	walPath := dbPath + "-wal"

	if !fileExists(shmPath) && !fileExists(walPath) {
		return false
	}

	lsofPath, err := exec.LookPath("lsof")
	if err != nil {
		// lsof not available (e.g., Alpine Docker) — conservative fallback.
		return false
	}

	// Check the main db file, -shm, and -wal in a single lsof invocation.
	cmd := exec.Command(lsofPath, "-t", dbPath, shmPath, walPath)
	output, err := cmd.Output()
	if err != nil {
		// lsof returns exit code 1 when no files are open — that means stale.
		return true
	}

	return strings.TrimSpace(string(output)) == ""
}

// removeStaleWAL removes -shm and -wal files for the given database path.
func removeStaleWAL(dbPath string) {
	for _, suffix := range []string{"-shm", "-wal"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("sqlite: failed to remove stale %s: %v", path, err)
		}
	}
}

// fileExists returns true if the path exists on disk.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
