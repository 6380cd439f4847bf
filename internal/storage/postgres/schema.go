// Package postgres provides a PostgreSQL implementation of storage interfaces.
package postgres

// Schema contains the SQL statements to create the database schema.
// All statements are idempotent (IF NOT EXISTS).
const Schema = `
-- Outlets table: news sources with a declared primary language
CREATE TABLE IF NOT EXISTS outlets (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    feed_url TEXT NOT NULL,
    language TEXT,

    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Events table: clusters of articles describing the same real-world event.
-- The centroid is the running mean of member embeddings, stored as binary
-- packed float64. Only the clustering engine writes centroid/article_count.
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    centroid BYTEA,
    article_count INTEGER NOT NULL DEFAULT 1,
    language TEXT,
    status TEXT NOT NULL DEFAULT 'active',

    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Articles table: ingested articles with embedding backfill tracking.
-- event_id is NULL until the clustering engine assigns the article; the
-- engine's candidate query is driven by the event_id IS NULL predicate.
CREATE TABLE IF NOT EXISTS articles (
    id TEXT PRIMARY KEY,
    outlet_id TEXT REFERENCES outlets(id),
    title TEXT NOT NULL,
    url TEXT NOT NULL UNIQUE,
    content TEXT,
    language TEXT,

    published_at TIMESTAMP,
    fetched_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

    -- Embedding backfill tracking
    embedding BYTEA,
    embedding_model TEXT,
    embedding_status TEXT NOT NULL DEFAULT 'pending',
    embedding_attempts INTEGER NOT NULL DEFAULT 0,
    embedding_error TEXT,
    embedding_tokens INTEGER,

    event_id TEXT REFERENCES events(id)
);

-- Indexes for performance

-- Candidate selection: unclustered articles with embeddings in the window
CREATE INDEX IF NOT EXISTS idx_articles_event_id ON articles(event_id);
CREATE INDEX IF NOT EXISTS idx_articles_fetched_at ON articles(fetched_at);
CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at);

-- Backfill queue
CREATE INDEX IF NOT EXISTS idx_articles_embedding_status ON articles(embedding_status);

-- Outlet lookups
CREATE INDEX IF NOT EXISTS idx_articles_outlet_id ON articles(outlet_id);

-- Active-event loading and the staleness sweep
CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
CREATE INDEX IF NOT EXISTS idx_events_last_updated_at ON events(last_updated_at);
`

// MigrationPgvector adds pgvector mirrors of the embedding columns.
// Applied only when the vector extension is available; safe to run multiple
// times. The BYTEA columns remain authoritative — the vector columns exist
// for cosine-distance queries from the read side and external tooling.
const MigrationPgvector = `
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns
        WHERE table_name = 'articles' AND column_name = 'embedding_vec'
    ) THEN
        ALTER TABLE articles ADD COLUMN embedding_vec vector;
    END IF;
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns
        WHERE table_name = 'events' AND column_name = 'centroid_vec'
    ) THEN
        ALTER TABLE events ADD COLUMN centroid_vec vector;
    END IF;
END
$$;

-- ivfflat requires at least one row to exist; guard with a DO block.
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1 FROM pg_indexes WHERE indexname = 'idx_events_centroid_vec_cosine'
  ) THEN
    IF EXISTS (SELECT 1 FROM events WHERE centroid_vec IS NOT NULL LIMIT 1) THEN
      EXECUTE 'CREATE INDEX idx_events_centroid_vec_cosine ON events USING ivfflat (centroid_vec vector_cosine_ops) WITH (lists = 100)';
    END IF;
  END IF;
END$$;
`
