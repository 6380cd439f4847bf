// Package sqlite provides a SQLite implementation of storage interfaces.
package sqlite

// Schema contains the SQL statements to create the database schema.
// All statements are idempotent (IF NOT EXISTS).
const Schema = `
CREATE TABLE IF NOT EXISTS outlets (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    feed_url TEXT NOT NULL,
    language TEXT,

    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    centroid BLOB,
    article_count INTEGER NOT NULL DEFAULT 1,
    language TEXT,
    status TEXT NOT NULL DEFAULT 'active',

    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS articles (
    id TEXT PRIMARY KEY,
    outlet_id TEXT REFERENCES outlets(id),
    title TEXT NOT NULL,
    url TEXT NOT NULL UNIQUE,
    content TEXT,
    language TEXT,

    published_at DATETIME,
    fetched_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,

    embedding BLOB,
    embedding_model TEXT,
    embedding_status TEXT NOT NULL DEFAULT 'pending',
    embedding_attempts INTEGER NOT NULL DEFAULT 0,
    embedding_error TEXT,
    embedding_tokens INTEGER,

    event_id TEXT REFERENCES events(id)
);

CREATE INDEX IF NOT EXISTS idx_articles_event_id ON articles(event_id);
CREATE INDEX IF NOT EXISTS idx_articles_fetched_at ON articles(fetched_at);
CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at);
CREATE INDEX IF NOT EXISTS idx_articles_embedding_status ON articles(embedding_status);
CREATE INDEX IF NOT EXISTS idx_articles_outlet_id ON articles(outlet_id);

CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
CREATE INDEX IF NOT EXISTS idx_events_last_updated_at ON events(last_updated_at);
`
