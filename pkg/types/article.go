package types

import "time"

// Article represents a single news article as persisted by ingestion.
// The embedding is written once by the backfill pipeline; from the
// clustering engine's perspective it is read-only.
type Article struct {
	// Core identification fields
	ID       string `json:"id"`                  // Unique identifier
	OutletID string `json:"outlet_id,omitempty"` // Owning outlet
	Title    string `json:"title"`               // Headline as published
	URL      string `json:"url"`                 // Canonical article URL
	Content  string `json:"content,omitempty"`   // Extracted body text

	// Language is the detected ISO 639-1 code, already resolved against the
	// outlet's declared language when detection was absent or low-confidence.
	// Empty means unknown.
	Language string `json:"language,omitempty"`

	PublishedAt *time.Time `json:"published_at,omitempty"` // As declared by the outlet; may be absent
	FetchedAt   time.Time  `json:"fetched_at"`             // When ingestion stored the article
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Embedding fields
	Embedding          []float64       `json:"embedding,omitempty"`        // Vector embedding, nil until generated
	EmbeddingModel     string          `json:"embedding_model,omitempty"`  // Model that produced the vector
	EmbeddingStatus    EmbeddingStatus `json:"embedding_status"`           // pending, completed, failed
	EmbeddingAttempts  int             `json:"embedding_attempts"`         // Generation attempts so far
	EmbeddingError     string          `json:"embedding_error,omitempty"`  // Last generation error
	EmbeddingTokens    int             `json:"embedding_tokens,omitempty"` // Provider-reported token usage

	// EventID references the event this article belongs to.
	// Nil means unclustered; once set it is never changed by this system.
	EventID *string `json:"event_id,omitempty"`
}

// HasEmbedding reports whether the article carries a usable vector.
func (a *Article) HasEmbedding() bool {
	return len(a.Embedding) > 0
}
