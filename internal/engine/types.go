// Package engine implements the clustering engine that groups articles into
// events, plus the embedding backfill pipeline that feeds it.
package engine

import "time"

// Config holds clustering engine configuration.
type Config struct {
	// SameLanguageThreshold is the minimum cosine similarity for an article
	// to join an event in the same language.
	SameLanguageThreshold float64

	// CrossLanguageThreshold is the minimum cosine similarity for an article
	// to join an event in a different language. Embedding models place
	// translations slightly further apart, so this is lower.
	CrossLanguageThreshold float64

	// MaxEventAgeDays is how long an event can go without a new article
	// before the staleness sweep retires it.
	MaxEventAgeDays int

	// ArticleWindowHours bounds how far back a clustering pass looks for
	// unassigned articles.
	ArticleWindowHours int

	// EmbeddingWorkers is the number of concurrent backfill workers.
	EmbeddingWorkers int

	// EmbeddingBatchSize is how many pending articles one backfill pass claims.
	EmbeddingBatchSize int

	// EmbeddingMaxAttempts is how many failures an article tolerates before
	// it is marked permanently failed.
	EmbeddingMaxAttempts int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		SameLanguageThreshold:  0.80,
		CrossLanguageThreshold: 0.75,
		MaxEventAgeDays:        7,
		ArticleWindowHours:     48,
		EmbeddingWorkers:       3,
		EmbeddingBatchSize:     50,
		EmbeddingMaxAttempts:   5,
	}
}

// ClusterOutcome records what happened to one article during a pass.
type ClusterOutcome struct {
	ArticleID  string  `json:"article_id"`
	EventID    string  `json:"event_id"`
	Similarity float64 `json:"similarity"`
	Created    bool    `json:"created"` // true when the article founded a new event
}

// PassSummary aggregates one clustering pass.
type PassSummary struct {
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Processed int              `json:"processed"`
	Assigned  int              `json:"assigned"`
	Created   int              `json:"created"`
	Skipped   int              `json:"skipped"`
	Outcomes  []ClusterOutcome `json:"outcomes,omitempty"`
}

// BackfillSummary aggregates one embedding backfill pass.
type BackfillSummary struct {
	Claimed   int `json:"claimed"`
	Embedded  int `json:"embedded"`
	Failed    int `json:"failed"`
	Permanent int `json:"permanent"`
}
