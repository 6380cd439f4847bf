package types

import "time"

// Event represents a cluster of articles describing the same real-world event.
// The centroid is the running mean of all member article embeddings and is
// owned exclusively by the clustering engine: nothing else may write
// Centroid or ArticleCount.
type Event struct {
	ID string `json:"id"` // Unique identifier (uuid)

	// Title is derived once from the founding article's headline
	// (outlet suffix stripped, length-capped) and never recomputed.
	Title string `json:"title"`

	// Centroid is the element-wise mean embedding of all member articles.
	Centroid []float64 `json:"centroid,omitempty"`

	// ArticleCount is the number of members contributing to the centroid (>= 1).
	ArticleCount int `json:"article_count"`

	// Language is the founding article's language (article language falling
	// back to the outlet's declared language). Empty means unknown; used to
	// pick between the same-language and cross-language thresholds.
	Language string `json:"language,omitempty"`

	Status EventStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`

	// LastUpdatedAt is bumped on every member assignment and drives the
	// staleness sweep.
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Outlet represents a news source with a declared primary language.
// Outlets are loaded from the YAML registry and provide the language
// fallback for articles whose detection was absent.
type Outlet struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	FeedURL   string    `json:"feed_url" yaml:"feed_url"`
	Language  string    `json:"language,omitempty" yaml:"language"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}
