// Package types defines the core data structures for the NewsLens event
// clustering system: articles, events, outlets, and their status enums.
package types

// EventStatus represents the lifecycle state of an event.
type EventStatus string

// Event lifecycle constants. Only active events are eligible clustering
// targets; stale events stopped receiving new members; archived events are
// frozen by an operator and never touched again.
const (
	EventStatusActive   EventStatus = "active"
	EventStatusStale    EventStatus = "stale"
	EventStatusArchived EventStatus = "archived"
)

// EmbeddingStatus represents the state of embedding generation for an article.
type EmbeddingStatus string

const (
	// EmbeddingStatusPending indicates the article is waiting for embedding generation.
	EmbeddingStatusPending EmbeddingStatus = "pending"

	// EmbeddingStatusCompleted indicates a vector was generated and stored.
	EmbeddingStatusCompleted EmbeddingStatus = "completed"

	// EmbeddingStatusFailed indicates generation failed after exhausting retries.
	// The article is kept without a vector and is never a clustering candidate.
	EmbeddingStatusFailed EmbeddingStatus = "failed"
)

// ValidEventStatuses enumerates the accepted event status filter values.
var ValidEventStatuses = map[EventStatus]bool{
	EventStatusActive:   true,
	EventStatusStale:    true,
	EventStatusArchived: true,
}
