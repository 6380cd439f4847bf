package storage

import "errors"

var (
	// ErrNotFound indicates that the requested resource was not found, or
	// that a conditional write (assign to an already-clustered article)
	// matched no rows.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// PaginatedResult represents a paginated result set.
type PaginatedResult[T any] struct {
	// Items is the slice of results for the current page.
	Items []T

	// Total is the total number of items across all pages.
	Total int

	// Page is the current page number (1-indexed).
	Page int

	// Limit is the number of items per page.
	Limit int
}

// ListOptions provides pagination and filtering for list operations.
type ListOptions struct {
	// Page is the page number to retrieve (1-indexed, default: 1).
	Page int

	// Limit is the number of items per page (default: 20, max: 100).
	Limit int

	// Status filters events by status. Empty means no filter.
	Status string
}

// Normalize applies defaults and caps to the options in place.
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
}

// Stats holds aggregate counts exposed by the read API.
type Stats struct {
	TotalArticles     int `json:"total_articles"`
	ClusteredArticles int `json:"clustered_articles"`
	PendingEmbeddings int `json:"pending_embeddings"`
	FailedEmbeddings  int `json:"failed_embeddings"`
	TotalEvents       int `json:"total_events"`
	ActiveEvents      int `json:"active_events"`
	StaleEvents       int `json:"stale_events"`
}
