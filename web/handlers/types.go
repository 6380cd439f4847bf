// Package handlers provides HTTP handlers and middleware for the NewsLens API.
package handlers

import (
	"github.com/newslens/newslens/internal/storage"
	"github.com/newslens/newslens/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// EventListResponse is the response format for GET /api/events.
type EventListResponse struct {
	Events []*types.Event `json:"events"`
	Total  int            `json:"total"`
	Page   int            `json:"page"`
	Pages  int            `json:"pages"`
}

// EventDetailResponse is the response format for GET /api/events/{id}.
// The centroid is omitted; it is an internal quantity with no read-side use.
type EventDetailResponse struct {
	Event    *types.Event     `json:"event"`
	Articles []*types.Article `json:"articles,omitempty"`
}

// StatsResponse is the response format for GET /api/stats.
type StatsResponse struct {
	Articles struct {
		Total             int `json:"total"`
		Clustered         int `json:"clustered"`
		PendingEmbeddings int `json:"pending_embeddings"`
		FailedEmbeddings  int `json:"failed_embeddings"`
	} `json:"articles"`
	Events struct {
		Total  int `json:"total"`
		Active int `json:"active"`
		Stale  int `json:"stale"`
	} `json:"events"`
}

// IngestRequest is the request format for POST /api/articles.
type IngestRequest struct {
	Articles []IngestArticle `json:"articles"`
}

// IngestArticle is a single article to ingest.
type IngestArticle struct {
	OutletID    string `json:"outlet_id,omitempty"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content,omitempty"`
	Language    string `json:"language,omitempty"`
	PublishedAt string `json:"published_at,omitempty"` // RFC 3339
}

// IngestResponse is the response format for POST /api/articles.
type IngestResponse struct {
	Accepted int      `json:"accepted"`
	IDs      []string `json:"ids"`
}

func toStatsResponse(s *storage.Stats) StatsResponse {
	var resp StatsResponse
	resp.Articles.Total = s.TotalArticles
	resp.Articles.Clustered = s.ClusteredArticles
	resp.Articles.PendingEmbeddings = s.PendingEmbeddings
	resp.Articles.FailedEmbeddings = s.FailedEmbeddings
	resp.Events.Total = s.TotalEvents
	resp.Events.Active = s.ActiveEvents
	resp.Events.Stale = s.StaleEvents
	return resp
}
