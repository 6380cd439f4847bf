package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/newslens/newslens/internal/engine"
	"github.com/newslens/newslens/internal/storage"
	"github.com/newslens/newslens/pkg/types"
)

// ClusterRunner is the slice of the clustering engine the API layer needs.
type ClusterRunner interface {
	TryClusterArticles(ctx context.Context) (*engine.PassSummary, error)
	ReclusterEvent(ctx context.Context, eventID string) error
}

// APIHandlers serves the read-side API plus article ingest.
type APIHandlers struct {
	store   storage.Store
	cluster ClusterRunner
}

// NewAPIHandlers creates the API handler set. cluster may be nil, in which
// case the clustering trigger endpoints return 503.
func NewAPIHandlers(store storage.Store, cluster ClusterRunner) *APIHandlers {
	return &APIHandlers{store: store, cluster: cluster}
}

// ListEvents handles GET /api/events.
// Query params: page, limit, status (active|stale|archived).
func (h *APIHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 20),
		Status: r.URL.Query().Get("status"),
	}
	if opts.Status != "" && !types.ValidEventStatuses[types.EventStatus(opts.Status)] {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", opts.Status), nil)
		return
	}

	result, err := h.store.ListEvents(r.Context(), opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list events", err)
		return
	}

	pages := result.Total / result.Limit
	if result.Total%result.Limit != 0 {
		pages++
	}
	respondJSON(w, http.StatusOK, EventListResponse{
		Events: result.Items,
		Total:  result.Total,
		Page:   result.Page,
		Pages:  pages,
	})
}

// GetEvent handles GET /api/events/{id} - the event and its member articles.
func (h *APIHandlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "event ID is required", nil)
		return
	}

	event, err := h.store.GetEvent(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "event not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get event", err)
		return
	}

	articles, err := h.store.EventArticles(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load event articles", err)
		return
	}

	// The centroid is an internal quantity; strip it from the response.
	event.Centroid = nil
	for _, a := range articles {
		a.Embedding = nil
	}
	respondJSON(w, http.StatusOK, EventDetailResponse{Event: event, Articles: articles})
}

// ReclusterEvent handles POST /api/events/{id}/recluster - recompute the
// event centroid from its members.
func (h *APIHandlers) ReclusterEvent(w http.ResponseWriter, r *http.Request) {
	if h.cluster == nil {
		respondError(w, http.StatusServiceUnavailable, "clustering engine not available", nil)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "event ID is required", nil)
		return
	}

	if err := h.cluster.ReclusterEvent(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "recluster failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "event_id": id})
}

// TriggerClusterPass handles POST /api/cluster - run a clustering pass now.
// Returns 409 when a pass is already running.
func (h *APIHandlers) TriggerClusterPass(w http.ResponseWriter, r *http.Request) {
	if h.cluster == nil {
		respondError(w, http.StatusServiceUnavailable, "clustering engine not available", nil)
		return
	}

	summary, err := h.cluster.TryClusterArticles(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "clustering pass failed", err)
		return
	}
	if summary == nil {
		respondError(w, http.StatusConflict, "a clustering pass is already running", nil)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// GetArticle handles GET /api/articles/{id}.
func (h *APIHandlers) GetArticle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "article ID is required", nil)
		return
	}

	article, err := h.store.GetArticle(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "article not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get article", err)
		return
	}

	article.Embedding = nil
	respondJSON(w, http.StatusOK, article)
}

// IngestArticles handles POST /api/articles - accept a batch of articles for
// embedding and clustering. Articles without a detected language fall back to
// their outlet's declared language. Articles are deduplicated by URL at the
// storage layer; a conflicting URL fails that article only.
func (h *APIHandlers) IngestArticles(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}
	if len(req.Articles) == 0 {
		respondError(w, http.StatusBadRequest, "articles are required", nil)
		return
	}

	resp := IngestResponse{}
	for _, in := range req.Articles {
		if in.Title == "" || in.URL == "" {
			continue
		}
		article := &types.Article{
			ID:       uuid.NewString(),
			OutletID: in.OutletID,
			Title:    in.Title,
			URL:      in.URL,
			Content:  in.Content,
			Language: in.Language,
		}
		if in.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, in.PublishedAt); err == nil {
				article.PublishedAt = &t
			}
		}
		if article.Language == "" && article.OutletID != "" {
			if outlet, err := h.store.GetOutlet(r.Context(), article.OutletID); err == nil {
				article.Language = outlet.Language
			}
		}
		if err := h.store.StoreArticle(r.Context(), article); err != nil {
			log.Printf("handlers: WARNING failed to ingest article %q: %v", in.URL, err)
			continue
		}
		resp.Accepted++
		resp.IDs = append(resp.IDs, article.ID)
	}

	respondJSON(w, http.StatusAccepted, resp)
}

// GetStats handles GET /api/stats - aggregate article and event counts.
func (h *APIHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load stats", err)
		return
	}
	respondJSON(w, http.StatusOK, toStatsResponse(stats))
}

// queryInt parses an integer query parameter with a fallback.
func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; just log.
		log.Printf("handlers: failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}

	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}

	respondJSON(w, statusCode, errResp)
}
