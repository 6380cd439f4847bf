package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/newslens/newslens/internal/similarity"
)

// MarkStaleEvents retires active events that have not received a new article
// within the configured age limit. Returns the number of events retired.
// Serialised with clustering passes: a sweep that demoted an event while a
// pass still held it as a candidate would race the assignment writes.
func (e *ClusterEngine) MarkStaleEvents(ctx context.Context) (int, error) {
	e.passMu.Lock()
	defer e.passMu.Unlock()

	cutoff := time.Now().Add(-time.Duration(e.config.MaxEventAgeDays) * 24 * time.Hour)
	n, err := e.store.MarkStaleEvents(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("engine: staleness sweep: %w", err)
	}
	if n > 0 {
		log.Printf("engine: marked %d events stale (idle since %s)", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// ReclusterEvent recomputes an event's centroid from scratch over its member
// embeddings. The incremental update accumulates no floating-point drift in
// normal operation, but a recompute is the recovery path after manual member
// edits or a model migration. Serialised with clustering passes.
func (e *ClusterEngine) ReclusterEvent(ctx context.Context, eventID string) error {
	e.passMu.Lock()
	defer e.passMu.Unlock()

	embeddings, err := e.store.EventMemberEmbeddings(ctx, eventID)
	if err != nil {
		return fmt.Errorf("engine: failed to load member embeddings: %w", err)
	}
	if len(embeddings) == 0 {
		// Best-effort repair path: callers invoke it speculatively, so an
		// empty event is not an error.
		log.Printf("engine: WARNING recluster of event %s skipped: no embedded members", eventID)
		return nil
	}

	centroid, err := similarity.Centroid(embeddings)
	if err != nil {
		return fmt.Errorf("engine: centroid recompute: %w", err)
	}

	if err := e.store.ResetEventCentroid(ctx, eventID, centroid, len(embeddings)); err != nil {
		return fmt.Errorf("engine: failed to reset centroid: %w", err)
	}

	log.Printf("engine: reclustered event %s over %d members", eventID, len(embeddings))
	return nil
}
