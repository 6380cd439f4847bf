// Package scheduler drives the background jobs: embedding backfill,
// clustering passes, and the staleness sweep.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/newslens/newslens/internal/engine"
)

// Config holds the job intervals.
type Config struct {
	ClusterInterval   time.Duration
	EmbeddingInterval time.Duration
	StaleInterval     time.Duration
}

// Scheduler runs the periodic jobs until its context is cancelled. Each job
// runs on its own ticker; clustering uses the engine's non-blocking entry
// point so a slow pass is skipped rather than queued.
type Scheduler struct {
	clusterer *engine.ClusterEngine
	embedder  *engine.Embedder
	config    Config

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a scheduler over the given engine and embedder. Zero intervals
// disable the corresponding job.
func New(clusterer *engine.ClusterEngine, embedder *engine.Embedder, config Config) *Scheduler {
	return &Scheduler{clusterer: clusterer, embedder: embedder, config: config}
}

// Start launches the job goroutines. Call Stop to shut them down.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	if s.embedder != nil && s.config.EmbeddingInterval > 0 {
		s.run(ctx, "embedding backfill", s.config.EmbeddingInterval, func(ctx context.Context) error {
			_, err := s.embedder.RunBackfill(ctx)
			return err
		})
	}

	if s.clusterer != nil && s.config.ClusterInterval > 0 {
		s.run(ctx, "clustering", s.config.ClusterInterval, func(ctx context.Context) error {
			summary, err := s.clusterer.TryClusterArticles(ctx)
			if err == nil && summary == nil {
				log.Printf("scheduler: clustering pass still running, skipped tick")
			}
			return err
		})
	}

	if s.clusterer != nil && s.config.StaleInterval > 0 {
		// The sweep shares the engine's pass lock, so a tick that lands
		// mid-pass waits for the pass instead of racing it.
		s.run(ctx, "staleness sweep", s.config.StaleInterval, func(ctx context.Context) error {
			_, err := s.clusterer.MarkStaleEvents(ctx)
			return err
		})
	}
}

// Stop cancels the jobs and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// run spawns one ticker-driven job goroutine. The first run happens after
// one full interval, not at startup, so a restart loop can't hammer the
// embedding provider.
func (s *Scheduler) run(ctx context.Context, name string, interval time.Duration, job func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Printf("scheduler: %s job started (every %v)", name, interval)
		for {
			select {
			case <-ctx.Done():
				log.Printf("scheduler: %s job stopped", name)
				return
			case <-ticker.C:
				if err := job(ctx); err != nil && ctx.Err() == nil {
					log.Printf("scheduler: ERROR %s job: %v", name, err)
				}
			}
		}
	}()
}
