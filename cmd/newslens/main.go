package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newslens/newslens/internal/config"
	"github.com/newslens/newslens/internal/engine"
	"github.com/newslens/newslens/internal/llm"
	"github.com/newslens/newslens/internal/scheduler"
	"github.com/newslens/newslens/internal/server"
	"github.com/newslens/newslens/internal/storage"
	"github.com/newslens/newslens/internal/storage/postgres"
	"github.com/newslens/newslens/internal/storage/sqlite"
)

func main() {
	outletsPath := flag.String("outlets", "", "Path to outlet registry YAML (overrides NEWSLENS_OUTLETS_PATH)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *outletsPath != "" {
		cfg.Storage.OutletsPath = *outletsPath
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sync the outlet registry into the store at startup.
	outlets, err := config.LoadOutlets(cfg.Storage.OutletsPath)
	if err != nil {
		log.Fatalf("Failed to load outlet registry: %v", err)
	}
	for i := range outlets {
		if err := store.UpsertOutlet(ctx, &outlets[i]); err != nil {
			log.Fatalf("Failed to register outlet %s: %v", outlets[i].ID, err)
		}
	}
	if len(outlets) > 0 {
		log.Printf("Registered %d outlets from %s", len(outlets), cfg.Storage.OutletsPath)
	}

	factoryCfg := llm.FactoryConfig{
		Provider:       cfg.Embedding.Provider,
		APIKey:         cfg.Embedding.OpenAIAPIKey,
		Model:          providerModel(cfg),
		MaxConcurrent:  cfg.Embedding.MaxConcurrent,
		RequestsPerSec: cfg.Embedding.RequestsPerSec,
	}
	if cfg.Embedding.Provider != "openai" {
		factoryCfg.BaseURL = cfg.Embedding.OllamaURL
	}
	generator, err := llm.NewEmbeddingGenerator(factoryCfg)
	if err != nil {
		log.Fatalf("Failed to initialize embedding provider: %v", err)
	}
	log.Printf("Embedding provider: %s (model %s)", cfg.Embedding.Provider, generator.GetModel())

	engineCfg := engine.Config{
		SameLanguageThreshold:  cfg.Clustering.SameLanguageThreshold,
		CrossLanguageThreshold: cfg.Clustering.CrossLanguageThreshold,
		MaxEventAgeDays:        cfg.Clustering.MaxEventAgeDays,
		ArticleWindowHours:     cfg.Clustering.ArticleWindowHours,
		EmbeddingWorkers:       cfg.Embedding.MaxConcurrent,
		EmbeddingBatchSize:     cfg.Embedding.BatchSize,
		EmbeddingMaxAttempts:   cfg.Embedding.MaxAttempts,
	}
	clusterEngine := engine.NewClusterEngine(store, engineCfg)
	embedder := engine.NewEmbedder(store, generator, engineCfg)

	addr, wsHub := server.Start(ctx, cfg, store, clusterEngine)
	log.Printf("NewsLens API running at http://%s", addr)

	// Broadcast pass summaries to WebSocket subscribers.
	clusterEngine.SetPassCallback(func(summary *engine.PassSummary) {
		wsHub.Broadcast(map[string]interface{}{
			"type":    "cluster_pass",
			"summary": summary,
		})
	})

	sched := scheduler.New(clusterEngine, embedder, scheduler.Config{
		ClusterInterval:   cfg.Scheduler.ClusterInterval,
		EmbeddingInterval: cfg.Scheduler.EmbeddingInterval,
		StaleInterval:     cfg.Scheduler.StaleInterval,
	})
	sched.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	sched.Stop()
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.StorageEngine {
	case "postgres":
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	default:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, err
		}
		return sqlite.NewStore(cfg.Storage.DataPath + "/newslens.db")
	}
}

// providerModel picks the model name for the configured provider.
func providerModel(cfg *config.Config) string {
	if cfg.Embedding.Provider == "openai" {
		return cfg.Embedding.OpenAIModel
	}
	return cfg.Embedding.OllamaModel
}
