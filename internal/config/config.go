// Package config provides configuration management for NewsLens.
// It loads settings from environment variables with the NEWSLENS_ prefix
// and provides sensible defaults for all configuration options.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration settings for the NewsLens application.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Embedding  EmbeddingConfig
	Clustering ClusteringConfig
	Scheduler  SchedulerConfig
	Security   SecurityConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 7373)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: sqlite, postgres (default: sqlite)
	DataPath      string // Path to data directory for SQLite (default: ./data)
	PostgresDSN   string // PostgreSQL connection string (required when engine is postgres)
	OutletsPath   string // Path to the YAML outlet registry (default: ./outlets.yaml)
}

// EmbeddingConfig contains embedding provider configuration.
type EmbeddingConfig struct {
	Provider       string  // Embedding provider: openai, ollama (default: ollama)
	OpenAIAPIKey   string  // OpenAI API key
	OpenAIModel    string  // OpenAI embedding model (default: text-embedding-3-small)
	OllamaURL      string  // Ollama API URL (default: http://localhost:11434)
	OllamaModel    string  // Ollama embedding model (default: nomic-embed-text)
	MaxConcurrent  int     // Max in-flight embedding requests (default: 3)
	RequestsPerSec float64 // Optional request pacing, 0 disables (default: 0)
	BatchSize      int     // Articles per backfill pass (default: 50)
	MaxAttempts    int     // Attempts before an article is marked failed (default: 5)
}

// ClusteringConfig contains the clustering engine's thresholds and windows.
type ClusteringConfig struct {
	SameLanguageThreshold  float64 // Minimum cosine similarity within a language (default: 0.80)
	CrossLanguageThreshold float64 // Minimum cosine similarity across languages (default: 0.75)
	MaxEventAgeDays        int     // Events idle longer than this go stale (default: 7)
	ArticleWindowHours     int     // Only articles fetched within this window are clustered (default: 48)
}

// SchedulerConfig contains background job intervals.
type SchedulerConfig struct {
	ClusterInterval   time.Duration // Interval between clustering passes (default: 5m)
	EmbeddingInterval time.Duration // Interval between embedding backfill passes (default: 1m)
	StaleInterval     time.Duration // Interval between staleness sweeps (default: 1h)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // Security mode: development, production (default: development)
	APIToken     string // API authentication token
}

// LoadConfig loads configuration from environment variables with sensible defaults.
// All environment variables use the NEWSLENS_ prefix.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("NEWSLENS_PORT", 7373),
			Host: getEnv("NEWSLENS_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			StorageEngine: getEnv("NEWSLENS_STORAGE_ENGINE", "sqlite"),
			DataPath:      getEnv("NEWSLENS_DATA_PATH", "./data"),
			PostgresDSN:   getEnv("NEWSLENS_POSTGRES_DSN", ""),
			OutletsPath:   getEnv("NEWSLENS_OUTLETS_PATH", "./outlets.yaml"),
		},
		Embedding: EmbeddingConfig{
			Provider:       getEnv("NEWSLENS_EMBEDDING_PROVIDER", "ollama"),
			OpenAIAPIKey:   getEnv("NEWSLENS_OPENAI_API_KEY", ""),
			OpenAIModel:    getEnv("NEWSLENS_OPENAI_MODEL", "text-embedding-3-small"),
			OllamaURL:      getEnv("NEWSLENS_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:    getEnv("NEWSLENS_OLLAMA_MODEL", "nomic-embed-text"),
			MaxConcurrent:  getEnvInt("NEWSLENS_EMBEDDING_CONCURRENCY", 3),
			RequestsPerSec: getEnvFloat("NEWSLENS_EMBEDDING_RPS", 0),
			BatchSize:      getEnvInt("NEWSLENS_EMBEDDING_BATCH_SIZE", 50),
			MaxAttempts:    getEnvInt("NEWSLENS_EMBEDDING_MAX_ATTEMPTS", 5),
		},
		Clustering: ClusteringConfig{
			SameLanguageThreshold:  getEnvFloat("NEWSLENS_SAME_LANGUAGE_THRESHOLD", 0.80),
			CrossLanguageThreshold: getEnvFloat("NEWSLENS_CROSS_LANGUAGE_THRESHOLD", 0.75),
			MaxEventAgeDays:        getEnvInt("NEWSLENS_MAX_EVENT_AGE_DAYS", 7),
			ArticleWindowHours:     getEnvInt("NEWSLENS_ARTICLE_WINDOW_HOURS", 48),
		},
		Scheduler: SchedulerConfig{
			ClusterInterval:   getEnvDuration("NEWSLENS_CLUSTER_INTERVAL", 5*time.Minute),
			EmbeddingInterval: getEnvDuration("NEWSLENS_EMBEDDING_INTERVAL", time.Minute),
			StaleInterval:     getEnvDuration("NEWSLENS_STALE_INTERVAL", time.Hour),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("NEWSLENS_SECURITY_MODE", "development"),
			APIToken:     getEnv("NEWSLENS_API_TOKEN", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that can't be expressed as defaults.
func (c *Config) Validate() error {
	if c.Storage.StorageEngine == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("config: NEWSLENS_POSTGRES_DSN is required when storage engine is postgres")
	}
	if c.Clustering.SameLanguageThreshold < -1 || c.Clustering.SameLanguageThreshold > 1 {
		return fmt.Errorf("config: same-language threshold %v outside [-1, 1]", c.Clustering.SameLanguageThreshold)
	}
	if c.Clustering.CrossLanguageThreshold < -1 || c.Clustering.CrossLanguageThreshold > 1 {
		return fmt.Errorf("config: cross-language threshold %v outside [-1, 1]", c.Clustering.CrossLanguageThreshold)
	}
	if c.Security.SecurityMode == "production" && c.Security.APIToken == "" {
		return fmt.Errorf("config: NEWSLENS_API_TOKEN is required in production mode")
	}
	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (e.g. "5m", "1h")
// or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
