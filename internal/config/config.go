// Package config provides configuration loading for ragd.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. Defaults cover a working single-corpus deployment.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete ragd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Chunking   ChunkingConfig   `koanf:"chunking"`
	Generation GenerationConfig `koanf:"generation"`
	Reindex    ReindexConfig    `koanf:"reindex"`
	Storage    StorageConfig    `koanf:"storage"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CronSecret authorizes scheduled reindex triggers over HTTP.
	// Empty disables the check.
	CronSecret Secret `koanf:"cron_secret"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// RetrievalConfig holds similarity retrieval configuration.
// Immutable once the engine is constructed.
type RetrievalConfig struct {
	// SimilarityTopK bounds the number of chunks any retrieval returns.
	SimilarityTopK int `koanf:"similarity_top_k"`

	// VectorDistanceThreshold is the minimum similarity score in [0,1]
	// a chunk must reach to be retrieved.
	VectorDistanceThreshold float64 `koanf:"vector_distance_threshold"`

	// MaxTokens is the generation budget passed to the provider.
	MaxTokens int `koanf:"max_tokens"`

	// Model is the generation model identifier.
	Model string `koanf:"model"`
}

// ChunkingConfig holds document chunking parameters.
type ChunkingConfig struct {
	WindowWords  int `koanf:"window_words"`
	OverlapWords int `koanf:"overlap_words"`
}

// GenerationConfig holds external provider configuration.
type GenerationConfig struct {
	BaseURL string        `koanf:"base_url"`
	APIKey  Secret        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// ReindexConfig holds reindex pipeline configuration.
type ReindexConfig struct {
	// Interval between scheduled runs.
	Interval time.Duration `koanf:"interval"`

	// SLAThreshold is the maximum acceptable stale document rate.
	SLAThreshold float64 `koanf:"sla_threshold"`

	// AvgTokensPerVector and CostPer1KTokens parameterize the embedding
	// cost estimate: vectors * avg / 1000 * cost.
	AvgTokensPerVector int     `koanf:"avg_tokens_per_vector"`
	CostPer1KTokens    float64 `koanf:"cost_per_1k_tokens"`

	// EmbeddingModel is recorded in job metadata and cost estimates.
	EmbeddingModel string `koanf:"embedding_model"`

	// Version tags each job with the pipeline version.
	Version string `koanf:"version"`

	// HistoryLimit bounds job reads for status and cost rollups.
	HistoryLimit int `koanf:"history_limit"`
}

// StorageConfig holds durable storage configuration.
type StorageConfig struct {
	// DataDir is the directory for the SQLite job store and usage ledger.
	// Empty defaults to ~/.ragd/data.
	DataDir string `koanf:"data_dir"`
}

// TelemetryConfig holds OpenTelemetry export configuration. Disabled by
// default; deployments without a collector lose nothing.
type TelemetryConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Endpoint       string        `koanf:"endpoint"`
	Protocol       string        `koanf:"protocol"` // grpc or http/protobuf
	ServiceName    string        `koanf:"service_name"`
	ServiceVersion string        `koanf:"service_version"`
	TLS            bool          `koanf:"tls"` // false uses an insecure connection
	SampleRate     float64       `koanf:"sample_rate"`
	ExportInterval time.Duration `koanf:"export_interval"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Retrieval.SimilarityTopK <= 0 {
		return fmt.Errorf("similarity_top_k must be positive, got %d", c.Retrieval.SimilarityTopK)
	}
	if c.Retrieval.VectorDistanceThreshold < 0 || c.Retrieval.VectorDistanceThreshold > 1 {
		return fmt.Errorf("vector_distance_threshold must be in [0,1], got %v", c.Retrieval.VectorDistanceThreshold)
	}
	if c.Retrieval.MaxTokens <= 0 {
		return errors.New("max_tokens must be positive")
	}
	if c.Chunking.WindowWords <= 0 {
		return fmt.Errorf("window_words must be positive, got %d", c.Chunking.WindowWords)
	}
	if c.Chunking.OverlapWords < 0 || c.Chunking.OverlapWords >= c.Chunking.WindowWords {
		return fmt.Errorf("overlap_words must be in [0, window_words), got %d", c.Chunking.OverlapWords)
	}
	if c.Generation.Timeout <= 0 {
		return errors.New("generation timeout must be positive")
	}
	if c.Reindex.Interval <= 0 {
		return errors.New("reindex interval must be positive")
	}
	if c.Reindex.SLAThreshold <= 0 || c.Reindex.SLAThreshold > 1 {
		return fmt.Errorf("sla_threshold must be in (0,1], got %v", c.Reindex.SLAThreshold)
	}
	if c.Reindex.AvgTokensPerVector <= 0 {
		return errors.New("avg_tokens_per_vector must be positive")
	}
	if c.Reindex.CostPer1KTokens < 0 {
		return errors.New("cost_per_1k_tokens cannot be negative")
	}
	if c.Reindex.HistoryLimit <= 0 {
		return errors.New("history_limit must be positive")
	}
	if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
		return fmt.Errorf("telemetry protocol must be grpc or http/protobuf, got %q", c.Telemetry.Protocol)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample_rate must be in [0,1], got %v", c.Telemetry.SampleRate)
	}
	if c.Telemetry.ExportInterval <= 0 {
		return errors.New("telemetry export_interval must be positive")
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9190
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	// Retrieval defaults match the original corpus deployment.
	if cfg.Retrieval.SimilarityTopK == 0 {
		cfg.Retrieval.SimilarityTopK = 5
	}
	if cfg.Retrieval.VectorDistanceThreshold == 0 {
		cfg.Retrieval.VectorDistanceThreshold = 0.3
	}
	if cfg.Retrieval.MaxTokens == 0 {
		cfg.Retrieval.MaxTokens = 4000
	}
	if cfg.Retrieval.Model == "" {
		cfg.Retrieval.Model = "gpt-4"
	}

	if cfg.Chunking.WindowWords == 0 {
		cfg.Chunking.WindowWords = 500
	}
	if cfg.Chunking.OverlapWords == 0 {
		cfg.Chunking.OverlapWords = 50
	}

	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 30 * time.Second
	}

	if cfg.Reindex.Interval == 0 {
		cfg.Reindex.Interval = 24 * time.Hour
	}
	if cfg.Reindex.SLAThreshold == 0 {
		cfg.Reindex.SLAThreshold = 0.01
	}
	if cfg.Reindex.AvgTokensPerVector == 0 {
		cfg.Reindex.AvgTokensPerVector = 100
	}
	if cfg.Reindex.CostPer1KTokens == 0 {
		cfg.Reindex.CostPer1KTokens = 0.00002
	}
	if cfg.Reindex.EmbeddingModel == "" {
		cfg.Reindex.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Reindex.Version == "" {
		cfg.Reindex.Version = "1.1.0"
	}
	if cfg.Reindex.HistoryLimit == 0 {
		cfg.Reindex.HistoryLimit = 30
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "ragd"
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = "0.1.0"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 15 * time.Second
	}
}
