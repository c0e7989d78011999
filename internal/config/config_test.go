package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 9190, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, 5, cfg.Retrieval.SimilarityTopK)
	assert.Equal(t, 0.3, cfg.Retrieval.VectorDistanceThreshold)
	assert.Equal(t, 4000, cfg.Retrieval.MaxTokens)
	assert.Equal(t, "gpt-4", cfg.Retrieval.Model)

	assert.Equal(t, 500, cfg.Chunking.WindowWords)
	assert.Equal(t, 50, cfg.Chunking.OverlapWords)

	assert.Equal(t, 24*time.Hour, cfg.Reindex.Interval)
	assert.Equal(t, 0.01, cfg.Reindex.SLAThreshold)
	assert.Equal(t, 100, cfg.Reindex.AvgTokensPerVector)
	assert.Equal(t, 0.00002, cfg.Reindex.CostPer1KTokens)
	assert.Equal(t, "text-embedding-3-small", cfg.Reindex.EmbeddingModel)
	assert.Equal(t, 30, cfg.Reindex.HistoryLimit)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 8080
retrieval:
  similarity_top_k: 10
  vector_distance_threshold: 0.5
chunking:
  window_words: 200
  overlap_words: 20
`)
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Retrieval.SimilarityTopK)
	assert.Equal(t, 0.5, cfg.Retrieval.VectorDistanceThreshold)
	assert.Equal(t, 200, cfg.Chunking.WindowWords)
	assert.Equal(t, 20, cfg.Chunking.OverlapWords)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"bad top k", func(c *Config) { c.Retrieval.SimilarityTopK = 0 }, "similarity_top_k"},
		{"bad threshold", func(c *Config) { c.Retrieval.VectorDistanceThreshold = 1.5 }, "vector_distance_threshold"},
		{"overlap too large", func(c *Config) { c.Chunking.OverlapWords = 500 }, "overlap_words"},
		{"bad sla", func(c *Config) { c.Reindex.SLAThreshold = 2 }, "sla_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			applyDefaults(&cfg)
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("super-secret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "super-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}
