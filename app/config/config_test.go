package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_MatchesDocumentedWeights(t *testing.T) {
	cfg := Default()

	w := cfg.Similarity.Weights
	assert.InDelta(t, 1.0, w.Semantic+w.Geographic+w.Textual+w.Hierarchical, 1e-9)

	a := cfg.Pipeline.Aggregation
	assert.InDelta(t, 1.0, a.Validation+a.Parsing+a.Correction+a.BestCandidate, 1e-9)

	h := cfg.Similarity.HierarchyWeights
	assert.InDelta(t, 1.0, h.Province+h.District+h.Neighborhood+h.Street+h.BuildingNumber+h.ApartmentNumber, 1e-9)

	assert.Equal(t, 20, cfg.Pipeline.CandidateLimit)
	assert.Equal(t, 5, cfg.Pipeline.TopK)
	assert.Equal(t, 10, cfg.Pipeline.BatchConcurrency)
	assert.Equal(t, 0.8, cfg.Cluster.Threshold)
	assert.NoError(t, cfg.Validate())
}

func TestRead_OverlaysFileOnDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resolver.yaml")
	body := `
validation:
  mode: strict
pipeline:
  top_k: 3
  store_timeout: 750ms
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, ModeStrict, cfg.Validation.Mode)
	assert.Equal(t, 3, cfg.Pipeline.TopK)
	assert.Equal(t, 750*time.Millisecond, cfg.Pipeline.StoreTimeout)
	// untouched keys keep their defaults
	assert.Equal(t, 20, cfg.Pipeline.CandidateLimit)
	assert.Equal(t, 0.4, cfg.Similarity.Weights.Semantic)
}

func TestRead_EnvOverrides(t *testing.T) {
	t.Setenv("BATCH_CONCURRENCY", "4")
	t.Setenv("VALIDATION_MODE", "strict")

	cfg, err := Read("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Pipeline.BatchConcurrency)
	assert.Equal(t, ModeStrict, cfg.Validation.Mode)
}

func TestValidate_RejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ResolverCfg)
	}{
		{"unknown mode", func(c *ResolverCfg) { c.Validation.Mode = "loose" }},
		{"zero concurrency", func(c *ResolverCfg) { c.Pipeline.BatchConcurrency = 0 }},
		{"threshold above one", func(c *ResolverCfg) { c.Similarity.MatchThreshold = 1.5 }},
		{"zero top k", func(c *ResolverCfg) { c.Pipeline.TopK = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRead_SampleFileMatchesDefaults(t *testing.T) {
	cfg, err := Read(filepath.Join("..", "..", "config", "resolver.yaml"))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadApp_DefaultsAndEnv(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("CACHE_DRIVER", "redis")

	cfg, err := LoadApp()

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 2*time.Second, cfg.Store.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.True(t, cfg.HTTP.Gzip)
	assert.Equal(t, "resolver:jobs", cfg.QueueName)
}
