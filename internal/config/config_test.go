package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerr "github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/errors"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.True(t, cfg.Chunking.Enabled)
	assert.Equal(t, 1000, cfg.Chunking.MaxSize)
	assert.Equal(t, 200, cfg.Chunking.MinSize)
	assert.Equal(t, 100, cfg.Chunking.Overlap)

	assert.Equal(t, 3, cfg.Retrieval.NResults)
	assert.True(t, cfg.Retrieval.CombineChunks)
	assert.Equal(t, 1.0, cfg.Retrieval.VectorWeight)
	assert.Equal(t, 1.0, cfg.Retrieval.LexicalWeight)
	assert.Equal(t, 0, cfg.Retrieval.RRFConstant)

	assert.False(t, cfg.WebSearch.Enabled)
	assert.Equal(t, 5, cfg.WebSearch.ResultsCount)

	require.NoError(t, cfg.Validate())
}

func TestValidate_OverlapMustBeSmallerThanMaxSize(t *testing.T) {
	tests := []struct {
		name    string
		overlap int
		maxSize int
		wantErr bool
	}{
		{"overlap below max", 100, 1000, false},
		{"overlap equals max", 1000, 1000, true},
		{"overlap above max", 1200, 1000, true},
		{"zero overlap", 0, 1000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.Chunking.Overlap = tt.overlap
			cfg.Chunking.MaxSize = tt.maxSize
			cfg.Chunking.MinSize = 1

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ragerr.IsFatal(err))
				assert.Equal(t, ragerr.ErrCodeConfigInvalid, ragerr.GetCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_RejectsBadWeights(t *testing.T) {
	cfg := NewConfig()
	cfg.Retrieval.VectorWeight = 0
	cfg.Retrieval.LexicalWeight = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeConfigInvalid, ragerr.GetCode(err))
}

func TestValidate_RejectsUnknownVectorBackend(t *testing.T) {
	cfg := NewConfig()
	cfg.Stores.VectorBackend = "pinecone"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_102_CONFIG_INVALID")
}

func TestLoad_YAMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
chunking:
  enabled: true
  max_size: 500
  min_size: 50
  overlap: 25
retrieval:
  n_results: 10
  combine_chunks: false
  timeout: 5s
embeddings:
  model: mxbai-embed-large
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ragcore.yaml"), []byte(yamlContent), 0o644))

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Chunking.MaxSize)
	assert.Equal(t, 50, cfg.Chunking.MinSize)
	assert.Equal(t, 25, cfg.Chunking.Overlap)
	assert.Equal(t, 10, cfg.Retrieval.NResults)
	assert.False(t, cfg.Retrieval.CombineChunks)
	assert.Equal(t, 5*time.Second, cfg.Retrieval.Timeout)
	assert.Equal(t, "mxbai-embed-large", cfg.Embeddings.Model)

	// Untouched sections keep defaults
	assert.Equal(t, "hnsw", cfg.Stores.VectorBackend)
	assert.Equal(t, 5, cfg.WebSearch.ResultsCount)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Chunking.MaxSize)
}

func TestLoad_InvalidFileFailsFast(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
chunking:
  enabled: true
  max_size: 100
  min_size: 10
  overlap: 100
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ragcore.yaml"), []byte(yamlContent), 0o644))

	_, err := Load(dir, "")
	require.Error(t, err)
	assert.True(t, ragerr.IsFatal(err))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RAGCORE_N_RESULTS", "7")
	t.Setenv("RAGCORE_WEB_SEARCH", "true")
	t.Setenv("RAGCORE_SERPER_API_KEY", "test-key")

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Retrieval.NResults)
	assert.True(t, cfg.WebSearch.Enabled)
	assert.True(t, cfg.WebSearchAvailable())
}

func TestWebSearchAvailable_RequiresCredential(t *testing.T) {
	cfg := NewConfig()
	cfg.WebSearch.Enabled = true
	cfg.WebSearch.APIKey = ""

	assert.False(t, cfg.WebSearchAvailable(), "enabled without credential stays off")

	cfg.WebSearch.APIKey = "key"
	assert.True(t, cfg.WebSearchAvailable())
}
