// Package config loads and validates ragcore configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Config file (.ragcore.yaml in the working directory, or --config path)
//  3. Environment variables (RAGCORE_*)
//
// Validation happens once at load time. A configuration that could corrupt
// retrieval output (for example an overlap as large as the chunk size) is
// rejected here and never reaches query time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	ragerr "github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/errors"
)

// Config represents the complete ragcore configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Stores     StoresConfig     `yaml:"stores" json:"stores"`
	WebSearch  WebSearchConfig  `yaml:"web_search" json:"web_search"`
	Generation GenerationConfig `yaml:"generation" json:"generation"`
	Terms      TermsConfig      `yaml:"terms" json:"terms"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	LogLevel   string           `yaml:"log_level" json:"log_level"`
}

// ChunkingConfig configures document splitting.
type ChunkingConfig struct {
	// Enabled controls whether documents are split at all.
	// When false each document becomes a single chunk.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// MaxSize is the maximum chunk length in characters.
	MaxSize int `yaml:"max_size" json:"max_size"`

	// MinSize is the minimum chunk length in characters. Trailing fragments
	// shorter than this are merged into the previous chunk.
	MinSize int `yaml:"min_size" json:"min_size"`

	// Overlap is the number of characters repeated from the end of one
	// chunk at the start of the next. Must be smaller than MaxSize.
	Overlap int `yaml:"overlap" json:"overlap"`
}

// RetrievalConfig configures query-time behavior.
type RetrievalConfig struct {
	// NResults is the number of results returned to the caller.
	NResults int `yaml:"n_results" json:"n_results"`

	// CombineChunks merges retrieved chunks from the same document into a
	// single context block, deduplicating overlap.
	CombineChunks bool `yaml:"combine_chunks" json:"combine_chunks"`

	// VectorWeight and LexicalWeight are the per-source fusion weights.
	VectorWeight  float64 `yaml:"vector_weight" json:"vector_weight"`
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`

	// RRFConstant is the fusion smoothing parameter (k). Zero means pure
	// reciprocal rank; higher values reduce the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// Timeout bounds a single retrieval request end to end.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"` // 0 = auto-detect
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// StoresConfig configures the persistence backends.
type StoresConfig struct {
	// DataDir is the root directory for all on-disk state.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// VectorBackend selects the vector store implementation.
	// Options: "hnsw" (embedded, default) or "chroma" (remote HTTP).
	VectorBackend string `yaml:"vector_backend" json:"vector_backend"`

	// ChromaURL is the base URL of a Chroma-compatible server.
	// Only used when VectorBackend is "chroma".
	ChromaURL string `yaml:"chroma_url" json:"chroma_url"`

	// ChromaCollection is the collection name on the remote server.
	ChromaCollection string `yaml:"chroma_collection" json:"chroma_collection"`
}

// WebSearchConfig configures supplementary web search.
type WebSearchConfig struct {
	// Enabled allows the classifier to route queries to web search.
	// Web search is additionally disabled when APIKey is empty.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// ResultsCount is the number of web results to append.
	ResultsCount int `yaml:"results_count" json:"results_count"`

	// APIKey authenticates against the search provider. Usually supplied
	// via RAGCORE_SERPER_API_KEY rather than the config file.
	APIKey string `yaml:"api_key" json:"api_key"`

	// Endpoint is the search provider URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// GenerationConfig configures answer generation.
type GenerationConfig struct {
	Model      string        `yaml:"model" json:"model"`
	OllamaHost string        `yaml:"ollama_host" json:"ollama_host"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// TermsConfig configures domain term extraction.
type TermsConfig struct {
	// MaxTerms caps the size of the domain term snapshot.
	MaxTerms int `yaml:"max_terms" json:"max_terms"`

	// MinDocFreq is the minimum number of chunks a term must appear in.
	MinDocFreq int `yaml:"min_doc_freq" json:"min_doc_freq"`

	// UseLLM enables LLM-assisted extraction with statistical fallback.
	UseLLM bool `yaml:"use_llm" json:"use_llm"`
}

// WatchConfig configures the directory watcher.
type WatchConfig struct {
	// Dir is the corpus directory to watch for document changes.
	Dir string `yaml:"dir" json:"dir"`

	// Debounce is how long to wait after the last event before re-ingesting.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Chunking: ChunkingConfig{
			Enabled: true,
			MaxSize: 1000,
			MinSize: 200,
			Overlap: 100,
		},
		Retrieval: RetrievalConfig{
			NResults:      3,
			CombineChunks: true,
			VectorWeight:  1.0,
			LexicalWeight: 1.0,
			RRFConstant:   0,
			Timeout:       30 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			Model:      "nomic-embed-text",
			Dimensions: 0,
			BatchSize:  32,
			OllamaHost: "http://localhost:11434",
			CacheSize:  1000,
		},
		Stores: StoresConfig{
			DataDir:          defaultDataDir(),
			VectorBackend:    "hnsw",
			ChromaURL:        "http://localhost:8000",
			ChromaCollection: "documents",
		},
		WebSearch: WebSearchConfig{
			Enabled:      false,
			ResultsCount: 5,
			Endpoint:     "https://google.serper.dev/search",
		},
		Generation: GenerationConfig{
			Model:      "llama3.2",
			OllamaHost: "http://localhost:11434",
			Timeout:    2 * time.Minute,
		},
		Terms: TermsConfig{
			MaxTerms:   200,
			MinDocFreq: 2,
			UseLLM:     false,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		LogLevel: "info",
	}
}

// defaultDataDir returns the default on-disk state directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ragcore")
	}
	return filepath.Join(home, ".ragcore")
}

// Load loads configuration for the given directory.
// Explicit path overrides discovery when non-empty.
func Load(dir string, explicitPath string) (*Config, error) {
	cfg := NewConfig()

	if explicitPath != "" {
		if err := cfg.loadYAML(explicitPath); err != nil {
			return nil, err
		}
	} else if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromDir attempts to load configuration from .ragcore.yaml or .ragcore.yml.
func (c *Config) loadFromDir(dir string) error {
	yamlPath := filepath.Join(dir, ".ragcore.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".ragcore.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine, defaults apply
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ragerr.New(ragerr.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return ragerr.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
// Booleans with true defaults (chunking, combining) are merged through
// pointers on the wire in the explicit env overrides instead; a YAML file
// that sets them false must spell out the whole section.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Chunking: any non-zero numeric means the section was present, so the
	// enabled flag is taken as written.
	if other.Chunking.MaxSize != 0 || other.Chunking.MinSize != 0 || other.Chunking.Overlap != 0 {
		c.Chunking.Enabled = other.Chunking.Enabled
	}
	if other.Chunking.MaxSize != 0 {
		c.Chunking.MaxSize = other.Chunking.MaxSize
	}
	if other.Chunking.MinSize != 0 {
		c.Chunking.MinSize = other.Chunking.MinSize
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}

	if other.Retrieval.NResults != 0 {
		c.Retrieval.NResults = other.Retrieval.NResults
		c.Retrieval.CombineChunks = other.Retrieval.CombineChunks
	}
	if other.Retrieval.VectorWeight != 0 {
		c.Retrieval.VectorWeight = other.Retrieval.VectorWeight
	}
	if other.Retrieval.LexicalWeight != 0 {
		c.Retrieval.LexicalWeight = other.Retrieval.LexicalWeight
	}
	if other.Retrieval.RRFConstant != 0 {
		c.Retrieval.RRFConstant = other.Retrieval.RRFConstant
	}
	if other.Retrieval.Timeout != 0 {
		c.Retrieval.Timeout = other.Retrieval.Timeout
	}

	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Stores.DataDir != "" {
		c.Stores.DataDir = other.Stores.DataDir
	}
	if other.Stores.VectorBackend != "" {
		c.Stores.VectorBackend = other.Stores.VectorBackend
	}
	if other.Stores.ChromaURL != "" {
		c.Stores.ChromaURL = other.Stores.ChromaURL
	}
	if other.Stores.ChromaCollection != "" {
		c.Stores.ChromaCollection = other.Stores.ChromaCollection
	}

	if other.WebSearch.Enabled {
		c.WebSearch.Enabled = true
	}
	if other.WebSearch.ResultsCount != 0 {
		c.WebSearch.ResultsCount = other.WebSearch.ResultsCount
	}
	if other.WebSearch.APIKey != "" {
		c.WebSearch.APIKey = other.WebSearch.APIKey
	}
	if other.WebSearch.Endpoint != "" {
		c.WebSearch.Endpoint = other.WebSearch.Endpoint
	}

	if other.Generation.Model != "" {
		c.Generation.Model = other.Generation.Model
	}
	if other.Generation.OllamaHost != "" {
		c.Generation.OllamaHost = other.Generation.OllamaHost
	}
	if other.Generation.Timeout != 0 {
		c.Generation.Timeout = other.Generation.Timeout
	}

	if other.Terms.MaxTerms != 0 {
		c.Terms.MaxTerms = other.Terms.MaxTerms
	}
	if other.Terms.MinDocFreq != 0 {
		c.Terms.MinDocFreq = other.Terms.MinDocFreq
	}
	if other.Terms.UseLLM {
		c.Terms.UseLLM = true
	}

	if other.Watch.Dir != "" {
		c.Watch.Dir = other.Watch.Dir
	}
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// applyEnvOverrides applies RAGCORE_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RAGCORE_MAX_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunking.MaxSize = n
		}
	}
	if v := os.Getenv("RAGCORE_MIN_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunking.MinSize = n
		}
	}
	if v := os.Getenv("RAGCORE_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Chunking.Overlap = n
		}
	}
	if v := os.Getenv("RAGCORE_CHUNKING_ENABLED"); v != "" {
		c.Chunking.Enabled = isTruthy(v)
	}
	if v := os.Getenv("RAGCORE_N_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.NResults = n
		}
	}
	if v := os.Getenv("RAGCORE_COMBINE_CHUNKS"); v != "" {
		c.Retrieval.CombineChunks = isTruthy(v)
	}
	if v := os.Getenv("RAGCORE_VECTOR_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 {
			c.Retrieval.VectorWeight = w
		}
	}
	if v := os.Getenv("RAGCORE_LEXICAL_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 {
			c.Retrieval.LexicalWeight = w
		}
	}
	if v := os.Getenv("RAGCORE_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k >= 0 {
			c.Retrieval.RRFConstant = k
		}
	}
	if v := os.Getenv("RAGCORE_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.Generation.OllamaHost = v
	}
	if v := os.Getenv("RAGCORE_EMBEDDING_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("RAGCORE_GENERATION_MODEL"); v != "" {
		c.Generation.Model = v
	}
	if v := os.Getenv("RAGCORE_DATA_DIR"); v != "" {
		c.Stores.DataDir = v
	}
	if v := os.Getenv("RAGCORE_VECTOR_BACKEND"); v != "" {
		c.Stores.VectorBackend = v
	}
	if v := os.Getenv("RAGCORE_CHROMA_URL"); v != "" {
		c.Stores.ChromaURL = v
	}
	if v := os.Getenv("RAGCORE_WEB_SEARCH"); v != "" {
		c.WebSearch.Enabled = isTruthy(v)
	}
	if v := os.Getenv("RAGCORE_WEB_RESULTS_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.WebSearch.ResultsCount = n
		}
	}
	if v := os.Getenv("RAGCORE_SERPER_API_KEY"); v != "" {
		c.WebSearch.APIKey = v
	}
	if v := os.Getenv("RAGCORE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the configuration for invariant violations.
// Returns a fatal configuration error on the first violation found.
func (c *Config) Validate() error {
	if c.Chunking.MaxSize <= 0 {
		return ragerr.ConfigError("chunking.max_size must be positive", nil)
	}
	if c.Chunking.MinSize < 0 {
		return ragerr.ConfigError("chunking.min_size must not be negative", nil)
	}
	if c.Chunking.MinSize > c.Chunking.MaxSize {
		return ragerr.ConfigError(
			fmt.Sprintf("chunking.min_size (%d) must not exceed chunking.max_size (%d)",
				c.Chunking.MinSize, c.Chunking.MaxSize), nil)
	}
	if c.Chunking.Overlap < 0 {
		return ragerr.ConfigError("chunking.overlap must not be negative", nil)
	}
	// Overlap equal to or larger than the chunk size would make splitting
	// loop forever on the same window.
	if c.Chunking.Overlap >= c.Chunking.MaxSize {
		return ragerr.ConfigError(
			fmt.Sprintf("chunking.overlap (%d) must be smaller than chunking.max_size (%d)",
				c.Chunking.Overlap, c.Chunking.MaxSize), nil).
			WithSuggestion("reduce chunking.overlap or raise chunking.max_size")
	}
	if c.Retrieval.NResults <= 0 {
		return ragerr.ConfigError("retrieval.n_results must be positive", nil)
	}
	if c.Retrieval.VectorWeight < 0 || c.Retrieval.LexicalWeight < 0 {
		return ragerr.ConfigError("retrieval weights must not be negative", nil)
	}
	if c.Retrieval.VectorWeight == 0 && c.Retrieval.LexicalWeight == 0 {
		return ragerr.ConfigError("at least one retrieval weight must be positive", nil)
	}
	if c.Retrieval.RRFConstant < 0 {
		return ragerr.ConfigError("retrieval.rrf_constant must not be negative", nil)
	}
	switch c.Stores.VectorBackend {
	case "hnsw", "chroma":
	default:
		return ragerr.ConfigError(
			fmt.Sprintf("stores.vector_backend must be \"hnsw\" or \"chroma\", got %q",
				c.Stores.VectorBackend), nil)
	}
	if c.WebSearch.ResultsCount <= 0 {
		return ragerr.ConfigError("web_search.results_count must be positive", nil)
	}
	return nil
}

// WebSearchAvailable reports whether web search can actually be used.
// Enabled config without a credential silently disables the feature.
func (c *Config) WebSearchAvailable() bool {
	return c.WebSearch.Enabled && c.WebSearch.APIKey != ""
}

// Save writes the configuration to the given path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ragerr.InternalError("failed to marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// isTruthy interprets common boolean spellings from the environment.
func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
