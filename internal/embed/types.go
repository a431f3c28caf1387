// Package embed generates embedding vectors for chunks and queries via a
// local Ollama server.
package embed

import (
	"context"
	"math"
	"time"
)

// Defaults for the Ollama embedder.
const (
	DefaultOllamaHost = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultBatchSize  = 32
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 3
	DefaultCacheSize  = 1024
)

// Embedder turns text into embedding vectors.
type Embedder interface {
	// Embed embeds a single text. Empty input yields a zero vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in order; result aligns with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector width this embedder produces.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the backend is reachable and the model
	// is loaded.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector scales a vector to unit length so cosine similarity
// reduces to a dot product downstream.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
	return v
}
