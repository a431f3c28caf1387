// Package store provides the persistence backends for ragcore: a bleve
// lexical index, an HNSW or Chroma vector store, and a SQLite chunk store.
package store

import (
	"context"
	"errors"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/chunk"
)

// ErrDimensionMismatch is returned when a vector's dimensions don't match
// the store's configured dimensions.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ErrStoreClosed is returned for operations on a closed store.
var ErrStoreClosed = errors.New("store is closed")

// Document is a source document registered with the chunk store.
type Document struct {
	// ID uniquely identifies the document (usually its path or name).
	ID string

	// Content is the full original text.
	Content string

	// Metadata carries caller-supplied attributes.
	Metadata map[string]string
}

// LexicalResult is a single keyword search hit.
type LexicalResult struct {
	// ChunkID identifies the matched chunk.
	ChunkID string

	// Score is the backend's relevance score (BM25-style, unbounded).
	Score float64

	// MatchedTerms are the query terms that matched in this chunk.
	MatchedTerms []string
}

// VectorResult is a single similarity search hit.
type VectorResult struct {
	// ChunkID identifies the matched chunk.
	ChunkID string

	// Score is normalized similarity in [0, 1] (1 = identical).
	Score float32

	// Distance is the raw metric distance from the query vector.
	Distance float32
}

// LexicalIndex indexes chunk text for keyword search.
type LexicalIndex interface {
	// Index adds or replaces chunks in the index.
	Index(ctx context.Context, chunks []chunk.Chunk) error

	// Search runs a keyword query and returns up to limit ranked results.
	Search(ctx context.Context, query string, limit int) ([]*LexicalResult, error)

	// Delete removes chunks by ID. Missing IDs are not an error.
	Delete(ctx context.Context, ids []string) error

	// DocCount returns the number of indexed chunks. Exposed for
	// cross-store consistency diagnostics.
	DocCount() (uint64, error)

	// AllIDs returns every indexed chunk ID.
	AllIDs() ([]string, error)

	// Close releases resources.
	Close() error
}

// VectorStore indexes chunk embeddings for similarity search.
type VectorStore interface {
	// Upsert adds or replaces vectors. ids and vectors must align.
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error

	// Search returns up to limit nearest chunks to the query vector,
	// ordered by descending similarity.
	Search(ctx context.Context, vector []float32, limit int) ([]*VectorResult, error)

	// Delete removes vectors by chunk ID. Missing IDs are not an error.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of stored vectors.
	Count() int

	// AllIDs returns every stored chunk ID.
	AllIDs() []string

	// Close persists state where applicable and releases resources.
	Close() error
}

// ChunkStore persists documents and their chunks, and is the source of
// truth the combiner reads chunk text and offsets from.
type ChunkStore interface {
	// SaveDocument registers a document, replacing any previous version.
	SaveDocument(ctx context.Context, doc *Document) error

	// SaveChunks persists the chunks of a document.
	SaveChunks(ctx context.Context, chunks []chunk.Chunk) error

	// GetChunks batch-fetches chunks by ID. The result preserves input
	// order; IDs not found are simply absent.
	GetChunks(ctx context.Context, ids []string) ([]*chunk.Chunk, error)

	// GetChunksByDocument returns a document's chunks ordered by sequence.
	GetChunksByDocument(ctx context.Context, documentID string) ([]*chunk.Chunk, error)

	// DeleteDocument removes a document and all its chunks.
	// Returns the IDs of the removed chunks so callers can clean up the
	// other stores.
	DeleteDocument(ctx context.Context, documentID string) ([]string, error)

	// ListDocuments returns all registered documents without content.
	ListDocuments(ctx context.Context) ([]*Document, error)

	// CountChunks returns the total number of stored chunks.
	CountChunks(ctx context.Context) (int, error)

	// AllChunkIDs returns every stored chunk ID.
	AllChunkIDs(ctx context.Context) ([]string, error)

	// Clear removes all documents and chunks.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close() error
}
