package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ChromaVectorStore is a minimal REST client to a Chroma server, the remote
// alternative to the embedded HNSW backend. It assumes cosine distance and
// creates the collection if missing.
type ChromaVectorStore struct {
	baseURL      string
	collection   string
	collectionID string
	dimensions   int
	client       *http.Client
	logger       *slog.Logger
}

// Verify interface implementation at compile time.
var _ VectorStore = (*ChromaVectorStore)(nil)

// ChromaConfig configures the Chroma client.
type ChromaConfig struct {
	// URL is the server base URL, e.g. "http://localhost:8000".
	URL string

	// Collection is the collection name (created on first use).
	Collection string

	// Dimensions is the expected embedding width. 0 skips validation.
	Dimensions int

	// Timeout bounds each HTTP request (default: 15s).
	Timeout time.Duration
}

// NewChromaVectorStore connects to a Chroma server and resolves (or
// creates) the configured collection.
func NewChromaVectorStore(ctx context.Context, cfg ChromaConfig, logger *slog.Logger) (*ChromaVectorStore, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &ChromaVectorStore{
		baseURL:    cfg.URL,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}

	if err := s.ensureCollection(ctx); err != nil {
		return nil, fmt.Errorf("chroma collection %s: %w", cfg.Collection, err)
	}
	return s, nil
}

// ensureCollection resolves the collection ID, creating the collection with
// cosine distance when it does not exist yet.
func (s *ChromaVectorStore) ensureCollection(ctx context.Context) error {
	body := map[string]any{
		"name":          s.collection,
		"get_or_create": true,
		"metadata":      map[string]any{"hnsw:space": "cosine"},
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := s.postJSON(ctx, "/api/v1/collections", body, &resp); err != nil {
		return err
	}
	if resp.ID == "" {
		return fmt.Errorf("server returned no collection id")
	}
	s.collectionID = resp.ID
	return nil
}

// Upsert adds or replaces vectors keyed by chunk ID.
func (s *ChromaVectorStore) Upsert(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	for _, v := range vectors {
		if s.dimensions != 0 && len(v) != s.dimensions {
			return fmt.Errorf("expected %d dimensions, got %d: %w",
				s.dimensions, len(v), ErrDimensionMismatch)
		}
	}

	body := map[string]any{
		"ids":        ids,
		"embeddings": vectors,
	}
	return s.postJSON(ctx, "/api/v1/collections/"+s.collectionID+"/upsert", body, nil)
}

// Search returns up to limit nearest chunks by cosine similarity.
func (s *ChromaVectorStore) Search(ctx context.Context, vector []float32, limit int) ([]*VectorResult, error) {
	if s.dimensions != 0 && len(vector) != s.dimensions {
		return nil, fmt.Errorf("expected %d dimensions, got %d: %w",
			s.dimensions, len(vector), ErrDimensionMismatch)
	}

	body := map[string]any{
		"query_embeddings": [][]float32{vector},
		"n_results":        limit,
		"include":          []string{"distances"},
	}
	var resp struct {
		IDs       [][]string  `json:"ids"`
		Distances [][]float32 `json:"distances"`
	}
	if err := s.postJSON(ctx, "/api/v1/collections/"+s.collectionID+"/query", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.IDs) == 0 {
		return []*VectorResult{}, nil
	}

	ids := resp.IDs[0]
	results := make([]*VectorResult, 0, len(ids))
	for i, id := range ids {
		var distance float32
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			distance = resp.Distances[0][i]
		}
		results = append(results, &VectorResult{
			ChunkID:  id,
			Score:    cosineDistanceToScore(distance),
			Distance: distance,
		})
	}
	return results, nil
}

// Delete removes vectors by chunk ID. Missing IDs are ignored server-side.
func (s *ChromaVectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"ids": ids}
	return s.postJSON(ctx, "/api/v1/collections/"+s.collectionID+"/delete", body, nil)
}

// Count returns the number of stored vectors, 0 when the server is
// unreachable.
func (s *ChromaVectorStore) Count() int {
	req, err := http.NewRequest(http.MethodGet,
		s.baseURL+"/api/v1/collections/"+s.collectionID+"/count", nil)
	if err != nil {
		return 0
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("chroma count failed", slog.String("error", err.Error()))
		return 0
	}
	defer resp.Body.Close()

	var count int
	if err := json.NewDecoder(resp.Body).Decode(&count); err != nil {
		return 0
	}
	return count
}

// AllIDs returns every stored chunk ID, nil when the server is unreachable.
// Used for consistency checks.
func (s *ChromaVectorStore) AllIDs() []string {
	body := map[string]any{"include": []string{}}
	var resp struct {
		IDs []string `json:"ids"`
	}
	if err := s.postJSON(context.Background(), "/api/v1/collections/"+s.collectionID+"/get", body, &resp); err != nil {
		s.logger.Warn("chroma id listing failed", slog.String("error", err.Error()))
		return nil
	}
	return resp.IDs
}

// Close is a no-op; the server owns the data.
func (s *ChromaVectorStore) Close() error {
	return nil
}

func (s *ChromaVectorStore) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("chroma POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("chroma POST %s failed: %s: %s", path, resp.Status, string(snippet))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
