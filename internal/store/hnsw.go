package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWStore is the embedded VectorStore backend, a pure Go HNSW graph with
// cosine similarity. Chunk IDs are strings; the graph keys on uint64, so the
// store keeps a bidirectional mapping and persists it next to the graph.
type HNSWStore struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	path       string
	dimensions int

	// Chunk ID <-> internal graph key.
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

// Verify interface implementation at compile time.
var _ VectorStore = (*HNSWStore)(nil)

// hnswMetadata is the gob-persisted sidecar holding the ID mappings.
type hnswMetadata struct {
	IDMap      map[string]uint64
	NextKey    uint64
	Dimensions int
}

// NewHNSWStore creates or loads an HNSW vector store. An empty path keeps
// the store in memory (tests). Dimensions must match the embedding model;
// pass 0 to adopt the dimensions of a previously saved store.
func NewHNSWStore(path string, dimensions int) (*HNSWStore, error) {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	s := &HNSWStore{
		graph:      graph,
		path:       path,
		dimensions: dimensions,
		idMap:      make(map[string]uint64),
		keyMap:     make(map[uint64]string),
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := s.load(); err != nil {
				return nil, fmt.Errorf("load vector store %s: %w", path, err)
			}
			if dimensions != 0 && s.dimensions != dimensions {
				return nil, fmt.Errorf("vector store %s built with %d dimensions, configured for %d: %w",
					path, s.dimensions, dimensions, ErrDimensionMismatch)
			}
		}
	}

	return s, nil
}

// Upsert adds or replaces vectors. Replacement is lazy: the old graph node
// is orphaned rather than removed, which sidesteps coder/hnsw's broken
// deletion of the final node.
func (s *HNSWStore) Upsert(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	// First vector pins the dimensions when none were configured.
	if s.dimensions == 0 && len(vectors) > 0 {
		s.dimensions = len(vectors[0])
	}
	for _, v := range vectors {
		if len(v) != s.dimensions {
			return fmt.Errorf("expected %d dimensions, got %d: %w",
				s.dimensions, len(v), ErrDimensionMismatch)
		}
	}

	for i, id := range ids {
		if oldKey, exists := s.idMap[id]; exists {
			delete(s.keyMap, oldKey)
			delete(s.idMap, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[id] = key
		s.keyMap[key] = id
	}

	return nil
}

// Search returns up to limit nearest chunks by cosine similarity.
func (s *HNSWStore) Search(ctx context.Context, vector []float32, limit int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if s.dimensions != 0 && len(vector) != s.dimensions {
		return nil, fmt.Errorf("expected %d dimensions, got %d: %w",
			s.dimensions, len(vector), ErrDimensionMismatch)
	}
	if s.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	normalizeVectorInPlace(query)

	// Orphaned nodes from lazy deletion still come back from the graph;
	// over-fetch so the limit is met after filtering them out.
	fetch := limit + (s.graph.Len() - len(s.idMap))
	nodes := s.graph.Search(query, fetch)

	results := make([]*VectorResult, 0, limit)
	for _, node := range nodes {
		id, live := s.keyMap[node.Key]
		if !live {
			continue
		}
		distance := s.graph.Distance(query, node.Value)
		results = append(results, &VectorResult{
			ChunkID:  id,
			Score:    cosineDistanceToScore(distance),
			Distance: distance,
		})
		if len(results) == limit {
			break
		}
	}

	return results, nil
}

// Delete removes vectors by chunk ID. Deletion is lazy: only the mappings
// are dropped, the graph nodes stay until the next rebuild.
func (s *HNSWStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	for _, id := range ids {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
		}
	}

	return nil
}

// Count returns the number of live vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// AllIDs returns every live chunk ID. Used for consistency checks.
func (s *HNSWStore) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}

	ids := make([]string, 0, len(s.idMap))
	for id := range s.idMap {
		ids = append(ids, id)
	}
	return ids
}

// Save persists the graph and ID mappings atomically (temp file + rename).
func (s *HNSWStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}
	return s.saveLocked()
}

func (s *HNSWStore) saveLocked() error {
	if s.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	return s.saveMetadata(s.path + ".meta")
}

func (s *HNSWStore) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}

	meta := hnswMetadata{
		IDMap:      s.idMap,
		NextKey:    s.nextKey,
		Dimensions: s.dimensions,
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// load restores the graph and ID mappings written by Save.
func (s *HNSWStore) load() error {
	if err := s.loadMetadata(s.path + ".meta"); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func (s *HNSWStore) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer file.Close()

	var meta hnswMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	s.idMap = meta.IDMap
	s.nextKey = meta.NextKey
	s.dimensions = meta.Dimensions
	s.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range meta.IDMap {
		s.keyMap[key] = id
	}
	return nil
}

// Close persists the store (when file-backed) and releases the graph.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	var err error
	if s.path != "" {
		err = s.saveLocked()
	}

	s.closed = true
	s.graph = nil
	return err
}

// normalizeVectorInPlace scales a vector to unit length.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// cosineDistanceToScore maps cosine distance (0..2) to similarity (0..1).
func cosineDistanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}
