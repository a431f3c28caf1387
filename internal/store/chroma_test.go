package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChroma is a minimal in-memory stand-in for the Chroma REST API,
// covering only the endpoints the client uses.
type fakeChroma struct {
	vectors map[string][]float32
}

func newFakeChroma() *fakeChroma {
	return &fakeChroma{vectors: make(map[string][]float32)}
}

func (f *fakeChroma) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "col-1"})
	})

	mux.HandleFunc("/api/v1/collections/col-1/upsert", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs        []string    `json:"ids"`
			Embeddings [][]float32 `json:"embeddings"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for i, id := range req.IDs {
			f.vectors[id] = req.Embeddings[i]
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/api/v1/collections/col-1/query", func(w http.ResponseWriter, r *http.Request) {
		// Deterministic canned ranking, the client only shapes the response.
		json.NewEncoder(w).Encode(map[string]any{
			"ids":       [][]string{{"a", "b"}},
			"distances": [][]float32{{0.0, 0.4}},
		})
	})

	mux.HandleFunc("/api/v1/collections/col-1/delete", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs []string `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, id := range req.IDs {
			delete(f.vectors, id)
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/api/v1/collections/col-1/count", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(len(f.vectors))
	})

	mux.HandleFunc("/api/v1/collections/col-1/get", func(w http.ResponseWriter, r *http.Request) {
		ids := make([]string, 0, len(f.vectors))
		for id := range f.vectors {
			ids = append(ids, id)
		}
		json.NewEncoder(w).Encode(map[string]any{"ids": ids})
	})

	return mux
}

func newTestChroma(t *testing.T) (*ChromaVectorStore, *fakeChroma) {
	t.Helper()
	fake := newFakeChroma()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	s, err := NewChromaVectorStore(context.Background(), ChromaConfig{
		URL:        srv.URL,
		Collection: "ragcore",
		Dimensions: 2,
	}, nil)
	require.NoError(t, err)
	return s, fake
}

func TestChromaStore_UpsertAndCount(t *testing.T) {
	s, fake := newTestChroma(t)

	require.NoError(t, s.Upsert(context.Background(),
		[]string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}))

	assert.Len(t, fake.vectors, 2)
	assert.Equal(t, 2, s.Count())
	assert.ElementsMatch(t, []string{"a", "b"}, s.AllIDs())
}

func TestChromaStore_SearchMapsDistancesToScores(t *testing.T) {
	s, _ := newTestChroma(t)

	results, err := s.Search(context.Background(), []float32{1, 0}, 2)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-6)
	assert.Equal(t, "b", results[1].ChunkID)
	assert.InDelta(t, 0.8, float64(results[1].Score), 1e-6)
}

func TestChromaStore_DimensionMismatchRejected(t *testing.T) {
	s, _ := newTestChroma(t)

	err := s.Upsert(context.Background(), []string{"a"}, [][]float32{{1, 0, 0}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = s.Search(context.Background(), []float32{1}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromaStore_DeleteRemovesVectors(t *testing.T) {
	s, fake := newTestChroma(t)
	require.NoError(t, s.Upsert(context.Background(),
		[]string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}))

	require.NoError(t, s.Delete(context.Background(), []string{"a"}))

	assert.Len(t, fake.vectors, 1)
	assert.Equal(t, []string{"b"}, s.AllIDs())
}

func TestChromaStore_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/collections" {
			json.NewEncoder(w).Encode(map[string]string{"id": "col-1"})
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	s, err := NewChromaVectorStore(context.Background(), ChromaConfig{
		URL: srv.URL, Collection: "ragcore",
	}, nil)
	require.NoError(t, err)

	err = s.Upsert(context.Background(), []string{"a"}, [][]float32{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestChromaStore_UnreachableServerFailsConstruction(t *testing.T) {
	_, err := NewChromaVectorStore(context.Background(), ChromaConfig{
		URL: "http://127.0.0.1:1", Collection: "ragcore",
	}, nil)
	require.Error(t, err)
}
