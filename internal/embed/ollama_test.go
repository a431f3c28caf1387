package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ollamaStub(t *testing.T, handler http.HandlerFunc) *OllamaEmbedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Model: "test-model"}, nil)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestOllamaEmbed_ModernResponseShape(t *testing.T) {
	e := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float64{{3, 4}},
		})
	})

	v, err := e.Embed(context.Background(), "hello")

	require.NoError(t, err)
	require.Len(t, v, 2)
	// Normalized to unit length.
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)
	assert.Equal(t, 2, e.Dimensions())
}

func TestOllamaEmbed_LegacyResponseShape(t *testing.T) {
	e := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": []float64{1, 0, 0},
		})
	})

	v, err := e.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Len(t, v, 3)
}

func TestOllamaEmbed_EmptyTextYieldsZeroVector(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{Host: "http://127.0.0.1:1", Model: "m", Dimensions: 4}, nil)
	defer e.Close()

	v, err := e.Embed(context.Background(), "   ")

	require.NoError(t, err)
	assert.Equal(t, make([]float32, 4), v)
}

func TestOllamaEmbedBatch_PreservesOrderAndSkipsEmpties(t *testing.T) {
	e := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		texts := req.Input.([]any)
		// One distinguishable vector per text.
		out := make([][]float64, len(texts))
		for i := range texts {
			out[i] = []float64{float64(i + 1), 0}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	})

	vectors, err := e.EmbedBatch(context.Background(), []string{"first", "", "second"})

	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.InDelta(t, 1.0, float64(vectors[0][0]), 1e-6)
	assert.Equal(t, float32(0), vectors[1][0]) // empty input, zero vector
	assert.InDelta(t, 1.0, float64(vectors[2][0]), 1e-6)
}

func TestOllamaEmbed_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	e := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "model loading", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float64{{1}}})
	})

	_, err := e.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOllamaEmbed_ExhaustedRetriesFail(t *testing.T) {
	var calls atomic.Int32
	e := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := e.Embed(context.Background(), "hello")

	require.Error(t, err)
	assert.Equal(t, int32(DefaultMaxRetries), calls.Load())
}

func TestOllamaAvailable_ChecksModelList(t *testing.T) {
	e := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{{"name": "test-model:latest"}},
		})
	})

	assert.True(t, e.Available(context.Background()))
}

func TestOllamaAvailable_FalseWhenModelMissing(t *testing.T) {
	e := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{{"name": "other-model"}},
		})
	})

	assert.False(t, e.Available(context.Background()))
}

func TestNormalizeVector_UnitLength(t *testing.T) {
	v := normalizeVector([]float32{3, 4})

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)

	// Zero vector stays zero.
	assert.Equal(t, []float32{0, 0}, normalizeVector([]float32{0, 0}))
}
