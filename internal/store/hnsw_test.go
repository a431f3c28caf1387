package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHNSW(t *testing.T, dimensions int) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore("", dimensions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHNSWStore_SearchRanksBySimilarity(t *testing.T) {
	s := newTestHNSW(t, 3)
	require.NoError(t, s.Upsert(context.Background(),
		[]string{"a", "b", "c"},
		[][]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0.9, 0.1, 0},
		}))

	results, err := s.Search(context.Background(), []float32{1, 0, 0}, 2)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, "c", results[1].ChunkID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestHNSWStore_DimensionMismatchRejected(t *testing.T) {
	s := newTestHNSW(t, 3)

	err := s.Upsert(context.Background(), []string{"a"}, [][]float32{{1, 0}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = s.Search(context.Background(), []float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestHNSWStore_UpsertReplacesVector(t *testing.T) {
	s := newTestHNSW(t, 2)
	require.NoError(t, s.Upsert(context.Background(), []string{"a"}, [][]float32{{1, 0}}))
	require.NoError(t, s.Upsert(context.Background(), []string{"a"}, [][]float32{{0, 1}}))

	assert.Equal(t, 1, s.Count())

	results, err := s.Search(context.Background(), []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}

func TestHNSWStore_DeletedVectorsNeverReturned(t *testing.T) {
	s := newTestHNSW(t, 2)
	require.NoError(t, s.Upsert(context.Background(),
		[]string{"a", "b"}, [][]float32{{1, 0}, {0.9, 0.1}}))

	require.NoError(t, s.Delete(context.Background(), []string{"a"}))

	assert.Equal(t, 1, s.Count())
	results, err := s.Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ChunkID)
}

func TestHNSWStore_EmptyStoreSearchReturnsNothing(t *testing.T) {
	s := newTestHNSW(t, 2)

	results, err := s.Search(context.Background(), []float32{1, 0}, 5)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStore_SaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	s, err := NewHNSWStore(path, 2)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(context.Background(),
		[]string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, s.Close())

	// Reopen with zero dimensions: adopted from the saved metadata.
	loaded, err := NewHNSWStore(path, 0)
	require.NoError(t, err)
	defer loaded.Close()

	assert.Equal(t, 2, loaded.Count())
	assert.ElementsMatch(t, []string{"a", "b"}, loaded.AllIDs())

	results, err := loaded.Search(context.Background(), []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ChunkID)
}

func TestHNSWStore_LoadRejectsDimensionChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	s, err := NewHNSWStore(path, 2)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(context.Background(), []string{"a"}, [][]float32{{1, 0}}))
	require.NoError(t, s.Close())

	_, err = NewHNSWStore(path, 4)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestHNSWStore_ClosedStoreRejectsOperations(t *testing.T) {
	s := newTestHNSW(t, 2)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Upsert(context.Background(), []string{"a"}, [][]float32{{1, 0}}), ErrStoreClosed)
	_, err := s.Search(context.Background(), []float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.Equal(t, 0, s.Count())
}
