package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/chunk"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/store"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/terms"
)

// stubEmbedder returns fixed-width deterministic vectors.
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)%7 + 1), 1}, nil
}

func (s stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = s.Embed(ctx, t)
	}
	return out, nil
}

func (stubEmbedder) Dimensions() int                { return 2 }
func (stubEmbedder) ModelName() string              { return "stub" }
func (stubEmbedder) Available(context.Context) bool { return true }
func (stubEmbedder) Close() error                   { return nil }

type testStores struct {
	pipeline *Pipeline
	vectors  *store.HNSWStore
	lexical  *store.BleveLexicalIndex
	chunks   *store.SQLiteChunkStore
	terms    *terms.Index
}

func newTestPipeline(t *testing.T) *testStores {
	t.Helper()

	vectors, err := store.NewHNSWStore("", 2)
	require.NoError(t, err)
	lexical, err := store.NewBleveLexicalIndex("")
	require.NoError(t, err)
	chunks, err := store.NewSQLiteChunkStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = vectors.Close()
		_ = lexical.Close()
		_ = chunks.Close()
	})

	splitter, err := chunk.NewSplitter(chunk.Options{
		MaxSize: 80, MinSize: 20, Overlap: 10, Enabled: true,
	})
	require.NoError(t, err)

	termIndex := terms.NewIndex(terms.DefaultConfig(), nil, nil)

	return &testStores{
		pipeline: NewPipeline(splitter, stubEmbedder{}, vectors, lexical, chunks, termIndex, "", nil),
		vectors:  vectors,
		lexical:  lexical,
		chunks:   chunks,
		terms:    termIndex,
	}
}

const tenantDoc = "DuploCloud tenants isolate workloads from each other. " +
	"Each tenant owns its own infrastructure and security groups. " +
	"Create a tenant before deploying services into DuploCloud."

func TestIngestDocument_PopulatesAllStores(t *testing.T) {
	ts := newTestPipeline(t)

	result, err := ts.pipeline.IngestDocument(context.Background(),
		&store.Document{ID: "tenants.md", Content: tenantDoc})

	require.NoError(t, err)
	assert.Equal(t, "tenants.md", result.DocumentID)
	assert.Greater(t, result.Chunks, 1)
	assert.False(t, result.Replaced)

	count, err := ts.chunks.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.Chunks, count)

	lexCount, err := ts.lexical.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(result.Chunks), lexCount)

	assert.Equal(t, result.Chunks, ts.vectors.Count())
}

func TestIngestDocument_ReplacementEvictsOldChunks(t *testing.T) {
	ts := newTestPipeline(t)
	ctx := context.Background()

	first, err := ts.pipeline.IngestDocument(ctx,
		&store.Document{ID: "doc.md", Content: tenantDoc})
	require.NoError(t, err)

	second, err := ts.pipeline.IngestDocument(ctx,
		&store.Document{ID: "doc.md", Content: "Short replacement body about billing."})
	require.NoError(t, err)
	assert.True(t, second.Replaced)

	count, err := ts.chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Chunks, count)
	assert.Less(t, second.Chunks, first.Chunks)
	assert.Equal(t, second.Chunks, ts.vectors.Count())
}

func TestIngestDocument_EmptyDocumentIsSkipped(t *testing.T) {
	ts := newTestPipeline(t)

	result, err := ts.pipeline.IngestDocument(context.Background(),
		&store.Document{ID: "empty.md", Content: ""})

	require.NoError(t, err)
	assert.Zero(t, result.Chunks)

	count, err := ts.chunks.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestDocument_MissingIDRejected(t *testing.T) {
	ts := newTestPipeline(t)

	_, err := ts.pipeline.IngestDocument(context.Background(),
		&store.Document{Content: "body"})

	require.Error(t, err)
}

func TestDeleteDocument_RemovesFromAllStores(t *testing.T) {
	ts := newTestPipeline(t)
	ctx := context.Background()

	_, err := ts.pipeline.IngestDocument(ctx,
		&store.Document{ID: "doc.md", Content: tenantDoc})
	require.NoError(t, err)

	require.NoError(t, ts.pipeline.DeleteDocument(ctx, "doc.md"))

	count, err := ts.chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, ts.vectors.Count())
	lexCount, err := ts.lexical.DocCount()
	require.NoError(t, err)
	assert.Zero(t, lexCount)
}

func TestClear_WipesStoresAndVocabulary(t *testing.T) {
	ts := newTestPipeline(t)
	ctx := context.Background()

	_, err := ts.pipeline.IngestDocument(ctx,
		&store.Document{ID: "doc.md", Content: tenantDoc})
	require.NoError(t, err)
	require.NoError(t, ts.pipeline.RefreshTerms(ctx))
	require.NotEmpty(t, ts.terms.Snapshot().Terms)

	require.NoError(t, ts.pipeline.Clear(ctx))

	count, err := ts.chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, ts.vectors.Count())
	assert.Empty(t, ts.terms.Snapshot().Terms)
}

func TestRefreshTerms_BuildsVocabularyFromCorpus(t *testing.T) {
	ts := newTestPipeline(t)
	ctx := context.Background()

	_, err := ts.pipeline.IngestDocument(ctx,
		&store.Document{ID: "doc.md", Content: tenantDoc})
	require.NoError(t, err)

	require.NoError(t, ts.pipeline.RefreshTerms(ctx))

	assert.Contains(t, ts.terms.Snapshot().Terms, "tenant")
}

func TestIngestDirectory_PicksUpSupportedFiles(t *testing.T) {
	ts := newTestPipeline(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte(tenantDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte(tenantDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.bin"), []byte{0x01}, 0o644))

	ingested, failed, err := ts.pipeline.IngestDirectory(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, 2, ingested)
	assert.Zero(t, failed)

	docs, err := ts.chunks.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestIngestFile_MissingFileFails(t *testing.T) {
	ts := newTestPipeline(t)

	_, err := ts.pipeline.IngestFile(context.Background(), "/nonexistent/file.md")

	require.Error(t, err)
}
