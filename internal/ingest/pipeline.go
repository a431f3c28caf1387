// Package ingest turns documents into indexed chunks across the three
// stores: chunk store (source of truth), lexical index, and vector store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/chunk"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/embed"
	ragerr "github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/errors"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/store"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/terms"
)

// lockRetryInterval is how often a waiting ingest retries the file lock.
const lockRetryInterval = 250 * time.Millisecond

// ingestibleExtensions are the file types directory ingestion picks up.
var ingestibleExtensions = map[string]bool{
	".md":   true,
	".txt":  true,
	".rst":  true,
	".html": true,
}

// Result summarizes one document ingestion.
type Result struct {
	// DocumentID is the ingested document.
	DocumentID string

	// Chunks is how many chunks the document produced.
	Chunks int

	// Replaced reports whether a previous version was removed first.
	Replaced bool
}

// Pipeline ingests documents: split, embed, and index, keeping the three
// stores consistent.
type Pipeline struct {
	splitter *chunk.Splitter
	embedder embed.Embedder
	vectors  store.VectorStore
	lexical  store.LexicalIndex
	chunks   store.ChunkStore
	terms    *terms.Index
	lock     *flock.Flock
	logger   *slog.Logger
}

// NewPipeline wires the ingestion path. lockPath guards against concurrent
// ingests from separate processes; empty disables locking (tests).
// termIndex may be nil when term tracking is off.
func NewPipeline(
	splitter *chunk.Splitter,
	embedder embed.Embedder,
	vectors store.VectorStore,
	lexical store.LexicalIndex,
	chunks store.ChunkStore,
	termIndex *terms.Index,
	lockPath string,
	logger *slog.Logger,
) *Pipeline {
	var lock *flock.Flock
	if lockPath != "" {
		lock = flock.New(lockPath)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		splitter: splitter,
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		chunks:   chunks,
		terms:    termIndex,
		lock:     lock,
		logger:   logger,
	}
}

// IngestDocument splits, embeds, and indexes one document, replacing any
// previous version. The chunk store is written first so a crash mid-ingest
// leaves the indexes behind the source of truth, which the consistency
// check repairs by reingesting.
func (p *Pipeline) IngestDocument(ctx context.Context, doc *store.Document) (*Result, error) {
	if doc.ID == "" {
		return nil, ragerr.ValidationError("document id must not be empty", nil)
	}

	unlock, err := p.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()

	// Drop the previous version everywhere before writing the new one.
	removed, err := p.chunks.DeleteDocument(ctx, doc.ID)
	if err != nil {
		return nil, ragerr.New(ragerr.ErrCodeIngestFailed,
			fmt.Sprintf("remove previous version of %s", doc.ID), err)
	}
	if len(removed) > 0 {
		if err := p.lexical.Delete(ctx, removed); err != nil {
			return nil, ragerr.New(ragerr.ErrCodeIngestFailed, "evict stale lexical entries", err)
		}
		if err := p.vectors.Delete(ctx, removed); err != nil {
			return nil, ragerr.New(ragerr.ErrCodeIngestFailed, "evict stale vectors", err)
		}
	}

	pieces := p.splitter.Split(doc.ID, doc.Content)
	if len(pieces) == 0 {
		p.logger.Warn("document produced no chunks, skipping",
			slog.String("document_id", doc.ID))
		return &Result{DocumentID: doc.ID, Replaced: len(removed) > 0}, nil
	}

	if err := p.chunks.SaveDocument(ctx, doc); err != nil {
		return nil, ragerr.New(ragerr.ErrCodeIngestFailed, "save document", err)
	}
	if err := p.chunks.SaveChunks(ctx, pieces); err != nil {
		return nil, ragerr.New(ragerr.ErrCodeIngestFailed, "save chunks", err)
	}

	texts := make([]string, len(pieces))
	ids := make([]string, len(pieces))
	for i, c := range pieces {
		texts[i] = c.Text
		ids[i] = c.ID
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, ragerr.New(ragerr.ErrCodeIngestFailed, "embed chunks", err)
	}
	if err := p.vectors.Upsert(ctx, ids, vectors); err != nil {
		return nil, ragerr.New(ragerr.ErrCodeIngestFailed, "index vectors", err)
	}
	if err := p.lexical.Index(ctx, pieces); err != nil {
		return nil, ragerr.New(ragerr.ErrCodeIngestFailed, "index chunk text", err)
	}

	p.logger.Info("document ingested",
		slog.String("document_id", doc.ID),
		slog.Int("chunks", len(pieces)),
		slog.Bool("replaced", len(removed) > 0),
		slog.Duration("took", time.Since(start)))

	return &Result{
		DocumentID: doc.ID,
		Chunks:     len(pieces),
		Replaced:   len(removed) > 0,
	}, nil
}

// IngestFile ingests one file, keyed by its cleaned path.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, ragerr.New(ragerr.ErrCodeFileNotFound, fmt.Sprintf("read %s", path), err)
	}

	return p.IngestDocument(ctx, &store.Document{
		ID:      filepath.Clean(path),
		Content: string(content),
		Metadata: map[string]string{
			"source": "file",
			"ext":    filepath.Ext(path),
		},
	})
}

// IngestDirectory walks dir and ingests every supported file. Per-file
// failures are logged and counted, not fatal.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string) (ingested, failed int, err error) {
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !ingestibleExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		if _, ferr := p.IngestFile(ctx, path); ferr != nil {
			failed++
			p.logger.Warn("file ingestion failed",
				slog.String("path", path),
				slog.String("error", ferr.Error()))
			return nil
		}
		ingested++
		return nil
	})
	if err != nil {
		return ingested, failed, ragerr.New(ragerr.ErrCodeIngestFailed,
			fmt.Sprintf("walk %s", dir), err)
	}
	return ingested, failed, nil
}

// DeleteDocument removes a document from every store.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) error {
	unlock, err := p.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	removed, err := p.chunks.DeleteDocument(ctx, documentID)
	if err != nil {
		return ragerr.New(ragerr.ErrCodeIngestFailed, "delete document", err)
	}
	if len(removed) == 0 {
		return nil
	}
	if err := p.lexical.Delete(ctx, removed); err != nil {
		return ragerr.New(ragerr.ErrCodeIngestFailed, "evict lexical entries", err)
	}
	if err := p.vectors.Delete(ctx, removed); err != nil {
		return ragerr.New(ragerr.ErrCodeIngestFailed, "evict vectors", err)
	}
	return nil
}

// Clear wipes every store and the term vocabulary.
func (p *Pipeline) Clear(ctx context.Context) error {
	unlock, err := p.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	ids, err := p.chunks.AllChunkIDs(ctx)
	if err != nil {
		return ragerr.New(ragerr.ErrCodeIngestFailed, "list chunks", err)
	}
	if err := p.chunks.Clear(ctx); err != nil {
		return ragerr.New(ragerr.ErrCodeIngestFailed, "clear chunk store", err)
	}
	if len(ids) > 0 {
		if err := p.lexical.Delete(ctx, ids); err != nil {
			return ragerr.New(ragerr.ErrCodeIngestFailed, "clear lexical index", err)
		}
		if err := p.vectors.Delete(ctx, ids); err != nil {
			return ragerr.New(ragerr.ErrCodeIngestFailed, "clear vector store", err)
		}
	}
	if p.terms != nil {
		p.terms.Clear()
	}
	return nil
}

// RefreshTerms rebuilds the domain vocabulary from the full stored corpus.
func (p *Pipeline) RefreshTerms(ctx context.Context) error {
	if p.terms == nil {
		return nil
	}

	ids, err := p.chunks.AllChunkIDs(ctx)
	if err != nil {
		return ragerr.New(ragerr.ErrCodeIngestFailed, "list chunks for term extraction", err)
	}
	if len(ids) == 0 {
		p.terms.Clear()
		return nil
	}

	stored, err := p.chunks.GetChunks(ctx, ids)
	if err != nil {
		return ragerr.New(ragerr.ErrCodeIngestFailed, "load chunks for term extraction", err)
	}
	corpus := make([]string, len(stored))
	for i, c := range stored {
		corpus[i] = c.Text
	}
	return p.terms.Refresh(ctx, corpus)
}

// acquireLock takes the cross-process ingest lock, retrying until the
// context expires. Returns a release func.
func (p *Pipeline) acquireLock(ctx context.Context) (func(), error) {
	if p.lock == nil {
		return func() {}, nil
	}

	locked, err := p.lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, ragerr.New(ragerr.ErrCodeIngestFailed, "acquire ingest lock", err)
	}
	if !locked {
		return nil, ragerr.New(ragerr.ErrCodeIngestFailed, "ingest lock held by another process", nil)
	}
	return func() {
		if err := p.lock.Unlock(); err != nil {
			p.logger.Warn("failed to release ingest lock", slog.String("error", err.Error()))
		}
	}, nil
}
