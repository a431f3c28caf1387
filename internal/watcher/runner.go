package watcher

import (
	"context"
	"log/slog"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/ingest"
)

// Runner applies debounced file batches to the ingest pipeline and
// refreshes the domain vocabulary after each batch.
type Runner struct {
	watcher  *Watcher
	pipeline *ingest.Pipeline
	logger   *slog.Logger
}

// NewRunner wires a watcher to the pipeline.
func NewRunner(w *Watcher, pipeline *ingest.Pipeline, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{watcher: w, pipeline: pipeline, logger: logger}
}

// Run watches dir and processes batches until ctx is cancelled. Per-file
// failures are logged, never fatal: a broken document must not stop the
// watch.
func (r *Runner) Run(ctx context.Context, dir string) error {
	if err := r.watcher.Start(ctx, dir); err != nil {
		return err
	}
	defer r.watcher.Stop()

	r.logger.Info("watching for document changes", slog.String("dir", dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-r.watcher.Batches():
			if !ok {
				return nil
			}
			r.apply(ctx, batch)
		}
	}
}

func (r *Runner) apply(ctx context.Context, batch []FileEvent) {
	changed := 0
	for _, event := range batch {
		var err error
		switch event.Operation {
		case OpCreate, OpModify:
			_, err = r.pipeline.IngestFile(ctx, event.Path)
		case OpDelete:
			err = r.pipeline.DeleteDocument(ctx, event.Path)
		}
		if err != nil {
			r.logger.Warn("failed to apply document change",
				slog.String("path", event.Path),
				slog.String("op", event.Operation.String()),
				slog.String("error", err.Error()))
			continue
		}
		changed++
	}

	if changed == 0 {
		return
	}
	if err := r.pipeline.RefreshTerms(ctx); err != nil {
		r.logger.Warn("term refresh after batch failed",
			slog.String("error", err.Error()))
	}
	r.logger.Info("document changes applied",
		slog.Int("batch_size", len(batch)),
		slog.Int("applied", changed))
}
