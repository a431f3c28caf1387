package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/output"
)

// ingestOptions holds per-invocation chunking overrides. Zero values fall
// back to the configured defaults.
type ingestOptions struct {
	chunkSize  int
	minSize    int
	overlap    int
	noChunking bool
}

// newIngestCmd creates the ingest command.
func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Index a document or directory",
		Long: `Ingest a file or directory into the retrieval stores.

Each document is split into overlapping chunks, embedded, and written to
the chunk store, the lexical index, and the vector store. Re-ingesting a
document replaces its previous version. Supported extensions: .md, .txt,
.rst, .html.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 0, "Maximum chunk size in characters (default from config)")
	cmd.Flags().IntVar(&opts.minSize, "min-chunk-size", 0, "Minimum chunk size in characters (default from config)")
	cmd.Flags().IntVar(&opts.overlap, "chunk-overlap", 0, "Overlap between chunks in characters (default from config)")
	cmd.Flags().BoolVar(&opts.noChunking, "no-chunking", false, "Index each document as a single chunk")
	return cmd
}

func runIngest(ctx context.Context, path string, opts ingestOptions) error {
	out := output.New(os.Stdout)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.chunkSize > 0 {
		cfg.Chunking.MaxSize = opts.chunkSize
	}
	if opts.minSize > 0 {
		cfg.Chunking.MinSize = opts.minSize
	}
	if opts.overlap > 0 {
		cfg.Chunking.Overlap = opts.overlap
	}
	if opts.noChunking {
		cfg.Chunking.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := openAppWithConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.embedder.Available(ctx) {
		out.Warningf("embedding model %q is not available at %s",
			a.cfg.Embeddings.Model, a.cfg.Embeddings.OllamaHost)
		out.Detail("pull it with: ollama pull " + a.cfg.Embeddings.Model)
	}

	if info.IsDir() {
		out.Statusf("📚", "Ingesting documents from %s", path)
		ingested, failed, err := a.pipeline.IngestDirectory(ctx, path)
		if err != nil {
			return err
		}
		if failed > 0 {
			out.Warningf("%d document(s) failed, see logs", failed)
		}
		out.Successf("Ingested %d document(s)", ingested)
	} else {
		result, err := a.pipeline.IngestFile(ctx, path)
		if err != nil {
			return err
		}
		verb := "Ingested"
		if result.Replaced {
			verb = "Re-ingested"
		}
		out.Successf("%s %s (%d chunks)", verb, result.DocumentID, result.Chunks)
	}

	if err := a.pipeline.RefreshTerms(ctx); err != nil {
		out.Warningf("vocabulary refresh failed: %v", err)
	} else {
		snapshot := a.terms.Snapshot()
		out.Detailf("domain vocabulary: %d terms from %d chunks",
			len(snapshot.Terms), snapshot.ChunkCount)
	}
	return nil
}
