package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/output"
)

// newStatusCmd creates the status command.
func newStatusCmd() *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and store counts",
		Long: `Show what is indexed and whether the stores agree.

The chunk store is the source of truth; the lexical and vector indexes
must carry exactly its chunk IDs. Orphaned index entries can be removed
with --repair; chunks missing from an index need a re-ingest.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), repair)
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "Remove orphaned index entries")
	return cmd
}

func runStatus(ctx context.Context, repair bool) error {
	out := output.New(os.Stdout)

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.chunks.ListDocuments(ctx)
	if err != nil {
		return err
	}
	chunkCount, err := a.chunks.CountChunks(ctx)
	if err != nil {
		return err
	}
	lexCount, err := a.lexical.DocCount()
	if err != nil {
		return err
	}

	out.Statusf("📦", "Data directory: %s", a.cfg.Stores.DataDir)
	out.Statusf("", "documents: %d", len(docs))
	out.Statusf("", "chunks: %d", chunkCount)
	out.Statusf("", "lexical entries: %d", lexCount)
	out.Statusf("", "vectors: %d (%s backend)", a.vectors.Count(), a.cfg.Stores.VectorBackend)

	if a.embedder.Available(ctx) {
		out.Successf("embedding model %q reachable", a.cfg.Embeddings.Model)
	} else {
		out.Warningf("embedding model %q not reachable at %s",
			a.cfg.Embeddings.Model, a.cfg.Embeddings.OllamaHost)
	}
	if a.web != nil {
		out.Status("", "web search: enabled")
	} else {
		out.Status("", "web search: disabled")
	}

	result, err := a.checker.Check(ctx)
	if err != nil {
		return err
	}
	if result.Consistent() {
		out.Successf("stores consistent (%d chunks checked in %s)",
			result.Checked, result.Duration.Round(time.Millisecond))
		return nil
	}

	out.Warningf("%d inconsistencies found:", len(result.Inconsistencies))
	for _, issue := range result.Inconsistencies {
		out.Statusf("", "%s: %s", issue.Type, issue.ChunkID)
	}

	if !repair {
		out.Detail("run 'ragcore status --repair' to remove orphaned entries")
		return nil
	}

	repaired, err := a.checker.Repair(ctx, result)
	if err != nil {
		return err
	}
	out.Successf("removed %d orphaned index entries", repaired)
	out.Detail("chunks missing from an index need a re-ingest of the document")
	return nil
}
