package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/output"
)

// newTermsCmd creates the terms command.
func newTermsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "terms",
		Short: "Show the extracted domain vocabulary",
		Long: `Show the domain terms extracted from the indexed corpus.

The query classifier matches questions against this vocabulary to decide
whether your documents can answer them. Terms are ordered by relevance.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTerms(cmd.Context(), limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of terms to print")
	return cmd
}

func runTerms(ctx context.Context, limit int) error {
	out := output.New(os.Stdout)

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.pipeline.RefreshTerms(ctx); err != nil {
		return err
	}

	snapshot := a.terms.Snapshot()
	if len(snapshot.Terms) == 0 {
		out.Status("", "No domain terms extracted. Ingest some documents first.")
		return nil
	}

	out.Statusf("🔤", "%d domain terms from %d chunks (built %s)",
		len(snapshot.Terms), snapshot.ChunkCount,
		snapshot.BuiltAt.Format("2006-01-02 15:04:05"))

	shown := snapshot.Terms
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, term := range shown {
		out.Status("", term)
	}
	if len(shown) < len(snapshot.Terms) {
		out.Detailf("... and %d more (raise --limit to see all)", len(snapshot.Terms)-len(shown))
	}
	return nil
}
