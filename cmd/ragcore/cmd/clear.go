package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/output"
)

// newClearCmd creates the clear command.
func newClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all indexed documents",
		Long:  `Remove every document, chunk, and vector from the stores. The data directory itself is kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClear(cmd.Context(), force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

func runClear(ctx context.Context, force bool) error {
	out := output.New(os.Stdout)

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.chunks.CountChunks(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		out.Status("", "Nothing indexed.")
		return nil
	}

	if !force {
		fmt.Printf("Delete %d chunk(s) from %s? [y/N] ", count, a.cfg.Stores.DataDir)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			out.Status("", "Aborted.")
			return nil
		}
	}

	if err := a.pipeline.Clear(ctx); err != nil {
		return err
	}
	out.Successf("Removed %d chunk(s)", count)
	return nil
}
