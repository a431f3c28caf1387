package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/output"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/watcher"
)

// newWatchCmd creates the watch command.
func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a directory and keep the index current",
		Long: `Watch a directory for document changes and re-ingest automatically.

Events are debounced so editors that write multiple times in quick
succession trigger a single re-ingest. Deleted files are removed from
the index. Runs until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			return runWatch(cmd.Context(), dir)
		},
	}
	return cmd
}

func runWatch(ctx context.Context, dir string) error {
	out := output.New(os.Stdout)

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if dir == "" {
		dir = a.cfg.Watch.Dir
	}
	if dir == "" {
		return fmt.Errorf("no directory given and watch.dir is not configured")
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("cannot watch %s: %w", dir, err)
	}

	out.Statusf("👀", "Watching %s (Ctrl-C to stop)", dir)

	w := watcher.New(a.cfg.Watch.Debounce, a.logger)
	runner := watcher.NewRunner(w, a.pipeline, a.logger)

	err = runner.Run(ctx, dir)
	if errors.Is(err, context.Canceled) {
		out.Newline()
		out.Success("Watch stopped")
		return nil
	}
	return err
}
