package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Piebald-AI/splitrail/internal/engine"
	"github.com/Piebald-AI/splitrail/internal/watch"
	"github.com/Piebald-AI/splitrail/pkg/color"
	"github.com/Piebald-AI/splitrail/pkg/config"
	"github.com/Piebald-AI/splitrail/pkg/errclass"
	"github.com/Piebald-AI/splitrail/pkg/format"
)

var watchQuiet bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep statistics current as log files change",
	Long: `Keep statistics current as log files change.

Watches the source tools' log directories through filesystem
notifications and re-decodes files as they are appended to, rewritten,
created, or deleted. Each completed cycle publishes a fresh snapshot
and prints a one-line update. Runs until interrupted.

Examples:
  splitrail watch          # follow all sources
  splitrail watch --quiet  # suppress per-update lines`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, cfg := requireEngine(ctx)

		w, err := watch.Start(ctx, cfg.Debounce())
		if err != nil {
			if errors.Is(err, errclass.ErrWatchUnavailable) {
				fmtErr("%v", err)
				fmt.Fprintln(os.Stderr, color.Dim("  Filesystem notifications are unavailable here; run "+
					color.Code("splitrail stats")+" on demand instead."))
				os.Exit(1)
			}
			fmtErr("start watcher: %v", err)
			os.Exit(1)
		}
		defer w.Close()

		for _, root := range w.Roots() {
			fmt.Printf("%s %s\n", color.Dim("watching"), root)
		}

		if !watchQuiet {
			go printUpdates(ctx, eng, cfg)
		}

		err = eng.Run(ctx, w.Invalidations())
		if err != nil && !errors.Is(err, context.Canceled) {
			fmtErr("watch loop: %v", err)
			os.Exit(1)
		}
		fmt.Println("\nStopped.")
	},
}

// printUpdates polls for published snapshots and prints one line per
// change. Publication is a pointer swap, so comparing pointers is
// enough to detect a completed cycle.
func printUpdates(ctx context.Context, eng *engine.Engine, cfg *config.Config) {
	opts := formatOptions(cfg)
	last := eng.Snapshot()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := eng.Snapshot()
			if snap == last || snap == nil {
				continue
			}
			last = snap
			tot := snap.TotalMeasures()
			fmt.Printf("%s  %s in / %s out, %s tools, %s\n",
				color.Dim(time.Now().In(cfg.Location()).Format("15:04:05")),
				format.Number(tot.InputTokens, opts),
				format.Number(tot.OutputTokens, opts),
				format.Number(tot.ToolCalls, opts),
				format.Cost(tot.Cost))
		}
	}
}

func init() {
	watchCmd.Flags().BoolVar(&watchQuiet, "quiet", false, "do not print per-update lines")
	rootCmd.AddCommand(watchCmd)
}
