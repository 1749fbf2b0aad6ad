package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Piebald-AI/splitrail/pkg/color"
	"github.com/Piebald-AI/splitrail/pkg/format"
	"github.com/Piebald-AI/splitrail/pkg/model"
	"github.com/Piebald-AI/splitrail/pkg/progress"
)

var (
	statsRescan bool
	statsDays   int
	statsSource string
	statsAll    bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated usage statistics",
	Long: `Show aggregated usage statistics.

Decodes any changed log files, merges them with the cached corpus, and
prints per-day usage for every discovered tool. Days with no activity
are hidden unless --all is given.

Examples:
  splitrail stats                # per-day table for all sources
  splitrail stats --days 7       # last 7 active days only
  splitrail stats --source codex # one source
  splitrail stats --rescan       # ignore the cache, re-decode everything
  splitrail stats --json         # machine-readable snapshot`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, cfg := requireEngine(ctx)

		if statsRescan {
			term := progress.NewTerminal("Decoding", progressEnabled())
			eng.SetProgress(term.Callback())
			eng.InvalidateAll()
			if err := eng.Refresh(ctx); err != nil {
				fmtErr("rescan: %v", err)
				os.Exit(1)
			}
			term.Done("")
		}

		snap := eng.Snapshot()
		if snap == nil || len(snap.Sources) == 0 {
			if jsonOutput {
				outputJSON(map[string]any{})
				return
			}
			fmt.Println("No usage data found.")
			fmt.Println(color.Dim("  Run " + color.Code("splitrail doctor") + " to see which tools were discovered."))
			return
		}

		if jsonOutput {
			outputJSON(snap)
			return
		}

		opts := formatOptions(cfg)
		now := time.Now().In(cfg.Location())

		tags := make([]string, 0, len(snap.Sources))
		for tag := range snap.Sources {
			if statsSource != "" && tag != statsSource {
				continue
			}
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		if len(tags) == 0 {
			fmtErr("no data for source %q", statsSource)
			os.Exit(1)
		}

		for _, tag := range tags {
			src := snap.Sources[tag]
			name := src.DisplayName
			if name == "" {
				name = tag
			}
			fmt.Printf("%s  %s\n", color.Source(name),
				color.Dim(fmt.Sprintf("(%s conversations)", format.Number(src.Conversations, opts))))
			printDailyTable(src.Daily, opts, now)
			fmt.Println()
		}

		if len(tags) > 1 {
			fmt.Println(color.Header("All sources"))
			printDailyTable(snap.Totals(), opts, now)
		}
	},
}

func printDailyTable(daily map[string]*model.DailyStats, opts format.Options, now time.Time) {
	dates := make([]string, 0, len(daily))
	for date := range daily {
		day := daily[date]
		if !statsAll && day.UserMessages == 0 && day.AIMessages == 0 &&
			day.Conversations == 0 && day.Measures.IsZero() {
			continue
		}
		dates = append(dates, date)
	}
	// "unknown" sorts after every real date.
	sort.Strings(dates)
	if statsDays > 0 && len(dates) > statsDays {
		dates = dates[len(dates)-statsDays:]
	}
	if len(dates) == 0 {
		fmt.Println(color.Dim("  no activity"))
		return
	}

	header := fmt.Sprintf("  %-11s %6s %6s %6s %12s %12s %12s %7s %10s",
		"Date", "Conv", "User", "AI", "Input", "Output", "Cache Rd", "Tools", "Cost")
	fmt.Println(color.Header(header))

	var total model.Measures
	var userMsgs, aiMsgs, convs uint64
	for _, date := range dates {
		day := daily[date]
		fmt.Printf("  %-11s %6s %6s %6s %12s %12s %12s %7s %10s\n",
			format.Date(date, now),
			format.Number(day.Conversations, opts),
			format.Number(day.UserMessages, opts),
			format.Number(day.AIMessages, opts),
			format.Number(day.Measures.InputTokens, opts),
			format.Number(day.Measures.OutputTokens, opts),
			format.Number(day.Measures.CacheReadTokens, opts),
			format.Number(day.Measures.ToolCalls, opts),
			format.Cost(day.Measures.Cost),
		)
		total.Add(day.Measures)
		userMsgs += day.UserMessages
		aiMsgs += day.AIMessages
		convs += day.Conversations
	}

	fmt.Printf("  %-11s %6s %6s %6s %12s %12s %12s %7s %10s\n",
		color.Header("Total"),
		format.Number(convs, opts),
		format.Number(userMsgs, opts),
		format.Number(aiMsgs, opts),
		format.Number(total.InputTokens, opts),
		format.Number(total.OutputTokens, opts),
		format.Number(total.CacheReadTokens, opts),
		format.Number(total.ToolCalls, opts),
		format.Cost(total.Cost),
	)
}

func init() {
	statsCmd.Flags().BoolVar(&statsRescan, "rescan", false, "ignore the cache and re-decode every file")
	statsCmd.Flags().IntVar(&statsDays, "days", 0, "show only the last N active days (0 = all)")
	statsCmd.Flags().StringVar(&statsSource, "source", "", "show only one source tag")
	statsCmd.Flags().BoolVar(&statsAll, "all", false, "include days with no activity")
	rootCmd.AddCommand(statsCmd)
}
