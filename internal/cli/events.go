package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Piebald-AI/splitrail/pkg/color"
	"github.com/Piebald-AI/splitrail/pkg/format"
	"github.com/Piebald-AI/splitrail/pkg/model"
)

var eventsCmd = &cobra.Command{
	Use:   "events <conversation>",
	Short: "Show one conversation's event log",
	Long: `Show one conversation's deduplicated events in timestamp order.

The conversation may be given as a full ID or any unique prefix of one.

Examples:
  splitrail events a1b2c3d4e5f6
  splitrail events a1b2 --json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, cfg := requireEngine(ctx)

		query := args[0]
		var conv *model.ConversationEvents
		if id := resolveConversation(eng, query); id != "" {
			conv = eng.Events(id)
		}
		if conv == nil {
			fmt.Fprintln(os.Stderr, formatConversationNotFoundError(eng, query))
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(conv)
			return
		}

		opts := formatOptions(cfg)
		loc := cfg.Location()

		title := conv.Source
		if conv.SessionName != "" {
			title += "  " + conv.SessionName
		}
		fmt.Printf("%s  %s\n", color.Source(title), color.Dim(conv.ConversationID))
		for _, p := range conv.Paths {
			fmt.Println(color.Dim("  " + p))
		}
		fmt.Println()

		header := fmt.Sprintf("%-20s %-10s %-28s %10s %10s %6s %10s",
			"Time", "Role", "Model", "Input", "Output", "Tools", "Cost")
		fmt.Println(color.Header(header))

		var total model.Measures
		for i := range conv.Events {
			ev := &conv.Events[i]
			ts := "-"
			if !ev.Timestamp.IsZero() {
				ts = ev.Timestamp.In(loc).Format("2006-01-02 15:04:05")
			}
			mdl := ev.Model
			if mdl == "" {
				mdl = "-"
			}
			fmt.Printf("%-20s %-10s %-28s %10s %10s %6s %10s\n",
				ts,
				string(ev.Role),
				truncate(mdl, 28),
				format.Number(ev.Measures.InputTokens, opts),
				format.Number(ev.Measures.OutputTokens, opts),
				format.Number(ev.Measures.ToolCalls, opts),
				format.Cost(ev.Measures.Cost),
			)
			total.Add(ev.Measures)
		}

		fmt.Printf("%-20s %-10s %-28s %10s %10s %6s %10s\n",
			color.Header("Total"), "", "",
			format.Number(total.InputTokens, opts),
			format.Number(total.OutputTokens, opts),
			format.Number(total.ToolCalls, opts),
			format.Cost(total.Cost),
		)
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}
