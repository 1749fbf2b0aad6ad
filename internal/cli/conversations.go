package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Piebald-AI/splitrail/pkg/color"
	"github.com/Piebald-AI/splitrail/pkg/format"
	"github.com/Piebald-AI/splitrail/pkg/model"
)

var (
	convLimit  int
	convSource string
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List conversations across all sources",
	Long: `List conversations across all sources, most recent activity first.

Each row is one conversation after deduplication, so a session whose
log appears in several overlapping files shows up exactly once.

Examples:
  splitrail conversations               # all conversations
  splitrail conversations --limit 10    # ten most recent
  splitrail conversations --source codex`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, cfg := requireEngine(ctx)

		convs := eng.Conversations()
		if convSource != "" {
			filtered := make([]*model.ConversationSummary, 0, len(convs))
			for _, s := range convs {
				if s.Source == convSource {
					filtered = append(filtered, s)
				}
			}
			convs = filtered
		}
		if convLimit > 0 && len(convs) > convLimit {
			convs = convs[:convLimit]
		}

		if jsonOutput {
			outputJSON(convs)
			return
		}

		if len(convs) == 0 {
			fmt.Println("No conversations found.")
			return
		}

		opts := formatOptions(cfg)
		now := time.Now().In(cfg.Location())

		header := fmt.Sprintf("%-13s %-11s %-32s %-11s %-17s %7s %10s",
			"ID", "Source", "Session", "Start", "Last activity", "Events", "Cost")
		fmt.Println(color.Header(header))
		for _, s := range convs {
			start := "-"
			if s.StartDate != "" {
				start = format.Date(s.StartDate, now)
			}
			last := "-"
			if !s.LastActivity.IsZero() {
				last = s.LastActivity.In(cfg.Location()).Format("2006-01-02 15:04")
			}
			session := s.SessionName
			if session == "" {
				session = "-"
			}
			fmt.Printf("%-13s %-11s %-32s %-11s %-17s %7s %10s\n",
				shortID(s.ConversationID),
				s.Source,
				truncate(session, 32),
				start,
				last,
				format.Number(s.Events, opts),
				format.Cost(s.Measures.Cost),
			)
		}
		fmt.Println()
		fmt.Println(color.Dim("Use " + color.Code("splitrail events <id>") + " for a conversation's event log."))
	},
}

// shortID abbreviates a hex conversation ID for table display. Full
// IDs remain accepted everywhere an ID is an argument.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func init() {
	conversationsCmd.Flags().IntVar(&convLimit, "limit", 0, "show only the N most recent conversations (0 = all)")
	conversationsCmd.Flags().StringVar(&convSource, "source", "", "show only one source tag")
	rootCmd.AddCommand(conversationsCmd)
}
