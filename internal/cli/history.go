package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Piebald-AI/splitrail/internal/journal"
	"github.com/Piebald-AI/splitrail/pkg/color"
	"github.com/Piebald-AI/splitrail/pkg/statedir"
)

var (
	historyLimit  int
	historyVerify bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the reconcile cycle journal",
	Long: `Show the reconcile cycle journal.

Every completed cycle appends one hash-chained record: what triggered
it, how many files were decoded, unchanged, or removed, and the corpus
fingerprint it published.

Examples:
  splitrail history            # last 20 cycles
  splitrail history -n 5       # last 5
  splitrail history --verify   # check the hash chain`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := requireConfig()

		path, err := statedir.JournalPath()
		if err != nil {
			fmtErr("resolve state directory: %v", err)
			os.Exit(1)
		}

		if historyVerify {
			n, err := journal.Verify(path)
			if err != nil {
				fmtErr("journal verify: %v", err)
				os.Exit(1)
			}
			if jsonOutput {
				outputJSON(map[string]any{"records": n, "intact": true})
				return
			}
			fmt.Printf("Journal chain intact (%d records).\n", n)
			return
		}

		records, err := journal.Tail(path, historyLimit)
		if err != nil {
			fmtErr("read journal: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(records)
			return
		}

		if len(records) == 0 {
			fmt.Println("No cycles recorded yet.")
			return
		}

		loc := cfg.Location()
		header := fmt.Sprintf("%-17s %-8s %8s %10s %8s %8s %9s  %s",
			"Time", "Trigger", "Decoded", "Unchanged", "Removed", "Events", "Duration", "Fingerprint")
		fmt.Println(color.Header(header))
		for _, rec := range records {
			fmt.Printf("%-17s %-8s %8d %10d %8d %8d %8dms  %s\n",
				rec.Time.In(loc).Format("2006-01-02 15:04"),
				rec.Trigger,
				rec.Decoded,
				rec.Unchanged,
				rec.Removed,
				rec.Events,
				rec.DurationMS,
				color.Dim(shortID(string(rec.Fingerprint))),
			)
		}
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "limit number of entries (0 = all)")
	historyCmd.Flags().BoolVar(&historyVerify, "verify", false, "verify the journal hash chain")
	rootCmd.AddCommand(historyCmd)
}
