package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Piebald-AI/splitrail/internal/cachestore"
	"github.com/Piebald-AI/splitrail/internal/decoder"
	"github.com/Piebald-AI/splitrail/internal/journal"
	"github.com/Piebald-AI/splitrail/internal/snapshot"
	"github.com/Piebald-AI/splitrail/pkg/color"
	"github.com/Piebald-AI/splitrail/pkg/progress"
	"github.com/Piebald-AI/splitrail/pkg/statedir"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the decode cache",
	Long: `Inspect and manage the decode cache.

Every byte of cached state is derived from the source tools' log files;
clearing the cache only costs a full re-decode on the next run.`,
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache location and contents",
	Run: func(cmd *cobra.Command, args []string) {
		root, cacheDir, snapsDir, journalPath := statePaths()

		store := cachestore.Open(cacheDir)
		storeErr := store.Load()

		tags, _ := snapshot.NewCache(snapsDir).Tags()
		records, _ := journal.Read(journalPath)

		if jsonOutput {
			outputJSON(map[string]any{
				"root":            root,
				"cached_files":    store.Len(),
				"generation":      store.Generation(),
				"snapshots":       tags,
				"journal_records": len(records),
			})
			return
		}

		fmt.Printf("%-12s %s\n", color.Header("State root:"), root)
		if storeErr != nil {
			fmt.Printf("%-12s %s\n", color.Header("Store:"), color.Warning(fmt.Sprintf("unreadable (%v)", storeErr)))
		} else {
			fmt.Printf("%-12s %d files cached (generation %d)\n", color.Header("Store:"), store.Len(), store.Generation())
		}
		if len(tags) == 0 {
			fmt.Printf("%-12s none\n", color.Header("Snapshots:"))
		} else {
			fmt.Printf("%-12s %s\n", color.Header("Snapshots:"), strings.Join(tags, ", "))
		}
		fmt.Printf("%-12s %d cycles\n", color.Header("Journal:"), len(records))
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached decode state and snapshots",
	Long: `Remove all cached decode state and snapshots.

The journal is kept. Statistics are rebuilt from the log files on the
next run.`,
	Run: func(cmd *cobra.Command, args []string) {
		_, cacheDir, snapsDir, _ := statePaths()

		if err := cachestore.Open(cacheDir).Destroy(); err != nil {
			fmtErr("clear store: %v", err)
			os.Exit(1)
		}
		if err := snapshot.NewCache(snapsDir).Clear(); err != nil {
			fmtErr("clear snapshots: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]string{"status": "cleared"})
			return
		}
		fmt.Println("Cache cleared. The next run re-decodes every file.")
	},
}

// cacheCheck is one verification result for JSON output.
type cacheCheck struct {
	Check  string `json:"check"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

var cacheVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify cache integrity",
	Long: `Verify cache integrity.

Checks the store's index checksum and every payload segment, each
snapshot tier's checksum, and the journal's hash chain, then compares
cached file identities against the files on disk. Files that changed or
disappeared are not failures; the next run reconciles them.`,
	Run: func(cmd *cobra.Command, args []string) {
		_, cacheDir, snapsDir, journalPath := statePaths()
		var checks []cacheCheck

		if err := cachestore.VerifyDir(cacheDir); err != nil {
			checks = append(checks, cacheCheck{Check: "store", Detail: err.Error()})
		} else {
			checks = append(checks, cacheCheck{Check: "store", OK: true})
		}

		snaps := snapshot.NewCache(snapsDir)
		tags, err := snaps.Tags()
		if err != nil {
			checks = append(checks, cacheCheck{Check: "snapshots", Detail: err.Error()})
		} else {
			tiersOK := true
			for _, tag := range tags {
				if _, _, err := snaps.LoadHot(tag, ""); err != nil {
					checks = append(checks, cacheCheck{Check: "snapshot " + tag, Detail: err.Error()})
					tiersOK = false
				}
				if _, _, err := snaps.LoadCold(tag, ""); err != nil {
					checks = append(checks, cacheCheck{Check: "snapshot " + tag, Detail: err.Error()})
					tiersOK = false
				}
			}
			if tiersOK {
				checks = append(checks, cacheCheck{Check: "snapshots", OK: true,
					Detail: fmt.Sprintf("%d source(s)", len(tags))})
			}
		}

		if n, err := journal.Verify(journalPath); err != nil {
			checks = append(checks, cacheCheck{Check: "journal", Detail: err.Error()})
		} else {
			checks = append(checks, cacheCheck{Check: "journal", OK: true,
				Detail: fmt.Sprintf("%d record(s)", n)})
		}

		checks = append(checks, checkStaleness(cacheDir))

		if jsonOutput {
			outputJSON(checks)
		}
		failed := false
		for _, c := range checks {
			if !c.OK {
				failed = true
			}
			if jsonOutput {
				continue
			}
			status := color.Success("OK  ")
			if !c.OK {
				status = color.Error("FAIL")
			}
			line := fmt.Sprintf("%s %s", status, c.Check)
			if c.Detail != "" {
				line += color.Dim("  " + c.Detail)
			}
			fmt.Println(line)
		}
		if failed {
			os.Exit(1)
		}
	},
}

// checkStaleness compares every cached identity against the file on
// disk. Divergence is normal between runs, so the check always passes;
// the detail reports how much work the next cycle will do.
func checkStaleness(cacheDir string) cacheCheck {
	store := cachestore.Open(cacheDir)
	if err := store.Load(); err != nil {
		return cacheCheck{Check: "freshness", Detail: "store unreadable, skipped"}
	}

	paths := store.Paths()
	ids := store.Identities()
	term := progress.NewTerminal("Checking", progressEnabled())
	prog := progress.New("check", len(paths), term.Callback())
	var stale, missing int
	for _, path := range paths {
		cur, err := decoder.StatIdentity(path)
		switch {
		case err != nil:
			missing++
		case cur != ids[path]:
			stale++
		}
		prog.Increment(filepath.Base(path))
	}
	term.Done("")

	if stale == 0 && missing == 0 {
		return cacheCheck{Check: "freshness", OK: true,
			Detail: fmt.Sprintf("%d cached file(s) match the disk", len(paths))}
	}
	return cacheCheck{Check: "freshness", OK: true,
		Detail: fmt.Sprintf("%d changed, %d deleted of %d cached file(s)", stale, missing, len(paths))}
}

// statePaths resolves every state location, or exits with error.
func statePaths() (root, cacheDir, snapsDir, journalPath string) {
	root, err1 := statedir.Root()
	cacheDir, err2 := statedir.CacheDir()
	snapsDir, err3 := statedir.SnapshotsDir()
	journalPath, err4 := statedir.JournalPath()
	for _, err := range []error{err1, err2, err3, err4} {
		if err != nil {
			fmtErr("resolve state directory: %v", err)
			os.Exit(1)
		}
	}
	return root, cacheDir, snapsDir, journalPath
}

func init() {
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheVerifyCmd)
	rootCmd.AddCommand(cacheCmd)
}
