package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Piebald-AI/splitrail/internal/doctor"
	"github.com/Piebald-AI/splitrail/pkg/color"
)

var (
	doctorStrict bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment and state health",
	Long: `Check environment and state health.

Reports which AI coding tools were discovered, whether filesystem
notifications work, and whether the cached state is usable.
Use --strict to include full cache integrity verification.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := requireConfig()

		doc := doctor.NewDoctor(cfg)
		result, err := doc.Check(doctorStrict)
		if err != nil {
			fmtErr("doctor: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(result)
			return
		}

		if len(result.Findings) == 0 {
			fmt.Println("Everything is healthy.")
			return
		}

		fmt.Printf("Findings (%d):\n", len(result.Findings))
		for _, f := range result.Findings {
			fmt.Printf("  [%s] %s: %s\n", colorSeverity(f.Severity), f.Category, f.Description)
		}

		if !result.Healthy {
			os.Exit(1)
		}
	},
}

func colorSeverity(sev string) string {
	switch sev {
	case "critical", "error":
		return color.Error(sev)
	case "warning":
		return color.Warning(sev)
	case "ok":
		return color.Success(sev)
	default:
		return color.Dim(sev)
	}
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false, "include full integrity verification")
	rootCmd.AddCommand(doctorCmd)
}
