package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Piebald-AI/splitrail/internal/pricing"
	"github.com/Piebald-AI/splitrail/pkg/color"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known models and their token prices",
	Long: `List known models and their token prices.

Prices are per million tokens. A range means the model bills on a
tiered ladder by prompt size. Usage logged against a model not listed
here is still counted, but costed at zero.

Examples:
  splitrail models
  splitrail models --json`,
	Run: func(cmd *cobra.Command, args []string) {
		names := pricing.Canonical()

		if jsonOutput {
			out := make([]map[string]any, 0, len(names))
			for _, name := range names {
				info, _ := pricing.Lookup(name)
				out = append(out, map[string]any{
					"name":          name,
					"input_per_1m":  info.InputPer1M,
					"output_per_1m": info.OutputPer1M,
					"tiered":        len(info.Tiers) > 0,
					"cache_style":   cacheStyleName(info.Caching.Style),
				})
			}
			outputJSON(out)
			return
		}

		header := fmt.Sprintf("%-40s %15s %15s %10s", "Model", "Input/1M", "Output/1M", "Cache")
		fmt.Println(color.Header(header))
		for _, name := range names {
			info, _ := pricing.Lookup(name)
			fmt.Printf("%-40s %15s %15s %10s\n",
				name,
				priceRange(info.InputPer1M, info.Tiers, true),
				priceRange(info.OutputPer1M, info.Tiers, false),
				cacheStyleName(info.Caching.Style),
			)
		}
	},
}

// priceRange renders a flat per-million price, or the low-high span of
// a tiered ladder.
func priceRange(flat decimal.Decimal, tiers []pricing.Tier, input bool) string {
	if len(tiers) == 0 {
		return "$" + flat.StringFixed(2)
	}
	pick := func(t pricing.Tier) decimal.Decimal {
		if input {
			return t.InputPer1M
		}
		return t.OutputPer1M
	}
	lo := pick(tiers[0])
	hi := pick(tiers[len(tiers)-1])
	if lo.Equal(hi) {
		return "$" + lo.StringFixed(2)
	}
	return fmt.Sprintf("$%s-$%s", lo.StringFixed(2), hi.StringFixed(2))
}

func cacheStyleName(s pricing.CacheStyle) string {
	switch s {
	case pricing.CacheOpenAI:
		return "openai"
	case pricing.CacheAnthropic:
		return "anthropic"
	case pricing.CacheGoogle:
		return "google"
	default:
		return "-"
	}
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
