package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Piebald-AI/splitrail/pkg/config"
	"github.com/Piebald-AI/splitrail/pkg/statedir"
)

var configCmd = &cobra.Command{
	Use:   "config <command>",
	Short: "Manage splitrail configuration",
	Long: `Manage splitrail configuration stored in the state directory.

Configuration options:
  engine.debounce_ms         - Quiet window before a changed file is re-decoded
  engine.workers             - Decode worker pool size (0 = number of CPUs)
  engine.timezone            - Date bucketing timezone (local, utc)
  decoders.enabled           - Decoder tags to run (empty = all registered)
  decoders.disabled          - Decoder tags to skip
  logging.level              - Log level (debug, info, warn, error)
  logging.format             - Log format (text, json)
  formatting.number_comma    - Group digits with separators (true, false)
  formatting.number_human    - Abbreviate large numbers, 1.2m style (true, false)
  formatting.locale          - Locale for digit grouping
  formatting.decimal_places  - Decimal places for abbreviated numbers

Available commands:
  show              - Show current configuration
  set <key> <value> - Set a configuration value
  get <key>         - Get a configuration value`,
	DisableFlagsInUseLine: true,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Show the current splitrail configuration.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := requireConfig()

		if jsonOutput {
			outputJSON(cfg)
			return
		}

		path, err := statedir.ConfigPath()
		if err != nil {
			fmtErr("resolve state directory: %v", err)
			os.Exit(1)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmtErr("render config: %v", err)
			os.Exit(1)
		}

		fmt.Println("# Splitrail configuration")
		fmt.Printf("# Location: %s\n\n", path)
		fmt.Print(string(data))
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Examples:
  splitrail config set engine.timezone utc
  splitrail config set engine.workers 8
  splitrail config set decoders.disabled gemini,codex
  splitrail config set formatting.number_human true`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := requireConfig()

		key := args[0]
		value := args[1]

		if err := cfg.Set(key, value); err != nil {
			fmtErr("set config: %v", err)
			os.Exit(1)
		}

		if err := config.Save(cfg); err != nil {
			fmtErr("save config: %v", err)
			os.Exit(1)
		}

		fmt.Printf("Set %s = %s\n", key, value)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a configuration value.

Examples:
  splitrail config get engine.timezone
  splitrail config get decoders.disabled`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := requireConfig()

		key := args[0]
		value, err := cfg.Get(key)
		if err != nil {
			fmtErr("get config: %v", err)
			os.Exit(1)
		}

		if value == "" {
			fmt.Printf("%s (not set)\n", key)
		} else {
			// Trim trailing newlines for cleaner output
			value = strings.TrimRight(value, "\n")
			fmt.Println(value)
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}
