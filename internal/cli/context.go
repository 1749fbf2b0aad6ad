package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/Piebald-AI/splitrail/internal/engine"
	"github.com/Piebald-AI/splitrail/pkg/color"
	"github.com/Piebald-AI/splitrail/pkg/config"
	"github.com/Piebald-AI/splitrail/pkg/format"
)

// requireConfig loads the configuration, or exits with error.
func requireConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmtErr("load config: %v", err)
		os.Exit(1)
	}
	return cfg
}

// requireEngine loads the configuration and opens the engine, or exits
// with error. Opening runs a reconcile cycle unless the stored snapshot
// already matches the sources.
func requireEngine(ctx context.Context) (*engine.Engine, *config.Config) {
	cfg := requireConfig()
	eng, err := engine.Open(ctx, cfg)
	if err != nil {
		fmtErr("open engine: %v", err)
		os.Exit(1)
	}
	return eng, cfg
}

// formatOptions builds number rendering options from config.
func formatOptions(cfg *config.Config) format.Options {
	return format.Options{
		Comma:         cfg.Formatting.NumberComma,
		Human:         cfg.Formatting.NumberHuman,
		Locale:        cfg.Formatting.Locale,
		DecimalPlaces: cfg.Formatting.DecimalPlaces,
	}
}

// progressEnabled reports whether progress bars should render: never
// alongside JSON output, never on a dumb terminal.
func progressEnabled() bool {
	if jsonOutput {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

func fmtErr(format string, args ...any) {
	// Colorize the error prefix
	prefix := "splitrail: "
	if color.Enabled() {
		prefix = color.Error("splitrail:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
