// Package config provides configuration file support for splitrail.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Piebald-AI/splitrail/pkg/statedir"
)

// Config represents the splitrail configuration, stored at
// <state dir>/config.yaml.
type Config struct {
	Decoders   DecodersConfig   `yaml:"decoders"`
	Engine     EngineConfig     `yaml:"engine"`
	Logging    LoggingConfig    `yaml:"logging"`
	Formatting FormattingConfig `yaml:"formatting"`
}

// DecodersConfig selects which source decoders run.
type DecodersConfig struct {
	// Enabled lists decoder tags to run. Empty means every registered
	// decoder.
	Enabled []string `yaml:"enabled"`
	// Disabled lists decoder tags to skip, applied after Enabled.
	Disabled []string `yaml:"disabled"`
}

// EngineConfig tunes the re-aggregation engine.
type EngineConfig struct {
	// DebounceMS is the quiet window before a burst of change events for
	// one path collapses into a single invalidation.
	DebounceMS int `yaml:"debounce_ms"`
	// Workers bounds the decode worker pool. 0 means NumCPU.
	Workers int `yaml:"workers"`
	// Timezone picks the date-bucketing reference: "local" or "utc".
	Timezone string `yaml:"timezone"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// FormattingConfig controls number display in the stats table.
type FormattingConfig struct {
	NumberComma   bool   `yaml:"number_comma"`
	NumberHuman   bool   `yaml:"number_human"`
	Locale        string `yaml:"locale"`
	DecimalPlaces int    `yaml:"decimal_places"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Decoders: DecodersConfig{},
		Engine: EngineConfig{
			DebounceMS: 250,
			Workers:    0,
			Timezone:   "local",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Formatting: FormattingConfig{
			NumberComma:   false,
			NumberHuman:   false,
			Locale:        "en",
			DecimalPlaces: 2,
		},
	}
}

// Load loads configuration from the state directory.
// Returns default config if the file doesn't exist.
func Load() (*Config, error) {
	cfg := Default()
	cfgPath, err := statedir.ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return cfg, nil // No config file is OK, use defaults
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// Save writes configuration to the state directory.
func Save(cfg *Config) error {
	cfgPath, err := statedir.ConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Set updates one configuration value by its dotted key, validating
// the value. The caller persists with Save.
func (c *Config) Set(key, value string) error {
	switch key {
	case "engine.debounce_ms":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("engine.debounce_ms must be a non-negative integer")
		}
		c.Engine.DebounceMS = n
	case "engine.workers":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("engine.workers must be a non-negative integer")
		}
		c.Engine.Workers = n
	case "engine.timezone":
		if value != "local" && value != "utc" {
			return fmt.Errorf("engine.timezone must be \"local\" or \"utc\"")
		}
		c.Engine.Timezone = value
	case "decoders.enabled":
		tags, err := parseTagList(value)
		if err != nil {
			return fmt.Errorf("decoders.enabled: %w", err)
		}
		c.Decoders.Enabled = tags
	case "decoders.disabled":
		tags, err := parseTagList(value)
		if err != nil {
			return fmt.Errorf("decoders.disabled: %w", err)
		}
		c.Decoders.Disabled = tags
	case "logging.level":
		switch value {
		case "debug", "info", "warn", "error":
			c.Logging.Level = value
		default:
			return fmt.Errorf("logging.level must be one of debug, info, warn, error")
		}
	case "logging.format":
		if value != "text" && value != "json" {
			return fmt.Errorf("logging.format must be \"text\" or \"json\"")
		}
		c.Logging.Format = value
	case "formatting.number_comma":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("formatting.number_comma must be true or false")
		}
		c.Formatting.NumberComma = b
	case "formatting.number_human":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("formatting.number_human must be true or false")
		}
		c.Formatting.NumberHuman = b
	case "formatting.locale":
		c.Formatting.Locale = value
	case "formatting.decimal_places":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 6 {
			return fmt.Errorf("formatting.decimal_places must be an integer between 0 and 6")
		}
		c.Formatting.DecimalPlaces = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// Get returns one configuration value by its dotted key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "engine.debounce_ms":
		return strconv.Itoa(c.Engine.DebounceMS), nil
	case "engine.workers":
		return strconv.Itoa(c.Engine.Workers), nil
	case "engine.timezone":
		return c.Engine.Timezone, nil
	case "decoders.enabled":
		return formatTagList(c.Decoders.Enabled), nil
	case "decoders.disabled":
		return formatTagList(c.Decoders.Disabled), nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.format":
		return c.Logging.Format, nil
	case "formatting.number_comma":
		return strconv.FormatBool(c.Formatting.NumberComma), nil
	case "formatting.number_human":
		return strconv.FormatBool(c.Formatting.NumberHuman), nil
	case "formatting.locale":
		return c.Formatting.Locale, nil
	case "formatting.decimal_places":
		return strconv.Itoa(c.Formatting.DecimalPlaces), nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// parseTagList accepts either a YAML list or a comma-separated string.
func parseTagList(value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}
	if strings.HasPrefix(strings.TrimSpace(value), "[") {
		var tags []string
		if err := yaml.Unmarshal([]byte(value), &tags); err != nil {
			return nil, fmt.Errorf("not a valid list: %w", err)
		}
		return tags, nil
	}
	var tags []string
	for _, tag := range strings.Split(value, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}

func formatTagList(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return strings.Join(tags, ",")
}

// Debounce returns the configured debounce window.
func (c *Config) Debounce() time.Duration {
	if c.Engine.DebounceMS <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(c.Engine.DebounceMS) * time.Millisecond
}

// Location resolves the date-bucketing timezone. Anything other than "utc"
// means the process-local zone.
func (c *Config) Location() *time.Location {
	if c.Engine.Timezone == "utc" {
		return time.UTC
	}
	return time.Local
}

// DecoderEnabled reports whether a decoder tag should run.
func (c *Config) DecoderEnabled(tag string) bool {
	for _, d := range c.Decoders.Disabled {
		if d == tag {
			return false
		}
	}
	if len(c.Decoders.Enabled) == 0 {
		return true
	}
	for _, e := range c.Decoders.Enabled {
		if e == tag {
			return true
		}
	}
	return false
}
