// Package statedir resolves splitrail's on-disk state layout.
//
// Everything the engine persists lives under one root: ~/.splitrail by
// default, overridable with the SPLITRAIL_HOME environment variable (used
// heavily by tests to point at a temp directory).
package statedir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Piebald-AI/splitrail/pkg/errclass"
)

// EnvHome overrides the default state directory location.
const EnvHome = "SPLITRAIL_HOME"

// Root returns the state directory without creating it.
func Root() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errclass.ErrHomeUnavailable.WithMessagef("cannot resolve home directory: %v", err)
	}
	return filepath.Join(home, ".splitrail"), nil
}

// CacheDir returns <root>/cache, creating it if missing.
func CacheDir() (string, error) {
	return ensureSubdir("cache")
}

// SnapshotsDir returns <root>/snapshots, creating it if missing.
func SnapshotsDir() (string, error) {
	return ensureSubdir("snapshots")
}

// ConfigPath returns <root>/config.yaml. The file may not exist.
func ConfigPath() (string, error) {
	root, err := Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "config.yaml"), nil
}

// JournalPath returns <root>/journal.jsonl. The file may not exist.
func JournalPath() (string, error) {
	root, err := Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "journal.jsonl"), nil
}

func ensureSubdir(name string) (string, error) {
	root, err := Root()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s dir: %w", name, err)
	}
	return dir, nil
}
