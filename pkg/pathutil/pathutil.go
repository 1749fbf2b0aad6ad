// Package pathutil provides path normalization utilities for splitrail.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Piebald-AI/splitrail/pkg/errclass"
)

// Normalize returns the canonical form of a source path: cleaned and with
// Unicode normalized to NFC. macOS reports NFD file names, so without this
// the same file would carry two identities across platforms.
func Normalize(path string) string {
	return filepath.Clean(norm.NFC.String(path))
}

// ExpandHome replaces a leading "~" or "~/" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errclass.ErrHomeUnavailable.WithMessagef("cannot resolve home directory: %v", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
