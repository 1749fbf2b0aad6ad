package decoder

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashText returns the hex SHA-256 of s. Decoders use it to derive
// stable identifiers (conversation, project, event) from provider
// strings and paths.
func HashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
