// Package checksum computes content digests used for optimistic
// concurrency on note updates.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Match reports whether an If-Match header value names current.
// Surrounding ETag quotes on the header value are ignored.
func Match(current, header string) bool {
	return strings.Trim(header, `"`) == current
}
