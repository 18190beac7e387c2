// Package checksum computes content digests used as note ETags.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of text.
func Sum(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// Matches reports whether an If-Match header value agrees with text.
// An empty header always matches; surrounding quotes are ignored.
func Matches(ifMatch, text string) bool {
	ifMatch = strings.Trim(strings.TrimSpace(ifMatch), `"`)
	if ifMatch == "" || ifMatch == "*" {
		return true
	}
	return ifMatch == Sum(text)
}
