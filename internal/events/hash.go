package events

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash derives the dedup identity of an event: the hex SHA-256 of
// title|start_date|venue|city. A nil venue hashes as the empty string.
func Hash(title, startDate string, venue *string, city string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{title, startDate, Deref(venue), city}, "|")))
	return hex.EncodeToString(sum[:])
}
