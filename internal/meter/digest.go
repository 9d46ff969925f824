package meter

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize folds a meter name for identity purposes: lower-cased, interior
// whitespace collapsed to single spaces. "Đồng hồ  A" and "đồng hồ a" name
// the same meter.
func Normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Digest derives the meter's natural key from its branch and normalized name.
// The digest is the dedup key: a unique index on it makes create and rename
// collision checks a single insert/update instead of a lookup-then-write.
func Digest(branchID, name string) string {
	sum := sha256.Sum256([]byte(branchID + ":" + Normalize(name)))
	return hex.EncodeToString(sum[:])
}
