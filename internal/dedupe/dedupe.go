// Package dedupe computes content fingerprints used for cross-source duplicate detection.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"

	"lead_bot/internal/textnorm"
)

// Fingerprint returns the hex SHA-256 of the normalized text. Texts that differ
// only in case or whitespace share a fingerprint.
func Fingerprint(text string) string {
	h := sha256.Sum256([]byte(textnorm.Normalize(text)))
	return hex.EncodeToString(h[:])
}
