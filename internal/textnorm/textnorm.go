// Package textnorm provides the text normalization shared by scoring and deduplication.
package textnorm

import "strings"

// Normalize lowercases s and collapses every whitespace run into a single space.
// Leading and trailing whitespace is dropped.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
