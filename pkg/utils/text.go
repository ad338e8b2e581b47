// Package utils provides shared utilities for text and logging.
package utils

// Truncate returns s truncated to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// ShortenFilename keeps long filenames readable inside a chat context tag:
// names over 18 runes become the first 14, an ellipsis and the last 3.
// Empty names render as "untitled".
func ShortenFilename(name string) string {
	if name == "" {
		return "untitled"
	}
	r := []rune(name)
	if len(r) <= 18 {
		return name
	}
	return string(r[:14]) + "…" + string(r[len(r)-3:])
}
