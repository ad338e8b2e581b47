package chat

import (
	"fmt"
	"strings"

	"github.com/hyperjump/dociq/internal/models"
	"github.com/hyperjump/dociq/pkg/utils"
)

// snippetSeparator separates snippet blocks from each other and from the typed text.
const snippetSeparator = "\n\n"

// FormatSnippet renders one snippet as "[<file> p.<page> <start>-<end>] <text>".
func FormatSnippet(s models.Snippet) string {
	return fmt.Sprintf("[%s p.%d %d-%d] %s", utils.ShortenFilename(s.Filename), s.Page, s.Start, s.End, s.Text)
}

// AssembleQuery combines snippets and typed input into the string sent to the answer endpoint.
// Snippets come first in insertion order; the result is trimmed.
func AssembleQuery(snippets []models.Snippet, input string) string {
	blocks := make([]string, 0, len(snippets))
	for _, s := range snippets {
		blocks = append(blocks, FormatSnippet(s))
	}
	q := strings.Join(blocks, snippetSeparator) + snippetSeparator + input
	return strings.TrimSpace(q)
}
