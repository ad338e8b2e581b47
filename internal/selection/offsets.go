package selection

import (
	"strings"
	"unicode/utf8"
)

// AssumedLineWidth is used to estimate offsets when the page text is unknown.
const AssumedLineWidth = 80

// EstimateOffsets approximates the character range of text on a page from the line
// the selection starts on. Offsets count runes. The estimate is deterministic and
// end-start always equals the rune length of text.
func EstimateOffsets(pageText string, lineIndex int, text string) (start, end int) {
	if lineIndex < 0 {
		lineIndex = 0
	}
	n := utf8.RuneCountInString(text)
	if pageText == "" {
		start = lineIndex * AssumedLineWidth
		return start, start + n
	}

	lines := strings.Split(pageText, "\n")
	if lineIndex > len(lines) {
		lineIndex = len(lines)
	}
	for _, line := range lines[:lineIndex] {
		start += utf8.RuneCountInString(line) + 1
	}
	if lineIndex < len(lines) {
		// Refine within the line when the selection starts inside it.
		line := lines[lineIndex]
		if i := strings.Index(line, firstLine(text)); i > 0 {
			start += utf8.RuneCountInString(line[:i])
		}
	}
	return start, start + n
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
