package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain validates UTF-8 (invalid sequences become the replacement character)
// and paginates at form feeds, then every PlainPageLines lines.
func extractPlain(content []byte) ([]string, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	var pages []string
	for _, section := range strings.Split(string(content), "\f") {
		pages = append(pages, paginateLines(strings.TrimSuffix(section, "\n"), PlainPageLines)...)
	}
	return pages, nil
}
