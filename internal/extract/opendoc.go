package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// openDocContentPath holds the body of every OpenDocument package.
const openDocContentPath = "content.xml"

var (
	odfText      = regexp.MustCompile(`<text:(?:p|h|span)[^>]*>([^<]*)</text:(?:p|h|span)>`)
	odpPageStart = regexp.MustCompile(`<draw:page[ >]`)
	odsSheet     = regexp.MustCompile(`<table:table[ >]`)
)

// extractODP returns one page per draw:page.
func extractODP(content []byte) ([]string, error) {
	body, err := openDocContent(content, "ODP")
	if err != nil {
		return nil, err
	}
	return splitOpenDoc(body, odpPageStart), nil
}

// extractODS returns one page per table:table (sheet).
func extractODS(content []byte) ([]string, error) {
	body, err := openDocContent(content, "ODS")
	if err != nil {
		return nil, err
	}
	return splitOpenDoc(body, odsSheet), nil
}

func openDocContent(content []byte, kind string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	data, err := readZipFile(zr, openDocContentPath)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", kind, err)
	}
	if data == nil {
		return "", fmt.Errorf("extract %s: %s not found", kind, openDocContentPath)
	}
	return string(data), nil
}

// splitOpenDoc cuts body at each start match; text before the first match is ignored
// unless there is no match at all.
func splitOpenDoc(body string, start *regexp.Regexp) []string {
	idx := start.FindAllStringIndex(body, -1)
	if len(idx) == 0 {
		return []string{joinMatches(odfText.FindAllStringSubmatch(body, -1), " ")}
	}
	pages := make([]string, 0, len(idx))
	for i, loc := range idx {
		end := len(body)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		section := body[loc[0]:end]
		pages = append(pages, strings.TrimSpace(joinMatches(odfText.FindAllStringSubmatch(section, -1), " ")))
	}
	return pages
}
