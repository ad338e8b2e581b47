package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

var (
	// wtTag matches <w:t>text</w:t> with any attributes.
	wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// wParagraph matches a whole paragraph, including attributed <w:p w:rsidR="..."> forms.
	wParagraph = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	// wPageBreak matches an explicit page break run.
	wPageBreak = regexp.MustCompile(`<w:br[^>]*w:type="page"[^>]*/>`)
	// atTag matches <a:t>text</a:t> with any attributes.
	atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	// pptxSlide captures the slide number of ppt/slides/slideN.xml.
	pptxSlide = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// readZipFile returns the named entry, or nil when absent.
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return buf.Bytes(), nil
	}
	return nil, nil
}

// findDocxMainDocumentPath reads the main document path from [Content_Types].xml.
// Returns "" when not declared.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	ct, err := readZipFile(zr, contentTypesPath)
	if err != nil || ct == nil {
		return ""
	}
	content := string(ct)
	// Try both attribute orders
	if m := partNameRe.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	if m := partNameRe2.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	return ""
}

// extractDOCX returns paragraphs as lines. A paragraph holding an explicit page break
// ends its page; long pages are cut every PlainPageLines lines.
func extractDOCX(content []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readZipFile(zr, docPath)
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return nil, fmt.Errorf("extract DOCX: %s not found", docPath)
	}

	var (
		pages []string
		lines []string
	)
	flush := func() {
		if len(lines) > 0 {
			pages = append(pages, paginateLines(strings.Join(lines, "\n"), PlainPageLines)...)
			lines = nil
		}
	}
	for _, para := range wParagraph.FindAllString(string(docXML), -1) {
		if line := paragraphText(para); line != "" {
			lines = append(lines, line)
		}
		if wPageBreak.MatchString(para) {
			flush()
		}
	}
	flush()
	return pages, nil
}

// paragraphText concatenates the runs of one paragraph. Runs carry their own spacing.
func paragraphText(para string) string {
	var b strings.Builder
	for _, m := range wtTag.FindAllStringSubmatch(para, -1) {
		b.WriteString(m[1])
	}
	return strings.TrimSpace(b.String())
}

// extractPPTX returns one page per slide, ordered by slide number.
func extractPPTX(content []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract PPTX: not a zip: %w", err)
	}
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		m := pptxSlide.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	pages := make([]string, 0, len(slides))
	for _, s := range slides {
		data, err := readZipFile(zr, s.name)
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: %w", err)
		}
		pages = append(pages, joinMatches(atTag.FindAllStringSubmatch(string(data), -1), " "))
	}
	return pages, nil
}

// joinMatches joins the trimmed first capture group of each match.
func joinMatches(matches [][]string, sep string) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		if t := strings.TrimSpace(m[1]); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, sep)
}
