// Package extract turns document files into page-oriented text for the viewer and upload preview.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PlainPageLines is how many lines of a text file form one viewer page.
const PlainPageLines = 50

// Page is one page of extracted text. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Document is the extracted text of a file, page by page.
type Document struct {
	Name  string
	Pages []Page
}

// Text joins all pages with a newline.
func (d *Document) Text() string {
	parts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n")
}

// WordCount counts whitespace-separated words across all pages.
func (d *Document) WordCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(strings.Fields(p.Text))
	}
	return n
}

// Page returns page n (1-based) and whether it exists.
func (d *Document) Page(n int) (Page, bool) {
	if n < 1 || n > len(d.Pages) {
		return Page{}, false
	}
	return d.Pages[n-1], true
}

// Extractor extracts pages from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and splits it into pages.
// PDF pages, spreadsheet sheets and presentation slides map to pages one to one.
// Word documents split at explicit page breaks; plain text splits at form feeds
// and then every PlainPageLines lines.
func (e *Extractor) Extract(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Base(path))
}

// ExtractBytes extracts pages from content, choosing the format from name's extension.
func (e *Extractor) ExtractBytes(content []byte, name string) (*Document, error) {
	var (
		texts []string
		err   error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		texts, err = extractPDF(content)
	case ".docx":
		texts, err = extractDOCX(content)
	case ".xlsx":
		texts, err = extractExcel(content)
	case ".pptx":
		texts, err = extractPPTX(content)
	case ".odp":
		texts, err = extractODP(content)
	case ".ods":
		texts, err = extractODS(content)
	default:
		// Unknown extension: treat as plain text
		texts, err = extractPlain(content)
	}
	if err != nil {
		return nil, err
	}
	doc := &Document{Name: name, Pages: make([]Page, 0, len(texts))}
	for i, t := range texts {
		doc.Pages = append(doc.Pages, Page{Number: i + 1, Text: t})
	}
	if len(doc.Pages) == 0 {
		doc.Pages = append(doc.Pages, Page{Number: 1})
	}
	return doc, nil
}

// paginateLines splits text into pages of at most n lines.
func paginateLines(text string, n int) []string {
	lines := strings.Split(text, "\n")
	var pages []string
	for len(lines) > 0 {
		end := n
		if end > len(lines) {
			end = len(lines)
		}
		pages = append(pages, strings.Join(lines[:end], "\n"))
		lines = lines[end:]
	}
	return pages
}
