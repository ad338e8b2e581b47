// Package viewer is the page-oriented text surface documents are read and selected in.
package viewer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/dociq/internal/extract"
	"github.com/hyperjump/dociq/internal/models"
	"github.com/hyperjump/dociq/internal/selection"
)

// Source fetches the original PDF of a server document. *api.Client implements it.
type Source interface {
	DownloadPDF(ctx context.Context, id string) ([]byte, error)
}

// Open downloads and extracts a server document.
func Open(ctx context.Context, src Source, ex *extract.Extractor, ref models.DocumentRef) (*Viewer, error) {
	data, err := src.DownloadPDF(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", ref.ID, err)
	}
	doc, err := ex.ExtractBytes(data, ref.ID+".pdf")
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", ref.ID, err)
	}
	return New(ref.ID, ref.DisplayTitle(), doc), nil
}

// Viewer tracks the shown page, a line cursor and an optional selection anchor.
// It is not safe for concurrent use; the terminal UI owns it.
type Viewer struct {
	docID    string
	filename string
	doc      *extract.Document
	page     int
	cursor   int
	anchor   int
}

// New shows doc starting at page 1.
func New(docID, filename string, doc *extract.Document) *Viewer {
	return &Viewer{docID: docID, filename: filename, doc: doc, page: 1, anchor: -1}
}

func (v *Viewer) DocumentID() string { return v.docID }
func (v *Viewer) Filename() string   { return v.filename }
func (v *Viewer) Page() int          { return v.page }
func (v *Viewer) PageCount() int     { return len(v.doc.Pages) }
func (v *Viewer) Cursor() int        { return v.cursor }

// Lines returns the lines of the current page.
func (v *Viewer) Lines() []string {
	p, ok := v.doc.Page(v.page)
	if !ok {
		return nil
	}
	return strings.Split(p.Text, "\n")
}

// GoTo moves to page n. It reports whether the page changed; moving drops the selection.
func (v *Viewer) GoTo(n int) bool {
	if n < 1 || n > v.PageCount() || n == v.page {
		return false
	}
	v.page = n
	v.cursor = 0
	v.anchor = -1
	return true
}

func (v *Viewer) NextPage() bool { return v.GoTo(v.page + 1) }
func (v *Viewer) PrevPage() bool { return v.GoTo(v.page - 1) }

// MoveCursor moves the line cursor by delta, clamped to the page.
func (v *Viewer) MoveCursor(delta int) {
	v.cursor += delta
	if last := len(v.Lines()) - 1; v.cursor > last {
		v.cursor = last
	}
	if v.cursor < 0 {
		v.cursor = 0
	}
}

// Mark starts a selection at the cursor, or drops it when one is active.
func (v *Viewer) Mark() {
	if v.anchor >= 0 {
		v.anchor = -1
		return
	}
	v.anchor = v.cursor
}

// Selecting reports whether an anchor is set.
func (v *Viewer) Selecting() bool { return v.anchor >= 0 }

// ClearSelection drops the anchor.
func (v *Viewer) ClearSelection() { v.anchor = -1 }

// SelectedRange returns the inclusive line range between anchor and cursor.
func (v *Viewer) SelectedRange() (from, to int, ok bool) {
	if v.anchor < 0 {
		return 0, 0, false
	}
	from, to = v.anchor, v.cursor
	if from > to {
		from, to = to, from
	}
	return from, to, true
}

// Selection packages the selected lines for the selection bridge. top is the screen row of
// the page's first line, used for the bounding box.
func (v *Viewer) Selection(top int) selection.Selection {
	from, to, ok := v.SelectedRange()
	if !ok {
		return selection.Selection{Page: v.page}
	}
	lines := v.Lines()
	picked := lines[from : to+1]
	width := 0
	for _, l := range picked {
		if n := utf8.RuneCountInString(l); n > width {
			width = n
		}
	}
	p, _ := v.doc.Page(v.page)
	return selection.Selection{
		Text:      strings.Join(picked, "\n"),
		Page:      v.page,
		LineIndex: from,
		PageText:  p.Text,
		Rect:      selection.Rect{X: 0, Y: top + from, Width: width, Height: to - from + 1},
	}
}
