// Package selection turns text selected in the viewer into snippets for the chat.
package selection

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hyperjump/dociq/internal/models"
	"go.uber.org/zap"
)

var (
	ErrNoDocument     = errors.New("no active document")
	ErrEmptySelection = errors.New("selection is empty")
)

// Sink receives emitted snippets. *chat.Assembler implements it.
type Sink interface {
	Emit(models.Snippet)
}

// Rect is a selection bounding box in viewer cells.
type Rect struct {
	X, Y, Width, Height int
}

// Selection is what the viewer reports when the user releases a selection.
type Selection struct {
	Text string
	Page int
	// LineIndex is the 0-based line within the page where the selection starts.
	LineIndex int
	// PageText is the page's full text when the viewer knows it.
	PageText string
	Rect     Rect
}

// Affordance is the "Add to chat" control anchored under a selection.
type Affordance struct {
	Visible bool
	X, Y    int
}

// Bridge is safe for concurrent use.
type Bridge struct {
	sink   Sink
	logger *zap.Logger

	mu         sync.Mutex
	docID      string
	filename   string
	current    *Selection
	affordance Affordance
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// NewBridge creates a bridge emitting into sink.
func NewBridge(sink Sink, opts ...Option) *Bridge {
	b := &Bridge{sink: sink, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetActiveDocument records the document the viewer shows. Any selection is dropped.
func (b *Bridge) SetActiveDocument(id, filename string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docID = id
	b.filename = filename
	b.clearLocked()
}

// ClearActiveDocument forgets the viewer document; later activations are no-ops.
func (b *Bridge) ClearActiveDocument() {
	b.SetActiveDocument("", "")
}

// ActiveDocument returns the current document id and filename.
func (b *Bridge) ActiveDocument() (string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.docID, b.filename
}

// Release handles the selection-released gesture and returns the resulting affordance.
func (b *Bridge) Release(sel Selection) Affordance {
	b.mu.Lock()
	defer b.mu.Unlock()
	if strings.TrimSpace(sel.Text) == "" {
		b.clearLocked()
		return b.affordance
	}
	s := sel
	b.current = &s
	b.affordance = Affordance{
		Visible: true,
		X:       sel.Rect.X,
		Y:       sel.Rect.Y + sel.Rect.Height,
	}
	return b.affordance
}

// Clear hides the affordance after the selection vanished (click elsewhere, scroll).
func (b *Bridge) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
}

func (b *Bridge) clearLocked() {
	b.current = nil
	b.affordance = Affordance{}
}

// Affordance returns the current affordance.
func (b *Bridge) Affordance() Affordance {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.affordance
}

// Activate emits the current selection as a snippet, then hides the affordance and
// drops the selection. It returns false without emitting when no document is active
// or nothing is selected.
func (b *Bridge) Activate() (models.Snippet, bool) {
	b.mu.Lock()
	if b.docID == "" || b.current == nil {
		b.mu.Unlock()
		return models.Snippet{}, false
	}
	sel := *b.current
	text := strings.TrimSpace(sel.Text)
	start, end := EstimateOffsets(sel.PageText, sel.LineIndex, text)
	snip := models.Snippet{
		ID:         uuid.NewString(),
		DocumentID: b.docID,
		Filename:   b.filename,
		Text:       text,
		Page:       sel.Page,
		Start:      start,
		End:        end,
	}
	b.clearLocked()
	b.mu.Unlock()

	b.sink.Emit(snip)
	b.logger.Debug("snippet emitted",
		zap.String("doc_id", snip.DocumentID),
		zap.Int("page", snip.Page),
		zap.Int("start", snip.Start),
		zap.Int("end", snip.End))
	return snip, true
}

// Accept emits a selection packaged by an external viewer, such as one posting to the bridge server.
func (b *Bridge) Accept(ev models.SelectionEvent) (models.Snippet, error) {
	if strings.TrimSpace(ev.DocumentID) == "" {
		return models.Snippet{}, ErrNoDocument
	}
	if strings.TrimSpace(ev.Text) == "" {
		return models.Snippet{}, ErrEmptySelection
	}
	snip := models.Snippet{
		ID:         uuid.NewString(),
		DocumentID: ev.DocumentID,
		Filename:   ev.Filename,
		Text:       strings.TrimSpace(ev.Text),
		Page:       ev.Page,
		Start:      ev.Start,
		End:        ev.End,
	}
	b.sink.Emit(snip)
	return snip, nil
}
