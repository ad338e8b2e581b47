package selection

import (
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/hyperjump/dociq/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu    sync.Mutex
	snips []models.Snippet
}

func (r *recordingSink) Emit(s models.Snippet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snips = append(r.snips, s)
}

func (r *recordingSink) emitted() []models.Snippet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Snippet{}, r.snips...)
}

func TestBridge_ReleaseShowsAffordanceBelowSelection(t *testing.T) {
	b := NewBridge(&recordingSink{})
	b.SetActiveDocument("doc1", "policy.pdf")

	aff := b.Release(Selection{Text: "refunds", Page: 2, Rect: Rect{X: 4, Y: 10, Width: 7, Height: 2}})
	assert.Equal(t, Affordance{Visible: true, X: 4, Y: 12}, aff)
	assert.Equal(t, aff, b.Affordance())
}

func TestBridge_EmptySelectionHidesAffordance(t *testing.T) {
	b := NewBridge(&recordingSink{})
	b.SetActiveDocument("doc1", "policy.pdf")

	b.Release(Selection{Text: "refunds"})
	aff := b.Release(Selection{Text: "  \n "})
	assert.False(t, aff.Visible)

	b.Release(Selection{Text: "refunds"})
	b.Clear()
	assert.False(t, b.Affordance().Visible)
}

func TestBridge_ActivateEmitsSnippet(t *testing.T) {
	sink := &recordingSink{}
	b := NewBridge(sink)
	b.SetActiveDocument("doc1", "policy.pdf")

	page := "Terms\nRefunds within 30 days.\nShipping"
	b.Release(Selection{Text: "within 30 days", Page: 2, LineIndex: 1, PageText: page})

	snip, ok := b.Activate()
	require.True(t, ok)
	assert.NotEmpty(t, snip.ID)
	assert.Equal(t, "doc1", snip.DocumentID)
	assert.Equal(t, "policy.pdf", snip.Filename)
	assert.Equal(t, "within 30 days", snip.Text)
	assert.Equal(t, 2, snip.Page)
	assert.Equal(t, 14, snip.Start)
	assert.Equal(t, 28, snip.End)

	assert.Equal(t, []models.Snippet{snip}, sink.emitted())
	assert.False(t, b.Affordance().Visible)

	_, ok = b.Activate()
	assert.False(t, ok, "selection is cleared after activation")
}

func TestBridge_NoActiveDocumentNeverEmits(t *testing.T) {
	sink := &recordingSink{}
	b := NewBridge(sink)

	for _, text := range []string{"a", "some text", "multi\nline", "  padded  ", "ünïcödé"} {
		b.Release(Selection{Text: text, Page: 1})
		_, ok := b.Activate()
		assert.False(t, ok)
	}

	b.SetActiveDocument("doc1", "a.pdf")
	b.Release(Selection{Text: "x"})
	b.ClearActiveDocument()
	_, ok := b.Activate()
	assert.False(t, ok)

	assert.Empty(t, sink.emitted())
}

func TestBridge_Accept(t *testing.T) {
	sink := &recordingSink{}
	b := NewBridge(sink)

	_, err := b.Accept(models.SelectionEvent{Text: "x"})
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = b.Accept(models.SelectionEvent{DocumentID: "doc1", Text: " "})
	assert.ErrorIs(t, err, ErrEmptySelection)

	snip, err := b.Accept(models.SelectionEvent{DocumentID: "doc1", Filename: "a.pdf", Text: "hello", Page: 3, Start: 5, End: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, snip.Page)
	assert.Equal(t, 5, snip.Start)
	assert.Equal(t, 10, snip.End)
	assert.Len(t, sink.emitted(), 1)
}

func TestEstimateOffsets(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		line      int
		text      string
		wantStart int
	}{
		{"unknown page first line", "", 0, "abc", 0},
		{"unknown page uses line width", "", 3, "abc", 3 * AssumedLineWidth},
		{"negative line", "", -2, "abc", 0},
		{"start of line", "ab\ncd\nef", 2, "ef", 6},
		{"inside line", "ab\nxxcd", 1, "cd", 5},
		{"multi rune lines", "ünï\ncode", 1, "de", 6},
		{"line past end", "ab\ncd", 9, "zz", 6},
		{"text not on line", "ab\ncd", 1, "zz", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := EstimateOffsets(tt.page, tt.line, tt.text)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, utf8.RuneCountInString(tt.text), end-start)

			again, _ := EstimateOffsets(tt.page, tt.line, tt.text)
			assert.Equal(t, start, again)
		})
	}
}
