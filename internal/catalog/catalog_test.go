package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/dociq/internal/events"
	"github.com/hyperjump/dociq/internal/models"
	"github.com/hyperjump/dociq/internal/storage"
	"github.com/hyperjump/dociq/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	mu    sync.Mutex
	docs  []models.DocumentRef
	err   error
	calls int
}

func (f *fakeLister) ListDocuments(context.Context) ([]models.DocumentRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.docs, f.err
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func title(s string) *string { return &s }

func sampleDocs() []models.DocumentRef {
	return []models.DocumentRef{
		{ID: "a", Title: title("Refund Policy.pdf")},
		{ID: "b", Title: title("Quarterly Report.pdf")},
		{ID: "c", Title: nil},
		{ID: "d", Title: title("Travel Guide Japan.pdf")},
	}
}

func ids(docs []models.DocumentRef) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func newCatalog(t *testing.T, l Lister, opts ...Option) (*Catalog, *workspace.Store) {
	t.Helper()
	ws := workspace.Open(context.Background(), storage.NewMemoryStorage())
	c := New(l, ws, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, ws
}

func TestCatalog_CachesList(t *testing.T) {
	l := &fakeLister{docs: sampleDocs()}
	c, _ := newCatalog(t, l, WithTTL(time.Minute))
	ctx := context.Background()

	_, err := c.Documents(ctx)
	require.NoError(t, err)
	_, err = c.Documents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, l.callCount())

	c.Invalidate()
	_, err = c.Documents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, l.callCount())
}

func TestCatalog_NoCacheWhenTTLDisabled(t *testing.T) {
	l := &fakeLister{docs: sampleDocs()}
	c, _ := newCatalog(t, l, WithTTL(0))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Documents(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, l.callCount())
}

func TestCatalog_ListError(t *testing.T) {
	c, _ := newCatalog(t, &fakeLister{err: errors.New("offline")})
	_, err := c.Visible(context.Background(), models.DefaultWorkspace, "")
	assert.Error(t, err)
}

func TestCatalog_VisibleByWorkspace(t *testing.T) {
	c, ws := newCatalog(t, &fakeLister{docs: sampleDocs()})
	ctx := context.Background()
	require.NoError(t, ws.TagDocument(ctx, "d", "Travel"))

	got, err := c.Visible(ctx, models.DefaultWorkspace, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))

	got, err = c.Visible(ctx, "Travel", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, ids(got))
}

func TestCatalog_VisibleTitleFilter(t *testing.T) {
	c, _ := newCatalog(t, &fakeLister{docs: sampleDocs()})
	ctx := context.Background()

	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"a", "b", "c", "d"}},
		{"refund", []string{"a"}},
		{"quart", []string{"b"}},
		{"REPORT", []string{"b"}},
		{"refnd", []string{"a"}},
		{"untitled", []string{"c"}},
		{"travel japan", []string{"d"}},
		{"travel refund", []string{}},
		{"zzzzzz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			got, err := c.Visible(ctx, models.DefaultWorkspace, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestCatalog_MovePublishesAndFilters(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	c, ws := newCatalog(t, &fakeLister{docs: sampleDocs()}, WithBus(bus))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan events.DocumentsChanged, 1)
	require.NoError(t, bus.OnDocumentsChanged(ctx, func(ev events.DocumentsChanged) { got <- ev }))

	require.NoError(t, c.Move(ctx, "a", "Legal"))
	assert.Equal(t, "Legal", ws.ResolveWorkspace("a"))

	select {
	case ev := <-got:
		assert.Equal(t, events.ReasonMove, ev.Reason)
		assert.Equal(t, "a", ev.DocumentID)
	case <-time.After(2 * time.Second):
		t.Fatal("move not published")
	}

	visible, err := c.Visible(ctx, "Legal", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(visible))
}

func TestCatalog_MoveRejectsBlank(t *testing.T) {
	c, _ := newCatalog(t, &fakeLister{})
	assert.ErrorIs(t, c.Move(context.Background(), "a", " "), workspace.ErrInvalidName)
}

func TestCatalog_WatchInvalidatesOnUpload(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	l := &fakeLister{docs: sampleDocs()}
	c, _ := newCatalog(t, l, WithBus(bus), WithTTL(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Watch(ctx))

	_, err := c.Documents(ctx)
	require.NoError(t, err)
	require.NoError(t, bus.PublishDocumentsChanged(events.DocumentsChanged{Reason: events.ReasonUpload}))

	require.Eventually(t, func() bool {
		_, err := c.Documents(ctx)
		return err == nil && l.callCount() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCatalog_Get(t *testing.T) {
	c, _ := newCatalog(t, &fakeLister{docs: sampleDocs()})
	d, ok, err := c.Get(context.Background(), "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Quarterly Report.pdf", d.DisplayTitle())

	_, ok, err = c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
