package uploader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
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

type fakeBackend struct {
	mu        sync.Mutex
	uploads   []string
	bodies    []string
	externals []models.ExternalUpload
	err       error
}

func (f *fakeBackend) Upload(_ context.Context, filename string, r io.Reader, ws string) (*models.UploadResult, error) {
	data, _ := io.ReadAll(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.uploads = append(f.uploads, filename+"@"+ws)
	f.bodies = append(f.bodies, string(data))
	return &models.UploadResult{DocID: "doc-" + filename, Name: filename, Words: 2, Chunks: 1}, nil
}

func (f *fakeBackend) UploadExternal(_ context.Context, in models.ExternalUpload) (*models.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.externals = append(f.externals, in)
	return &models.UploadResult{DocID: "ext-1"}, nil
}

func newUploader(t *testing.T, fb *fakeBackend, opts ...Option) (*Uploader, *workspace.Store, storage.Storage) {
	t.Helper()
	st := storage.NewMemoryStorage()
	ws := workspace.Open(context.Background(), st)
	return New(fb, st, ws, opts...), ws, st
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestUpload_TagsAndRecords(t *testing.T) {
	fb := &fakeBackend{}
	u, ws, _ := newUploader(t, fb)
	ctx := context.Background()
	path := writeTemp(t, "notes.txt", "hello world")

	rec, err := u.Upload(ctx, path, "Legal")
	require.NoError(t, err)
	assert.Equal(t, "doc-notes.txt", rec.DocID)
	assert.Equal(t, "Legal", rec.Workspace)
	assert.Equal(t, []string{"notes.txt@Legal"}, fb.uploads)
	assert.Equal(t, []string{"hello world"}, fb.bodies)
	assert.Equal(t, "Legal", ws.ResolveWorkspace("doc-notes.txt"))

	recs, err := u.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, path, recs[0].Path)
}

func TestUpload_DefaultWorkspace(t *testing.T) {
	fb := &fakeBackend{}
	u, _, _ := newUploader(t, fb)
	_, err := u.Upload(context.Background(), writeTemp(t, "a.pdf", "%PDF"), "  ")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf@" + models.DefaultWorkspace}, fb.uploads)
}

func TestUpload_RejectsUnsupported(t *testing.T) {
	fb := &fakeBackend{}
	u, _, _ := newUploader(t, fb)

	for _, name := range []string{"a.docx", "b.xlsx", "c"} {
		_, err := u.Upload(context.Background(), writeTemp(t, name, "x"), "")
		assert.ErrorIs(t, err, ErrUnsupported, name)
	}
	assert.Empty(t, fb.uploads)
	assert.True(t, Supported("X.PDF"))
}

func TestUpload_BackendError(t *testing.T) {
	fb := &fakeBackend{err: errors.New("413")}
	u, ws, _ := newUploader(t, fb)

	_, err := u.Upload(context.Background(), writeTemp(t, "a.txt", "x"), "Legal")
	require.Error(t, err)
	assert.Empty(t, ws.Tags())
	recs, err := u.Records(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestUploadIfNew_Dedupes(t *testing.T) {
	fb := &fakeBackend{}
	u, _, _ := newUploader(t, fb)
	ctx := context.Background()
	path := writeTemp(t, "a.txt", "one")

	_, uploaded, err := u.UploadIfNew(ctx, path, "")
	require.NoError(t, err)
	assert.True(t, uploaded)

	rec, uploaded, err := u.UploadIfNew(ctx, path, "")
	require.NoError(t, err)
	assert.False(t, uploaded)
	assert.Equal(t, "doc-a.txt", rec.DocID)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(path, []byte("one two"), 0600))
	require.NoError(t, os.Chtimes(path, later, later))
	_, uploaded, err = u.UploadIfNew(ctx, path, "")
	require.NoError(t, err)
	assert.True(t, uploaded)
	assert.Len(t, fb.uploads, 2)
}

func TestUpload_PublishesEvent(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan events.DocumentsChanged, 1)
	require.NoError(t, bus.OnDocumentsChanged(ctx, func(ev events.DocumentsChanged) { got <- ev }))

	u, _, _ := newUploader(t, &fakeBackend{}, WithBus(bus))
	_, err := u.Upload(ctx, writeTemp(t, "a.txt", "x"), "")
	require.NoError(t, err)

	select {
	case ev := <-got:
		assert.Equal(t, events.ReasonUpload, ev.Reason)
		assert.Equal(t, "doc-a.txt", ev.DocumentID)
	case <-time.After(2 * time.Second):
		t.Fatal("upload not announced")
	}
}

func TestUploadExternal(t *testing.T) {
	fb := &fakeBackend{}
	u, ws, _ := newUploader(t, fb)
	ctx := context.Background()

	_, err := u.UploadExternal(ctx, "ftp://example.com/a.pdf", "", "")
	assert.ErrorIs(t, err, ErrInvalidURL)
	_, err = u.UploadExternal(ctx, "not a url", "", "")
	assert.ErrorIs(t, err, ErrInvalidURL)

	rec, err := u.UploadExternal(ctx, "https://example.com/files/report.pdf", "", "Research")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", rec.Name)
	require.Len(t, fb.externals, 1)
	assert.Equal(t, models.ExternalUpload{URL: "https://example.com/files/report.pdf", Name: "report.pdf", Workspace: "Research"}, fb.externals[0])
	assert.Equal(t, "Research", ws.ResolveWorkspace("ext-1"))
}

func TestPreview(t *testing.T) {
	u, _, _ := newUploader(t, &fakeBackend{})
	p, err := u.Preview(writeTemp(t, "a.txt", "alpha beta\ngamma"))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", p.Name)
	assert.Equal(t, 1, p.Pages)
	assert.Equal(t, 3, p.Words)
	require.Len(t, p.Chunks, 1)
	assert.Equal(t, "alpha beta gamma", p.Chunks[0].Text)

	_, err = u.Preview(writeTemp(t, "a.md", "x"))
	assert.ErrorIs(t, err, ErrUnsupported)
}
