package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) ready(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func (r *recorder) has(suffix string) bool {
	for _, p := range r.snapshot() {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

// runWatcher starts w and returns a stop func that waits for Run to return.
func runWatcher(t *testing.T, w *Watcher) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	// Give fsnotify time to register roots.
	time.Sleep(100 * time.Millisecond)
	return func() {
		cancel()
		select {
		case err := <-errc:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run did not return")
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestWatcher_ReportsSettledFile(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := New(Options{Roots: []string{dir}, Extensions: []string{".txt"}, Recursive: true, Debounce: 50 * time.Millisecond}, rec.ready)
	stop := runWatcher(t, w)
	defer stop()

	path := filepath.Join(dir, "notes.txt")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(strings.Repeat("x", i+1)), 0600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "skip.xyz"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return rec.has("notes.txt") })
	time.Sleep(150 * time.Millisecond)

	got := rec.snapshot()
	if len(got) != 1 {
		t.Errorf("expected one settled report, got %v", got)
	}
}

func TestWatcher_IgnoresHiddenAndPartialFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := New(Options{Roots: []string{dir}, Debounce: 30 * time.Millisecond}, rec.ready)
	stop := runWatcher(t, w)
	defer stop()

	for _, name := range []string{".hidden.pdf", "report.pdf.crdownload", "draft.part", "ok.pdf"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, func() bool { return rec.has("ok.pdf") })
	time.Sleep(100 * time.Millisecond)

	for _, p := range rec.snapshot() {
		if !strings.HasSuffix(p, "ok.pdf") {
			t.Errorf("unexpected report %q", p)
		}
	}
}

func TestWatcher_NewFolderRecursive(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := New(Options{Roots: []string{dir}, Extensions: []string{".txt", ".pdf"}, Recursive: true, Debounce: 50 * time.Millisecond}, rec.ready)
	stop := runWatcher(t, w)
	defer stop()

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	// Let the new directories be registered before writing into them.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(nested, "deep.txt"), []byte("deep"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "ignore.xyz"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return rec.has("deep.txt") })
	if rec.has("ignore.xyz") {
		t.Error("ignore.xyz should not be reported")
	}
}

func TestWatcher_ScanExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := New(Options{Roots: []string{dir}, Extensions: []string{".txt"}, ScanExisting: true}, rec.ready)
	stop := runWatcher(t, w)
	stop()

	got := rec.snapshot()
	if len(got) != 1 || !strings.HasSuffix(got[0], "a.txt") {
		t.Errorf("non-recursive scan should report only a.txt, got %v", got)
	}
}

func TestWatcher_CreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	w := New(Options{Roots: []string{root}}, nil)
	stop := runWatcher(t, w)
	stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Run: %v", err)
	}
}

func TestWatcher_CancelDropsPending(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := New(Options{Roots: []string{dir}, Debounce: time.Hour}, rec.ready)
	stop := runWatcher(t, w)

	if err := os.WriteFile(filepath.Join(dir, "late.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	stop()

	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("pending files should be dropped on shutdown, got %v", got)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{"txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
