// Package uploader sends local files and remote URLs to the backend for ingestion
// and records what was sent.
package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/dociq/internal/events"
	"github.com/hyperjump/dociq/internal/extract"
	"github.com/hyperjump/dociq/internal/fileid"
	"github.com/hyperjump/dociq/internal/models"
	"github.com/hyperjump/dociq/internal/storage"
	"github.com/hyperjump/dociq/internal/workspace"
	"go.uber.org/zap"
)

// SupportedExtensions are the file types the backend ingests.
var SupportedExtensions = []string{".pdf", ".txt"}

var (
	ErrUnsupported = errors.New("unsupported file type (only .pdf and .txt)")
	ErrInvalidURL  = errors.New("external upload needs an http(s) URL")
)

// recordPrefix namespaces upload records in local storage.
const recordPrefix = "uploads."

// Backend is the subset of the API used for uploads. *api.Client implements it.
type Backend interface {
	Upload(ctx context.Context, filename string, r io.Reader, workspace string) (*models.UploadResult, error)
	UploadExternal(ctx context.Context, in models.ExternalUpload) (*models.UploadResult, error)
}

// Record describes one completed upload.
type Record struct {
	DocID      string    `json:"docId"`
	Name       string    `json:"name"`
	Path       string    `json:"path,omitempty"`
	URL        string    `json:"url,omitempty"`
	Workspace  string    `json:"workspace"`
	Words      int       `json:"words"`
	Chunks     int       `json:"chunks"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Preview is what a local file will look like once ingested.
type Preview struct {
	Name   string
	Pages  int
	Words  int
	Chunks []Chunk
}

// Uploader is safe for concurrent use.
type Uploader struct {
	backend   Backend
	store     storage.Storage
	workspace *workspace.Store
	bus       *events.Bus
	extractor *extract.Extractor
	chunker   *Chunker
	logger    *zap.Logger
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(u *Uploader) { u.logger = l }
}

// WithBus announces uploads on bus.
func WithBus(bus *events.Bus) Option {
	return func(u *Uploader) { u.bus = bus }
}

// New creates an Uploader. Records are kept in st; uploaded documents are tagged in ws.
func New(backend Backend, st storage.Storage, ws *workspace.Store, opts ...Option) *Uploader {
	u := &Uploader{
		backend:   backend,
		store:     st,
		workspace: ws,
		extractor: extract.NewExtractor(),
		chunker:   NewChunker(BackendChunkWords, 0),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Supported reports whether path has an ingestible extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Preview extracts path locally and estimates the backend chunks.
func (u *Uploader) Preview(path string) (*Preview, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
	}
	doc, err := u.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	return &Preview{
		Name:   doc.Name,
		Pages:  len(doc.Pages),
		Words:  doc.WordCount(),
		Chunks: u.chunker.Chunk(doc),
	}, nil
}

// Upload sends path into ws (the default workspace when empty), tags the new document
// locally and records the upload.
func (u *Uploader) Upload(ctx context.Context, path, ws string) (*Record, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
	}
	id, err := fileid.ForFile(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return u.upload(ctx, path, id, ws)
}

// UploadIfNew uploads path unless this version of it was uploaded before.
// It reports whether an upload happened.
func (u *Uploader) UploadIfNew(ctx context.Context, path, ws string) (*Record, bool, error) {
	if !Supported(path) {
		return nil, false, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
	}
	id, err := fileid.ForFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("stat %s: %w", path, err)
	}
	if rec, err := u.record(ctx, id); err == nil {
		u.logger.Debug("skipping already uploaded file", zap.String("path", path), zap.String("doc_id", rec.DocID))
		return rec, false, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}
	rec, err := u.upload(ctx, path, id, ws)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (u *Uploader) upload(ctx context.Context, path, id, ws string) (*Record, error) {
	ws = normalizeWorkspace(ws)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	res, err := u.backend.Upload(ctx, name, f, ws)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	abs, _ := filepath.Abs(path)
	rec := &Record{
		DocID:      res.DocID,
		Name:       firstNonEmpty(res.Name, name),
		Path:       abs,
		Workspace:  ws,
		Words:      res.Words,
		Chunks:     res.Chunks,
		UploadedAt: time.Now().UTC(),
	}
	if err := u.finish(ctx, id, rec); err != nil {
		return rec, err
	}
	u.logger.Info("uploaded",
		zap.String("file", name),
		zap.String("doc_id", rec.DocID),
		zap.String("workspace", ws),
		zap.Int("chunks", rec.Chunks))
	return rec, nil
}

// UploadExternal asks the backend to ingest a remote file.
func (u *Uploader) UploadExternal(ctx context.Context, rawURL, name, ws string) (*Record, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, ErrInvalidURL
	}
	if name == "" {
		name = filepath.Base(parsed.Path)
	}
	ws = normalizeWorkspace(ws)
	res, err := u.backend.UploadExternal(ctx, models.ExternalUpload{URL: rawURL, Name: name, Workspace: ws})
	if err != nil {
		return nil, fmt.Errorf("external upload %s: %w", rawURL, err)
	}
	rec := &Record{
		DocID:      res.DocID,
		Name:       firstNonEmpty(res.Name, name),
		URL:        rawURL,
		Workspace:  ws,
		Words:      res.Words,
		Chunks:     res.Chunks,
		UploadedAt: time.Now().UTC(),
	}
	if err := u.finish(ctx, fileid.ForPath(rawURL), rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// finish tags the document, stores the record and announces the upload.
func (u *Uploader) finish(ctx context.Context, id string, rec *Record) error {
	if rec.DocID != "" {
		if err := u.workspace.TagDocument(ctx, rec.DocID, rec.Workspace); err != nil {
			return fmt.Errorf("tag %s: %w", rec.DocID, err)
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode upload record: %w", err)
	}
	if err := u.store.SetItem(ctx, recordPrefix+id, string(data)); err != nil {
		// The upload itself succeeded; only dedupe is lost.
		u.logger.Warn("record upload", zap.String("doc_id", rec.DocID), zap.Error(err))
	}
	if u.bus != nil {
		if err := u.bus.PublishDocumentsChanged(events.DocumentsChanged{Reason: events.ReasonUpload, DocumentID: rec.DocID}); err != nil {
			u.logger.Warn("announce upload", zap.Error(err))
		}
	}
	return nil
}

func (u *Uploader) record(ctx context.Context, id string) (*Record, error) {
	raw, err := u.store.GetItem(ctx, recordPrefix+id)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode upload record: %w", err)
	}
	return &rec, nil
}

// Records lists every recorded upload, oldest first.
func (u *Uploader) Records(ctx context.Context) ([]Record, error) {
	keys, err := u.store.Keys(ctx, recordPrefix)
	if err != nil {
		return nil, fmt.Errorf("list upload records: %w", err)
	}
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		rec, err := u.record(ctx, strings.TrimPrefix(k, recordPrefix))
		if err != nil {
			u.logger.Warn("skipping unreadable upload record", zap.String("key", k), zap.Error(err))
			continue
		}
		out = append(out, *rec)
	}
	sortRecords(out)
	return out, nil
}

func normalizeWorkspace(ws string) string {
	ws = strings.TrimSpace(ws)
	if ws == "" {
		return models.DefaultWorkspace
	}
	return ws
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func sortRecords(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].UploadedAt.Before(recs[j].UploadedAt) })
}
