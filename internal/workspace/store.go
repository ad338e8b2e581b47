// Package workspace keeps the client-local document → workspace overlay and the set of
// known workspace names.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hyperjump/dociq/internal/models"
	"github.com/hyperjump/dociq/internal/storage"
	"go.uber.org/zap"
)

// Storage keys, shared with earlier browser builds of the client.
const (
	TagsKey       = "vectormind.tags"
	WorkspacesKey = "vectormind.workspaces"
)

// BaseWorkspaces always exist, in this order.
var BaseWorkspaces = []string{models.DefaultWorkspace, "Research", "Academic", "Fun", "Literature", "Travel"}

// ErrInvalidName is returned for blank workspace names.
var ErrInvalidName = errors.New("workspace name must not be blank")

// Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	storage storage.Storage
	logger  *zap.Logger
	tags    map[string]string
	custom  []string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report storage problems.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open loads the overlay from st. Missing or corrupt entries load as empty;
// Open never fails because of stored content.
func Open(ctx context.Context, st storage.Storage, opts ...Option) *Store {
	s := &Store{
		storage: st,
		logger:  zap.NewNop(),
		tags:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	if raw, ok := s.read(ctx, TagsKey); ok {
		var tags map[string]string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			s.logger.Warn("discarding corrupt workspace tags", zap.Error(err))
		} else if tags != nil {
			s.tags = tags
		}
	}
	if raw, ok := s.read(ctx, WorkspacesKey); ok {
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			s.logger.Warn("discarding corrupt custom workspaces", zap.Error(err))
		} else {
			s.custom = names
		}
	}
}

func (s *Store) read(ctx context.Context, key string) (string, bool) {
	raw, err := s.storage.GetItem(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false
	}
	if err != nil {
		s.logger.Warn("local storage unavailable", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return raw, true
}

// TagDocument sets or overwrites the workspace of a document and persists the full mapping.
func (s *Store) TagDocument(ctx context.Context, documentID, workspace string) error {
	workspace = strings.TrimSpace(workspace)
	if workspace == "" {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.tags[documentID]
	s.tags[documentID] = workspace
	if err := s.persist(ctx, TagsKey, s.tags); err != nil {
		if had {
			s.tags[documentID] = prev
		} else {
			delete(s.tags, documentID)
		}
		return err
	}
	return nil
}

// ResolveWorkspace returns the document's tag, or the default workspace.
func (s *Store) ResolveWorkspace(documentID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws, ok := s.tags[documentID]; ok && ws != "" {
		return ws
	}
	return models.DefaultWorkspace
}

// CreateWorkspace adds name to the custom set unless already present (exact, case-sensitive)
// and persists it. It does not tag any document.
func (s *Store) CreateWorkspace(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.custom {
		if n == name {
			return nil
		}
	}
	s.custom = append(s.custom, name)
	if err := s.persist(ctx, WorkspacesKey, s.custom); err != nil {
		s.custom = s.custom[:len(s.custom)-1]
		return err
	}
	return nil
}

// ListWorkspaces returns base names first, then custom names in creation order,
// then names that only appear as tags (sorted). Duplicates are removed.
func (s *Store) ListWorkspaces() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(BaseWorkspaces)+len(s.custom))
	out := make([]string, 0, len(BaseWorkspaces)+len(s.custom))
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, n := range BaseWorkspaces {
		add(n)
	}
	for _, n := range s.custom {
		add(n)
	}
	tagged := make([]string, 0, len(s.tags))
	for _, ws := range s.tags {
		tagged = append(tagged, ws)
	}
	sort.Strings(tagged)
	for _, n := range tagged {
		add(n)
	}
	return out
}

// Tags returns a copy of the document → workspace mapping.
func (s *Store) Tags() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.tags))
	for k, v := range s.tags {
		out[k] = v
	}
	return out
}

// Filter returns the documents that resolve to workspace, preserving order.
func (s *Store) Filter(docs []models.DocumentRef, workspace string) []models.DocumentRef {
	out := make([]models.DocumentRef, 0, len(docs))
	for _, d := range docs {
		if s.ResolveWorkspace(d.ID) == workspace {
			out = append(out, d)
		}
	}
	return out
}

// persist must be called with s.mu held.
func (s *Store) persist(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.storage.SetItem(ctx, key, string(data)); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}
