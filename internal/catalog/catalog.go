// Package catalog merges the server document list with the local workspace overlay.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/dociq/internal/events"
	"github.com/hyperjump/dociq/internal/models"
	"github.com/hyperjump/dociq/internal/workspace"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// DefaultTTL is how long a fetched document list is reused.
const DefaultTTL = 30 * time.Second

const documentsKey = "documents"

// Lister fetches the server document list. *api.Client implements it.
type Lister interface {
	ListDocuments(ctx context.Context) ([]models.DocumentRef, error)
}

// Catalog is safe for concurrent use.
type Catalog struct {
	lister    Lister
	workspace *workspace.Store
	bus       *events.Bus
	logger    *zap.Logger
	ttl       time.Duration

	cache *cache.Cache

	mu    sync.Mutex
	index *titleIndex
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// WithTTL sets the document list cache lifetime. Zero or negative disables caching.
func WithTTL(ttl time.Duration) Option {
	return func(c *Catalog) { c.ttl = ttl }
}

// WithBus publishes moves and listens for changes on bus.
func WithBus(bus *events.Bus) Option {
	return func(c *Catalog) { c.bus = bus }
}

// New creates a Catalog. The workspace store provides the overlay.
func New(lister Lister, ws *workspace.Store, opts ...Option) *Catalog {
	c := &Catalog{
		lister:    lister,
		workspace: ws,
		logger:    zap.NewNop(),
		ttl:       DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	// No janitor: expired entries are simply misses.
	c.cache = cache.New(c.ttl, 0)
	return c
}

// Documents returns the server list in server order, from cache when fresh.
func (c *Catalog) Documents(ctx context.Context) ([]models.DocumentRef, error) {
	if v, ok := c.cache.Get(documentsKey); ok {
		return v.([]models.DocumentRef), nil
	}
	return c.Refresh(ctx)
}

// Refresh fetches the server list, caches it and rebuilds the title index.
func (c *Catalog) Refresh(ctx context.Context) ([]models.DocumentRef, error) {
	docs, err := c.lister.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	idx, err := newTitleIndex(docs)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	old := c.index
	c.index = idx
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	if c.ttl > 0 {
		c.cache.Set(documentsKey, docs, cache.DefaultExpiration)
	}
	c.logger.Debug("document list refreshed", zap.Int("documents", len(docs)))
	return docs, nil
}

// Invalidate forces the next Documents call to refetch.
func (c *Catalog) Invalidate() {
	c.cache.Delete(documentsKey)
}

// Get returns the document with id from the current list.
func (c *Catalog) Get(ctx context.Context, id string) (models.DocumentRef, bool, error) {
	docs, err := c.Documents(ctx)
	if err != nil {
		return models.DocumentRef{}, false, err
	}
	for _, d := range docs {
		if d.ID == id {
			return d, true, nil
		}
	}
	return models.DocumentRef{}, false, nil
}

// Visible returns the documents of workspace, optionally narrowed by a title filter,
// in server order.
func (c *Catalog) Visible(ctx context.Context, ws, filter string) ([]models.DocumentRef, error) {
	docs, err := c.Documents(ctx)
	if err != nil {
		return nil, err
	}
	docs = c.workspace.Filter(docs, ws)

	c.mu.Lock()
	var ids map[string]struct{}
	if c.index != nil {
		ids, err = c.index.match(filter)
	}
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if ids == nil {
		return docs, nil
	}
	out := make([]models.DocumentRef, 0, len(docs))
	for _, d := range docs {
		if _, ok := ids[d.ID]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// Move tags a document with a workspace and announces the change.
func (c *Catalog) Move(ctx context.Context, id, ws string) error {
	if err := c.workspace.TagDocument(ctx, id, ws); err != nil {
		return err
	}
	if c.bus != nil {
		if err := c.bus.PublishDocumentsChanged(events.DocumentsChanged{Reason: events.ReasonMove, DocumentID: id}); err != nil {
			c.logger.Warn("announce move", zap.Error(err))
		}
	}
	return nil
}

// Watch invalidates the cached list whenever another component reports a server-side
// change. It returns once subscribed; the subscription ends with ctx.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.bus == nil {
		return nil
	}
	return c.bus.OnDocumentsChanged(ctx, func(ev events.DocumentsChanged) {
		if ev.Reason == events.ReasonMove {
			// The overlay is read live; the server list is unchanged.
			return
		}
		c.logger.Debug("document list invalidated", zap.String("reason", ev.Reason))
		c.Invalidate()
	})
}

// Close releases the title index.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index == nil {
		return nil
	}
	err := c.index.Close()
	c.index = nil
	return err
}
