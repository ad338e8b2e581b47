// Package drive tracks the cloud drive link: status polling, claim, sync and local disconnect.
package drive

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperjump/dociq/internal/events"
	"github.com/hyperjump/dociq/internal/models"
	"go.uber.org/zap"
)

// DefaultInterval is the status polling period.
const DefaultInterval = 30 * time.Second

// Backend is the subset of the API the poller uses. *api.Client implements it.
type Backend interface {
	DriveStatus(ctx context.Context) (bool, error)
	DriveClaim(ctx context.Context, tempKey string) error
	DriveSync(ctx context.Context) (*models.DriveSyncResult, error)
	DriveConnectURL() string
}

// Status is the last known link state.
type Status struct {
	Connected bool      `json:"connected"`
	CheckedAt time.Time `json:"checked_at"`
	// Err is the last poll failure, if the most recent poll failed.
	Err string `json:"error,omitempty"`
}

// Poller polls the link status on a fixed interval. A tick is skipped while the
// previous poll is still outstanding.
type Poller struct {
	backend  Backend
	bus      *events.Bus
	logger   *zap.Logger
	interval time.Duration

	inFlight atomic.Bool
	skipped  atomic.Int64

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// WithInterval sets the polling period.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithBus announces claims and syncs on bus.
func WithBus(bus *events.Bus) Option {
	return func(p *Poller) { p.bus = bus }
}

// NewPoller creates a stopped poller.
func NewPoller(backend Backend, opts ...Option) *Poller {
	p := &Poller{backend: backend, logger: zap.NewNop(), interval: DefaultInterval}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start polls once immediately, then on every tick until Stop or ctx ends.
// Calling Start on a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	var wg sync.WaitGroup
	defer wg.Wait()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	tick := func() {
		if !p.inFlight.CompareAndSwap(false, true) {
			p.skipped.Add(1)
			p.logger.Debug("drive poll skipped, previous still running")
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.inFlight.Store(false)
			p.poll(ctx)
		}()
	}

	tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}

// Stop ends polling and waits for the loop and any outstanding poll to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Skipped returns how many ticks were skipped because a poll was in flight.
func (p *Poller) Skipped() int64 {
	return p.skipped.Load()
}

func (p *Poller) poll(ctx context.Context) {
	connected, err := p.backend.DriveStatus(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.CheckedAt = time.Now()
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("drive status poll failed", zap.Error(err))
		}
		p.status.Err = err.Error()
		return
	}
	p.status.Connected = connected
	p.status.Err = ""
}

// Refresh polls once, synchronously.
func (p *Poller) Refresh(ctx context.Context) (Status, error) {
	connected, err := p.backend.DriveStatus(ctx)
	if err != nil {
		return p.Status(), fmt.Errorf("drive status: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = Status{Connected: connected, CheckedAt: time.Now()}
	return p.status, nil
}

// Status returns the last known state.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// ConnectURL is where the user authorizes the drive link.
func (p *Poller) ConnectURL() string {
	return p.backend.DriveConnectURL()
}

// Claim completes the authorization callback: it claims tempKey, marks the link connected,
// announces the change and starts a sync.
func (p *Poller) Claim(ctx context.Context, tempKey string) (*models.DriveSyncResult, error) {
	if err := p.backend.DriveClaim(ctx, tempKey); err != nil {
		return nil, fmt.Errorf("claim drive link: %w", err)
	}
	p.mu.Lock()
	p.status = Status{Connected: true, CheckedAt: time.Now()}
	p.mu.Unlock()
	p.announce()
	return p.Sync(ctx)
}

// Sync asks the backend to re-ingest drive files.
func (p *Poller) Sync(ctx context.Context) (*models.DriveSyncResult, error) {
	res, err := p.backend.DriveSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync drive: %w", err)
	}
	p.logger.Info("drive sync requested", zap.String("status", res.Status))
	p.announce()
	return res, nil
}

// Disconnect forgets the link locally. The backend has no revoke call.
func (p *Poller) Disconnect() {
	p.mu.Lock()
	p.status = Status{Connected: false, CheckedAt: time.Now()}
	p.mu.Unlock()
}

func (p *Poller) announce() {
	if p.bus == nil {
		return
	}
	if err := p.bus.PublishDocumentsChanged(events.DocumentsChanged{Reason: events.ReasonDrive}); err != nil {
		p.logger.Warn("announce drive change", zap.Error(err))
	}
}
