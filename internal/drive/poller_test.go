package drive

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/dociq/internal/events"
	"github.com/hyperjump/dociq/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeBackend struct {
	mu        sync.Mutex
	connected bool
	statusErr error
	block     chan struct{}
	polls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	claims    []string
	syncs     int
}

func (f *fakeBackend) DriveStatus(ctx context.Context) (bool, error) {
	f.polls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected, f.statusErr
}

func (f *fakeBackend) DriveClaim(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims = append(f.claims, key)
	return nil
}

func (f *fakeBackend) DriveSync(context.Context) (*models.DriveSyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
	return &models.DriveSyncResult{Status: "queued"}, nil
}

func (f *fakeBackend) DriveConnectURL() string { return "https://api.example/drive/connect" }

func TestPoller_PollsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	fb := &fakeBackend{connected: true}
	p := NewPoller(fb, WithInterval(5*time.Millisecond))
	p.Start(context.Background())
	p.Start(context.Background())

	require.Eventually(t, func() bool { return fb.polls.Load() >= 3 }, 2*time.Second, time.Millisecond)
	p.Stop()
	p.Stop()

	assert.True(t, p.Status().Connected)
	assert.False(t, p.Status().CheckedAt.IsZero())
}

func TestPoller_SkipsWhileInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	fb := &fakeBackend{block: make(chan struct{})}
	p := NewPoller(fb, WithInterval(2*time.Millisecond))
	p.Start(context.Background())

	require.Eventually(t, func() bool { return p.Skipped() >= 3 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(1), fb.polls.Load())
	assert.Equal(t, int32(1), fb.maxActive.Load())

	close(fb.block)
	require.Eventually(t, func() bool { return fb.polls.Load() >= 2 }, 2*time.Second, time.Millisecond)
	p.Stop()
	assert.Equal(t, int32(1), fb.maxActive.Load())
}

func TestPoller_StopCancelsOutstandingPoll(t *testing.T) {
	defer goleak.VerifyNone(t)

	fb := &fakeBackend{block: make(chan struct{})}
	p := NewPoller(fb, WithInterval(time.Hour))
	p.Start(context.Background())
	require.Eventually(t, func() bool { return fb.polls.Load() == 1 }, 2*time.Second, time.Millisecond)

	p.Stop()
	assert.Equal(t, int32(0), fb.active.Load())
}

func TestPoller_PollErrorKeepsLastState(t *testing.T) {
	fb := &fakeBackend{connected: true}
	p := NewPoller(fb)

	st, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Connected)

	fb.mu.Lock()
	fb.statusErr = errors.New("offline")
	fb.mu.Unlock()
	_, err = p.Refresh(context.Background())
	assert.Error(t, err)
	assert.True(t, p.Status().Connected)
}

func TestPoller_ClaimConnectsAnnouncesAndSyncs(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan events.DocumentsChanged, 4)
	require.NoError(t, bus.OnDocumentsChanged(ctx, func(ev events.DocumentsChanged) { got <- ev }))

	fb := &fakeBackend{}
	p := NewPoller(fb, WithBus(bus))

	res, err := p.Claim(ctx, "temp-123")
	require.NoError(t, err)
	assert.Equal(t, "queued", res.Status)
	assert.True(t, p.Status().Connected)
	assert.Equal(t, []string{"temp-123"}, fb.claims)
	assert.Equal(t, 1, fb.syncs)

	select {
	case ev := <-got:
		assert.Equal(t, events.ReasonDrive, ev.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("claim not announced")
	}
}

func TestPoller_DisconnectIsLocal(t *testing.T) {
	fb := &fakeBackend{connected: true}
	p := NewPoller(fb)
	_, err := p.Refresh(context.Background())
	require.NoError(t, err)

	p.Disconnect()
	assert.False(t, p.Status().Connected)
	assert.Equal(t, int32(1), fb.polls.Load())
	assert.Equal(t, "https://api.example/drive/connect", p.ConnectURL())
}
