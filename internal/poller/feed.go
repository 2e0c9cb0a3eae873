// Package poller keeps client-side views of the repair request
// collection fresh by periodic re-fetching.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/domain"
)

// DefaultInterval is the refresh period when none is configured.
const DefaultInterval = 5 * time.Second

// Fetcher reads the current collection.
type Fetcher interface {
	Fetch(ctx context.Context) ([]domain.RepairRequest, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]domain.RepairRequest, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]domain.RepairRequest, error) {
	return f(ctx)
}

// ApplyFunc receives a complete replacement collection.
type ApplyFunc func(records []domain.RepairRequest)

// Feed delivers successive full snapshots until stopped. A push-based
// transport can implement Feed without changing views.
type Feed interface {
	// Start begins delivery. Once stop returns apply is not called again.
	Start(ctx context.Context, apply ApplyFunc) (stop func())
}

// Ticker is the tick source for a PollingFeed.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker returns a Ticker backed by time.Ticker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// PollingFeed fetches once immediately and then on every tick.
type PollingFeed struct {
	Fetcher   Fetcher
	Interval  time.Duration
	NewTicker func(time.Duration) Ticker
	Logger    *zap.Logger
}

// NewPollingFeed returns a feed over fetcher with the given period.
func NewPollingFeed(fetcher Fetcher, interval time.Duration, logger *zap.Logger) *PollingFeed {
	return &PollingFeed{Fetcher: fetcher, Interval: interval, Logger: logger}
}

func (f *PollingFeed) Start(ctx context.Context, apply ApplyFunc) func() {
	interval := f.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	newTicker := f.NewTicker
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(ctx)
	g := &guard{apply: apply, logger: logger}
	ticker := newTicker(interval)
	loopDone := make(chan struct{})

	go func() {
		defer close(loopDone)
		defer ticker.Stop()
		f.poll(ctx, g)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				f.poll(ctx, g)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.stop()
			cancel()
			<-loopDone
		})
	}
}

// poll fetches in its own goroutine so a slow backend never delays the
// next tick. Results may therefore arrive out of order.
func (f *PollingFeed) poll(ctx context.Context, g *guard) {
	seq := g.issue()
	go func() {
		records, err := f.Fetcher.Fetch(ctx)
		g.deliver(seq, records, err)
	}()
}

// guard discards results that arrive after stop or after a newer
// result was already applied.
type guard struct {
	apply  ApplyFunc
	logger *zap.Logger

	issued  atomic.Uint64
	stopped atomic.Bool

	mu      sync.Mutex
	applied uint64
}

func (g *guard) issue() uint64 {
	return g.issued.Add(1)
}

// stop waits for a delivery in progress. apply must not call stop.
func (g *guard) stop() {
	g.stopped.Store(true)
	g.mu.Lock()
	g.mu.Unlock()
}

func (g *guard) deliver(seq uint64, records []domain.RepairRequest, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped.Load() || seq <= g.applied {
		return
	}
	if err != nil {
		g.logger.Warn("poll failed; keeping previous snapshot", zap.Uint64("seq", seq), zap.Error(err))
		return
	}
	g.applied = seq
	if records == nil {
		records = []domain.RepairRequest{}
	}
	g.apply(records)
}
