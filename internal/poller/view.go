package poller

import (
	"context"
	"sync"

	"github.com/spec-kit/repair-service/internal/domain"
)

// View is one displayed collection. Views never share state.
type View struct {
	filter domain.RequestFilter

	mu       sync.RWMutex
	records  []domain.RepairRequest
	version  uint64
	closed   bool
	updates  chan struct{}
	stopFeed func()
}

// Open starts feed and returns a view showing records matching filter.
func Open(ctx context.Context, feed Feed, filter domain.RequestFilter) *View {
	v := &View{
		filter:  filter,
		records: []domain.RepairRequest{},
		updates: make(chan struct{}, 1),
	}
	stop := feed.Start(ctx, v.apply)
	v.mu.Lock()
	v.stopFeed = stop
	closed := v.closed
	v.mu.Unlock()
	if closed {
		stop()
	}
	return v
}

func (v *View) apply(records []domain.RepairRequest) {
	filtered := v.filter.Apply(records)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.records = filtered
	v.version++
	select {
	case v.updates <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the latest records.
func (v *View) Snapshot() []domain.RepairRequest {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]domain.RepairRequest{}, v.records...)
}

// Version counts applied snapshots.
func (v *View) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Updates signals after each applied snapshot. Signals coalesce; the
// channel is closed by Close.
func (v *View) Updates() <-chan struct{} {
	return v.updates
}

// Close stops refreshing. Once Close returns the snapshot never changes.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	close(v.updates)
	stop := v.stopFeed
	v.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Closed reports whether Close has been called.
func (v *View) Closed() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.closed
}
