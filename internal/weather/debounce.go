package weather

import (
	"context"
	"sync"
	"time"
)

// DefaultQuietInterval is how long a location must stay unchanged before it is resolved.
const DefaultQuietInterval = 500 * time.Millisecond

// Debouncer coalesces bursts of location changes into one resolution per settled location.
//
// At most one task is pending. Each Submit stops the pending task, advances the
// State generation and re-arms the timer, so a task that already started for an
// older location still runs but its result is dropped by the State.
type Debouncer struct {
	service *Service
	quiet   time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timer  *time.Timer
	latest string
	closed bool

	wg sync.WaitGroup
}

// NewDebouncer creates a Debouncer whose resolutions run under ctx.
func NewDebouncer(ctx context.Context, service *Service, quiet time.Duration) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Debouncer{
		service: service,
		quiet:   quiet,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit schedules a resolution of location after the quiet interval.
// Blank locations are ignored and leave the State untouched. It reports
// whether a task was scheduled.
func (d *Debouncer) Submit(location string) bool {
	if NormalizeKey(location) == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}

	d.stopPendingLocked()

	gen := d.service.state.Advance()
	d.latest = location

	d.wg.Add(1)
	d.timer = time.AfterFunc(d.quiet, func() {
		defer d.wg.Done()
		d.service.resolve(d.ctx, gen, location)
	})
	return true
}

// Latest returns the most recently submitted location, or "" if none.
func (d *Debouncer) Latest() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest
}

// Refresh re-submits the latest location. It reports whether a task was scheduled.
func (d *Debouncer) Refresh() bool {
	return d.Submit(d.Latest())
}

// Close drops the pending task, cancels running resolutions and waits for them to return.
// Nothing is published after Close, so the State keeps its last value.
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.stopPendingLocked()
	// Runs still in flight must not publish once closed.
	d.service.state.Advance()
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

func (d *Debouncer) stopPendingLocked() {
	if d.timer != nil && d.timer.Stop() {
		// The callback will never run; release its slot.
		d.wg.Done()
	}
	d.timer = nil
}
