package usecase

import (
	"sync"
	"time"

	"github.com/cryptoview/go-orderbook-sync/domain"
	promclient "github.com/cryptoview/go-orderbook-sync/infrastructure/prometheus"
)

// PublishThrottle decouples the book's mutation rate (hundreds of events
// per second on a busy venue) from the consumer-facing emission rate.
//
// NotifyDirty is called after every applied mutation. If the minimum
// inter-emission interval has elapsed and nothing is scheduled, it emits
// immediately; otherwise it schedules exactly one emission for the rest of
// the window. Any number of dirty notifications inside one window coalesce
// into a single emission of the latest state.
type PublishThrottle struct {
	minInterval time.Duration
	build       func() *domain.FeedUpdate
	out         chan *domain.FeedUpdate

	mu       sync.Mutex
	lastEmit time.Time
	timer    *time.Timer
	stopped  bool

	startedAt time.Time
	mutations int64
	emissions int64
	snapTotal time.Duration
}

// NewPublishThrottle wires a throttle to its snapshot producer and output
// channel. The throttle owns the channel and closes it on Stop.
func NewPublishThrottle(minInterval time.Duration, build func() *domain.FeedUpdate, out chan *domain.FeedUpdate) *PublishThrottle {
	if minInterval <= 0 {
		minInterval = 200 * time.Millisecond
	}
	return &PublishThrottle{
		minInterval: minInterval,
		build:       build,
		out:         out,
		startedAt:   time.Now(),
	}
}

func (t *PublishThrottle) NotifyDirty() {
	t.mu.Lock()
	t.mutations++

	if t.stopped || t.timer != nil {
		t.mu.Unlock()
		return
	}

	// lastEmit moves forward inside the same critical section that decides
	// to emit, so a racing notification cannot start a second emission in
	// the same window.
	elapsed := time.Since(t.lastEmit)
	if elapsed >= t.minInterval {
		t.lastEmit = time.Now()
		t.mu.Unlock()
		t.emit()
		return
	}

	t.timer = time.AfterFunc(t.minInterval-elapsed, func() {
		t.mu.Lock()
		t.timer = nil
		t.lastEmit = time.Now()
		t.mu.Unlock()
		t.emit()
	})
	t.mu.Unlock()
}

func (t *PublishThrottle) emit() {
	start := time.Now()
	update := t.build()
	took := time.Since(start)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	t.lastEmit = time.Now()
	t.emissions++
	t.snapTotal += took
	update.Perf = t.statsLocked()

	promclient.EmissionsTotal.Inc()

	select {
	case t.out <- update:
	default:
		// Slow consumer. Dropping keeps the hot path unblocked; the next
		// emission carries newer state anyway.
	}
}

// Stats returns the current performance counters.
func (t *PublishThrottle) Stats() domain.PerfStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statsLocked()
}

func (t *PublishThrottle) statsLocked() domain.PerfStats {
	stats := domain.PerfStats{
		Mutations: t.mutations,
		Emissions: t.emissions,
	}
	if secs := time.Since(t.startedAt).Seconds(); secs > 0 {
		stats.EmissionsPerSec = float64(t.emissions) / secs
	}
	if t.emissions > 0 {
		stats.MeanSnapshotTime = t.snapTotal / time.Duration(t.emissions)
	}
	return stats
}

// Stop cancels any scheduled emission and closes the output channel.
func (t *PublishThrottle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	close(t.out)
}
