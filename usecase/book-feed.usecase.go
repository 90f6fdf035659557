package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gammazero/deque"

	"github.com/cryptoview/go-orderbook-sync/domain"
	"github.com/cryptoview/go-orderbook-sync/helpers"
	promclient "github.com/cryptoview/go-orderbook-sync/infrastructure/prometheus"
	"github.com/cryptoview/go-orderbook-sync/provider"
)

var logger = log.New(os.Stdout, "[book-feed] ", log.LstdFlags)

// A run of out-of-sequence batches this long means the local book has
// genuinely diverged; the connection is recycled so the seed is refetched.
const outOfSeqLimit = 5

// BookFeed is one connection worker: it owns the order book exclusively,
// applies events handed over by the supervisor (always from the
// supervisor's goroutine), and republishes through the throttle. It
// implements provider.BookSink.
type BookFeed struct {
	venue      domain.Venue
	symbol     *domain.MarketSymbol
	depthLimit int
	interval   time.Duration

	supCfg   provider.SupervisorConfig
	comps    *provider.VenueComponents
	cache    *domain.SnapshotCache
	book     *domain.OrderBook
	throttle *PublishThrottle
	sup      *provider.Supervisor

	// Seed gating for delta-only venues. Touched only from the supervisor
	// goroutine.
	seeded        bool
	pending       deque.Deque[domain.AdapterEvent]
	batchFinal    int64
	batchErr      error
	outOfSeqCount int

	// Published-state label, written by the supervisor goroutine and read
	// by the throttle's timer.
	mu    sync.Mutex
	state domain.ConnState

	stopOnce sync.Once
}

func NewBookFeed(
	symbol *domain.MarketSymbol,
	depthLimit int,
	publishInterval time.Duration,
	supCfg provider.SupervisorConfig,
	comps *provider.VenueComponents,
	cache *domain.SnapshotCache,
) *BookFeed {
	venue := comps.Adapter.Venue()
	return &BookFeed{
		venue:      venue,
		symbol:     symbol,
		depthLimit: depthLimit,
		interval:   publishInterval,
		supCfg:     supCfg,
		comps:      comps,
		cache:      cache,
		book:       domain.NewOrderBook(venue, symbol),
	}
}

// Start launches the supervisor and returns the consumer subscription.
// Updates arrive at most once per publish interval; the stream closes
// after Stop.
func (f *BookFeed) Start(ctx context.Context) *domain.Subscription[*domain.FeedUpdate] {
	out := make(chan *domain.FeedUpdate, 16)
	f.setState(domain.StateConnecting)

	f.throttle = NewPublishThrottle(f.interval, f.buildUpdate, out)
	f.sup = provider.NewSupervisor(f.supCfg, f.comps.Adapter, f.comps.SyncAPI, f.cache, f)

	go f.sup.Run(ctx)
	promclient.OpenOrderBookGauge.Inc()

	return &domain.Subscription[*domain.FeedUpdate]{
		Stream:      out,
		Unsubscribe: f.Stop,
		Topic:       fmt.Sprintf("%s:%s", f.venue, f.symbol),
	}
}

// Stop performs the clean, caller-initiated teardown: the supervisor
// closes with a normal close code (so no reconnect is attempted), and only
// after it has fully wound down is the stream closed. Used both for
// shutdown and for venue switching, which must never leave two live
// workers behind. Reachable from both Subscription.Unsubscribe and the
// feed manager, so it runs once.
func (f *BookFeed) Stop() {
	f.stopOnce.Do(func() {
		f.sup.Shutdown()
		<-f.sup.Done()
		logger.Printf("%s:%s stopped, stats %s", f.venue, f.symbol, helpers.ToJsonString(f.throttle.Stats()))
		f.throttle.Stop()
		promclient.OpenOrderBookGauge.Dec()
	})
}

// NetworkRestored forwards the external connectivity signal.
func (f *BookFeed) NetworkRestored() {
	f.sup.NetworkRestored()
}

// State reports the supervisor's current state.
func (f *BookFeed) State() domain.ConnState {
	return f.sup.State()
}

// ApplyEvent handles one live event from the supervisor goroutine.
func (f *BookFeed) ApplyEvent(ev domain.AdapterEvent) error {
	switch ev.Type {
	case domain.EventHeartbeat:
		return nil

	case domain.EventSubscriptionConfirmed:
		logger.Printf("%s: subscription confirmed, channel=%s", f.venue, ev.ChannelID)
		return nil

	case domain.EventSnapshot:
		f.book.ApplyEvent(ev)
		f.seeded = true
		promclient.AppliedUpdatesTotal.Inc()
		f.throttle.NotifyDirty()
		return nil

	case domain.EventUpsert, domain.EventRemove:
		if f.comps.Adapter.RequiresSeed() && !f.seeded {
			// The REST seed is still in flight; buffer so no delta is
			// lost in the gap.
			f.pending.PushBack(ev)
			return nil
		}
		return f.applyDelta(ev)

	default:
		return nil
	}
}

func (f *BookFeed) applyDelta(ev domain.AdapterEvent) error {
	if f.comps.Validator != nil && ev.FinalUpdateID > 0 {
		if ev.FinalUpdateID != f.batchFinal {
			f.batchErr = f.comps.Validator.Validate(ev.FirstUpdateID, ev.FinalUpdateID, f.book.LastUpdateID())
			f.batchFinal = ev.FinalUpdateID
		}

		if f.batchErr != nil {
			if errors.Is(f.batchErr, domain.ErrUpdateOutdated) {
				return nil
			}
			f.outOfSeqCount++
			if f.outOfSeqCount > outOfSeqLimit {
				return fmt.Errorf("%d consecutive gaps, book needs reseeding: %w", f.outOfSeqCount, f.batchErr)
			}
			logger.Printf("%s: dropped out-of-sequence update (%d/%d)", f.venue, f.outOfSeqCount, outOfSeqLimit)
			return nil
		}
		f.outOfSeqCount = 0

		f.book.ApplyEvent(ev)
		f.book.SetLastUpdateID(ev.FinalUpdateID)
	} else {
		f.book.ApplyEvent(ev)
	}

	promclient.AppliedUpdatesTotal.Inc()
	f.throttle.NotifyDirty()
	return nil
}

// Seed installs a REST snapshot: both sides replaced, venue sequence
// recorded, buffered deltas drained through the validator, cache updated.
func (f *BookFeed) Seed(snap *domain.DepthSnapshot) {
	f.book.ApplySnapshot(domain.SideAsk, snap.Asks)
	f.book.ApplySnapshot(domain.SideBid, snap.Bids)
	f.book.SetLastUpdateID(snap.LastUpdateID)
	f.seeded = true
	f.batchFinal = 0
	f.batchErr = nil

	for f.pending.Len() > 0 {
		ev := f.pending.PopFront()
		if err := f.applyDelta(ev); err != nil {
			// The live stream will hit the same gap and recycle the
			// connection.
			logger.Printf("%s: draining buffered deltas: %v", f.venue, err)
			break
		}
	}

	f.storeCache()
	f.throttle.NotifyDirty()
}

// PublishCached reseeds the book from the last-known-good snapshot, keeping
// its original observation time so consumers can show how stale it is.
func (f *BookFeed) PublishCached(entry *domain.CachedBook) {
	f.book.ApplySnapshot(domain.SideAsk, domain.Levels(entry.Snapshot.Asks))
	f.book.ApplySnapshot(domain.SideBid, domain.Levels(entry.Snapshot.Bids))
	f.book.SetObservedAt(entry.Snapshot.ObservedAt)
	f.setState(domain.StateFallbackCache)
	f.throttle.NotifyDirty()
}

// PublishSynthetic replaces the book with generated, explicitly non-live
// levels so the consumer has something consistent to render.
func (f *BookFeed) PublishSynthetic(snap *domain.DepthSnapshot) {
	f.book.ApplySnapshot(domain.SideAsk, snap.Asks)
	f.book.ApplySnapshot(domain.SideBid, snap.Bids)
	f.setState(domain.StateFallbackSynthetic)
	f.throttle.NotifyDirty()
}

// StateChanged records the supervisor transition for the next emission.
func (f *BookFeed) StateChanged(state domain.ConnState) {
	if state == domain.StateConnecting && f.comps.Adapter.RequiresSeed() {
		// Fresh connection, fresh seed: the old venue sequence means
		// nothing on the new stream.
		f.seeded = false
		f.pending.Clear()
		f.batchFinal = 0
		f.batchErr = nil
		f.outOfSeqCount = 0
	}

	f.setState(state)
	if f.throttle != nil {
		f.throttle.NotifyDirty()
	}
}

func (f *BookFeed) setState(state domain.ConnState) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
}

// buildUpdate assembles the consumer-facing update. Called by the
// throttle (its timer goroutine); the book handles its own locking.
func (f *BookFeed) buildUpdate() *domain.FeedUpdate {
	f.mu.Lock()
	state := f.state
	f.mu.Unlock()

	snap := f.book.Snapshot(f.depthLimit)
	live := state == domain.StateConnected
	if live {
		f.cache.Put(f.venue, f.symbol, snap)
	}

	return &domain.FeedUpdate{
		Book:  snap,
		State: state,
		Live:  live,
	}
}

func (f *BookFeed) storeCache() {
	f.cache.Put(f.venue, f.symbol, f.book.Snapshot(f.depthLimit))
}
