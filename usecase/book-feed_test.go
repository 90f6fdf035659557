package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/cryptoview/go-orderbook-sync/domain"
	promclient "github.com/cryptoview/go-orderbook-sync/infrastructure/prometheus"
	"github.com/cryptoview/go-orderbook-sync/provider"
	"github.com/cryptoview/go-orderbook-sync/provider/binance"
)

type stubAdapter struct {
	requiresSeed bool
}

func (a *stubAdapter) Venue() domain.Venue { return domain.VenueBinance }

func (a *stubAdapter) Endpoint() string { return "wss://example.invalid/ws" }

func (a *stubAdapter) SubscribeFrames(symbol *domain.MarketSymbol) ([][]byte, error) {
	return nil, nil
}

func (a *stubAdapter) Decode(raw []byte) ([]domain.AdapterEvent, error) { return nil, nil }

func (a *stubAdapter) RequiresSeed() bool { return a.requiresSeed }

// newTestFeed wires a feed without a supervisor so sink methods can be
// driven directly, the way the supervisor goroutine would.
func newTestFeed(t *testing.T, requiresSeed bool, validator domain.DepthUpdateValidator) (*BookFeed, chan *domain.FeedUpdate) {
	t.Helper()
	symbol, err := domain.NewMarketSymbol("BTC", "USDT")
	if err != nil {
		t.Fatal(err)
	}

	comps := &provider.VenueComponents{
		Adapter:   &stubAdapter{requiresSeed: requiresSeed},
		Validator: validator,
	}
	feed := NewBookFeed(symbol, 10, time.Millisecond, provider.SupervisorConfig{}, comps, domain.NewSnapshotCache())

	out := make(chan *domain.FeedUpdate, 64)
	feed.throttle = NewPublishThrottle(time.Millisecond, feed.buildUpdate, out)
	feed.setState(domain.StateConnecting)
	t.Cleanup(feed.throttle.Stop)

	return feed, out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seqUpsert(side domain.BookSide, price, size string, first, final int64) domain.AdapterEvent {
	ev := domain.NewUpsertEvent(side, dec(price), dec(size))
	ev.FirstUpdateID = first
	ev.FinalUpdateID = final
	return ev
}

func TestBookFeed_SnapshotVenueAppliesImmediately(t *testing.T) {
	feed, _ := newTestFeed(t, false, nil)

	err := feed.ApplyEvent(domain.NewSnapshotEvent(
		[]domain.PriceLevel{{Price: dec("10100"), Size: dec("1")}},
		[]domain.PriceLevel{{Price: dec("10000"), Size: dec("2")}},
	))
	assert.NoError(t, err)

	err = feed.ApplyEvent(domain.NewUpsertEvent(domain.SideBid, dec("9990"), dec("3")))
	assert.NoError(t, err)

	snap := feed.book.Snapshot(0)
	assert.Len(t, snap.Asks, 1)
	assert.Len(t, snap.Bids, 2)
}

func TestBookFeed_BuffersDeltasUntilSeed(t *testing.T) {
	feed, _ := newTestFeed(t, true, &binance.DepthUpdateValidator{})

	err := feed.ApplyEvent(seqUpsert(domain.SideBid, "10000", "1", 101, 101))
	assert.NoError(t, err)
	assert.Empty(t, feed.book.Snapshot(0).Bids, "deltas before the seed must not touch the book")
	assert.Equal(t, 1, feed.pending.Len())

	feed.Seed(&domain.DepthSnapshot{
		LastUpdateID: 100,
		Asks:         []domain.PriceLevel{{Price: dec("10100"), Size: dec("1")}},
		Bids:         []domain.PriceLevel{{Price: dec("9990"), Size: dec("2")}},
	})

	snap := feed.book.Snapshot(0)
	assert.Len(t, snap.Bids, 2, "the buffered delta should be drained after the seed")
	assert.Equal(t, int64(101), feed.book.LastUpdateID())
	assert.Zero(t, feed.pending.Len())

	_, ok := feed.cache.Get(feed.venue, feed.symbol)
	assert.True(t, ok, "seeding should refresh the last-known-good cache")
}

func TestBookFeed_SkipsOutdatedBatches(t *testing.T) {
	feed, _ := newTestFeed(t, true, &binance.DepthUpdateValidator{})
	feed.Seed(&domain.DepthSnapshot{LastUpdateID: 100})

	// Covered by the seed snapshot already: silently dropped.
	err := feed.ApplyEvent(seqUpsert(domain.SideBid, "10000", "1", 90, 95))
	assert.NoError(t, err)
	assert.Empty(t, feed.book.Snapshot(0).Bids)
	assert.Equal(t, int64(100), feed.book.LastUpdateID())
}

func TestBookFeed_ReseedsAfterConsecutiveGaps(t *testing.T) {
	feed, _ := newTestFeed(t, true, &binance.DepthUpdateValidator{})
	feed.Seed(&domain.DepthSnapshot{LastUpdateID: 100})

	// Five gapped batches are tolerated as transient reordering.
	for i := int64(0); i < 5; i++ {
		err := feed.ApplyEvent(seqUpsert(domain.SideBid, "10000", "1", 200+10*i, 209+10*i))
		assert.NoError(t, err)
	}

	err := feed.ApplyEvent(seqUpsert(domain.SideBid, "10000", "1", 300, 309))
	assert.ErrorIs(t, err, domain.ErrUpdateOutOfSequence,
		"a sixth consecutive gap should recycle the connection")
	assert.Empty(t, feed.book.Snapshot(0).Bids, "gapped batches must never reach the book")
}

func TestBookFeed_ValidBatchResetsGapCount(t *testing.T) {
	feed, _ := newTestFeed(t, true, &binance.DepthUpdateValidator{})
	feed.Seed(&domain.DepthSnapshot{LastUpdateID: 100})

	for i := int64(0); i < 4; i++ {
		assert.NoError(t, feed.ApplyEvent(seqUpsert(domain.SideBid, "10000", "1", 200+10*i, 209+10*i)))
	}

	// A valid batch heals the run.
	assert.NoError(t, feed.ApplyEvent(seqUpsert(domain.SideBid, "10000", "1", 101, 110)))
	assert.Equal(t, int64(110), feed.book.LastUpdateID())

	for i := int64(0); i < 5; i++ {
		assert.NoError(t, feed.ApplyEvent(seqUpsert(domain.SideBid, "10005", "1", 400+10*i, 409+10*i)),
			"the gap budget should start over after a valid batch")
	}
}

func TestBookFeed_ReconnectResetsSeedGate(t *testing.T) {
	feed, _ := newTestFeed(t, true, &binance.DepthUpdateValidator{})
	feed.Seed(&domain.DepthSnapshot{LastUpdateID: 100})

	feed.StateChanged(domain.StateConnecting)

	err := feed.ApplyEvent(seqUpsert(domain.SideBid, "10000", "1", 101, 101))
	assert.NoError(t, err)
	assert.Equal(t, 1, feed.pending.Len(),
		"a fresh connection must buffer deltas until the new seed arrives")
}

func TestBookFeed_PublishCachedReseedsBook(t *testing.T) {
	feed, out := newTestFeed(t, false, nil)

	observed := time.Now().Add(-time.Minute)
	cached := &domain.BookSnapshot{
		Venue:      domain.VenueBinance,
		Symbol:     feed.symbol.String(),
		Asks:       []domain.DepthLevel{{Price: dec("10100"), Size: dec("1")}},
		Bids:       []domain.DepthLevel{{Price: dec("10000"), Size: dec("2")}},
		ObservedAt: observed,
	}
	feed.PublishCached(&domain.CachedBook{Snapshot: cached, StoredAt: observed})

	update := receiveUpdate(t, out)
	assert.Equal(t, domain.StateFallbackCache, update.State)
	assert.False(t, update.Live)
	assert.Len(t, update.Book.Asks, 1)
	assert.Equal(t, "10000", update.Book.Bids[0].Price.String())
	assert.Equal(t, "100", update.Book.Spread.String())
	assert.Equal(t, observed, update.Book.ObservedAt,
		"the cached observation time is preserved so staleness stays visible")
}

func TestBookFeed_PublishSyntheticReplacesBook(t *testing.T) {
	feed, out := newTestFeed(t, false, nil)

	feed.PublishSynthetic(provider.SyntheticSnapshot(dec("10000"), 5))

	update := receiveUpdate(t, out)
	assert.Equal(t, domain.StateFallbackSynthetic, update.State)
	assert.False(t, update.Live)
	assert.Len(t, update.Book.Asks, 5)
	assert.Len(t, update.Book.Bids, 5)
}

func TestBookFeed_LiveUpdatesRefreshCache(t *testing.T) {
	feed, out := newTestFeed(t, false, nil)

	feed.StateChanged(domain.StateConnected)

	update := receiveUpdate(t, out)
	assert.True(t, update.Live)
	assert.Equal(t, domain.StateConnected, update.State)

	_, ok := feed.cache.Get(feed.venue, feed.symbol)
	assert.True(t, ok, "live emissions should keep the fallback cache warm")
}

func TestBookFeed_StopIsIdempotent(t *testing.T) {
	symbol, err := domain.NewMarketSymbol("BTC", "USDT")
	if err != nil {
		t.Fatal(err)
	}

	comps := &provider.VenueComponents{Adapter: &stubAdapter{}}
	supCfg := provider.SupervisorConfig{
		MaxReconnectAttempts: 1,
		BackoffInitial:       time.Millisecond,
		BackoffMax:           2 * time.Millisecond,
		RestRetryCount:       1,
		RestTimeout:          10 * time.Millisecond,
		RestPollInterval:     time.Millisecond,
	}
	feed := NewBookFeed(symbol, 10, time.Millisecond, supCfg, comps, domain.NewSnapshotCache())

	before := testutil.ToFloat64(promclient.OpenOrderBookGauge)
	sub := feed.Start(context.Background())
	assert.Equal(t, before+1, testutil.ToFloat64(promclient.OpenOrderBookGauge))

	// Both Unsubscribe and the feed manager can reach Stop; the second call
	// must not tear down twice.
	sub.Unsubscribe()
	feed.Stop()

	assert.Equal(t, before, testutil.ToFloat64(promclient.OpenOrderBookGauge),
		"the open-books gauge should drop exactly once")
	for range sub.Stream {
	}
}

func TestBookFeed_ControlEventsAreNoops(t *testing.T) {
	feed, _ := newTestFeed(t, false, nil)

	assert.NoError(t, feed.ApplyEvent(domain.NewHeartbeatEvent()))
	assert.NoError(t, feed.ApplyEvent(domain.NewSubscriptionConfirmedEvent("42")))
	assert.Zero(t, feed.book.Sequence())
}
