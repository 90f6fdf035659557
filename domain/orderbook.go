package domain

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// OrderBook is the reconciled bid/ask state for one venue connection.
// Mutations are point operations on the side maps; sorting, cumulative
// depth and spread are derived lazily in Snapshot so that a burst of
// incoming deltas costs O(1) each regardless of book depth.
//
// The book is owned by a single feed worker. The internal mutex only
// guards against the publish timer taking a snapshot while the worker
// mutates; it is never contended by more than those two.
type OrderBook struct {
	Venue  Venue
	Symbol *MarketSymbol

	mu   sync.Mutex
	asks map[string]PriceLevel
	bids map[string]PriceLevel

	// Engine-local mutation counter, not a venue sequence number.
	sequence int64

	// Venue-native sequence of the last applied update (binance u).
	lastUpdateID int64

	observedAt time.Time
}

// DepthLevel is a published level: the raw level plus the running sum of
// size from the best level outward.
type DepthLevel struct {
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	Cumulative decimal.Decimal `json:"cumulative"`
}

// BookSnapshot is the immutable, internally consistent copy handed to
// consumers: sorted levels, cumulative sums and spread all agree.
type BookSnapshot struct {
	Venue      Venue           `json:"venue"`
	Symbol     string          `json:"symbol"`
	Asks       []DepthLevel    `json:"asks"`
	Bids       []DepthLevel    `json:"bids"`
	Spread     decimal.Decimal `json:"spread"`
	Sequence   int64           `json:"sequence"`
	ObservedAt time.Time       `json:"observedAt"`
}

func NewOrderBook(venue Venue, symbol *MarketSymbol) *OrderBook {
	return &OrderBook{
		Venue:  venue,
		Symbol: symbol,
		asks:   make(map[string]PriceLevel),
		bids:   make(map[string]PriceLevel),
	}
}

// ApplySnapshot replaces the side's contents wholesale. Levels with
// non-positive size are dropped, never stored.
func (ob *OrderBook) ApplySnapshot(side BookSide, levels []PriceLevel) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	m := make(map[string]PriceLevel, len(levels))
	for _, lvl := range levels {
		if lvl.Size.Sign() <= 0 {
			continue
		}
		m[lvl.Price.String()] = lvl
	}

	if side == SideAsk {
		ob.asks = m
	} else {
		ob.bids = m
	}
	ob.bump()
}

// ApplyUpsert inserts or overwrites the level at price. A non-positive
// size is a removal, per every venue's delta convention.
func (ob *OrderBook) ApplyUpsert(side BookSide, price, size decimal.Decimal) {
	if size.Sign() <= 0 {
		ob.ApplyRemove(side, price)
		return
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.sideMap(side)[price.String()] = PriceLevel{Price: price, Size: size}
	ob.bump()
}

// ApplyRemove deletes the level if present. Venues resend removals, so a
// missing level is a no-op, not an error.
func (ob *OrderBook) ApplyRemove(side BookSide, price decimal.Decimal) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	delete(ob.sideMap(side), price.String())
	ob.bump()
}

// ApplyEvent dispatches an adapter event onto the book. Heartbeats and
// subscription acks do not mutate state.
func (ob *OrderBook) ApplyEvent(ev AdapterEvent) {
	switch ev.Type {
	case EventSnapshot:
		// A snapshot describes the whole book: both sides are replaced,
		// and a side the frame does not carry becomes empty.
		ob.ApplySnapshot(SideAsk, ev.Asks)
		ob.ApplySnapshot(SideBid, ev.Bids)
	case EventUpsert:
		ob.ApplyUpsert(ev.Side, ev.Price, ev.Size)
	case EventRemove:
		ob.ApplyRemove(ev.Side, ev.Price)
	}
}

func (ob *OrderBook) Sequence() int64 {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.sequence
}

func (ob *OrderBook) LastUpdateID() int64 {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.lastUpdateID
}

func (ob *OrderBook) SetLastUpdateID(id int64) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.lastUpdateID = id
}

// SetObservedAt overrides the book's observation timestamp. Used when the
// book is seeded from a cached snapshot so consumers see the original,
// not current, time and can compute staleness.
func (ob *OrderBook) SetObservedAt(t time.Time) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.observedAt = t
}

// Snapshot returns an immutable copy limited to the top limit levels per
// side (limit <= 0 means no trim). Trimming applies only to the copy; the
// internal maps keep full depth. All O(n log n) derivation happens here.
func (ob *OrderBook) Snapshot(limit int) *BookSnapshot {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	asks := sortSide(ob.asks, false)
	bids := sortSide(ob.bids, true)

	spread := decimal.Zero
	if len(asks) > 0 && len(bids) > 0 {
		// A transiently crossed book yields a negative spread. Published
		// as-is; consumers decide whether to clamp.
		spread = asks[0].Price.Sub(bids[0].Price)
	}

	return &BookSnapshot{
		Venue:      ob.Venue,
		Symbol:     ob.Symbol.String(),
		Asks:       limitDepth(asks, limit),
		Bids:       limitDepth(bids, limit),
		Spread:     spread,
		Sequence:   ob.sequence,
		ObservedAt: ob.observedAt,
	}
}

func (ob *OrderBook) sideMap(side BookSide) map[string]PriceLevel {
	if side == SideAsk {
		return ob.asks
	}
	return ob.bids
}

func (ob *OrderBook) bump() {
	ob.sequence++
	ob.observedAt = time.Now()
}

func sortSide(m map[string]PriceLevel, descending bool) []DepthLevel {
	levels := make([]DepthLevel, 0, len(m))
	for _, lvl := range m {
		levels = append(levels, DepthLevel{Price: lvl.Price, Size: lvl.Size})
	}

	sort.Slice(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price.Cmp(levels[j].Price) > 0
		}
		return levels[i].Price.Cmp(levels[j].Price) < 0
	})

	cum := decimal.Zero
	for i := range levels {
		cum = cum.Add(levels[i].Size)
		levels[i].Cumulative = cum
	}

	return levels
}

func limitDepth(levels []DepthLevel, limit int) []DepthLevel {
	if limit > 0 && len(levels) > limit {
		return levels[:limit]
	}
	return levels
}
