package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Adapter normalizes one venue's wire protocol into AdapterEvents. An
// adapter holds no book state, so it can be exercised against fixed frames
// without a live connection.
type Adapter interface {
	Venue() Venue
	// Endpoint is the venue's public market-data websocket URL.
	Endpoint() string
	// SubscribeFrames returns the venue-specific JSON control frames to
	// send immediately after connect.
	SubscribeFrames(symbol *MarketSymbol) ([][]byte, error)
	// Decode translates one raw frame into zero or more events. A decode
	// error is recoverable: the caller logs it and moves on to the next
	// frame.
	Decode(raw []byte) ([]AdapterEvent, error)
	// RequiresSeed reports whether the streamed channel carries only
	// deltas, so the book must be seeded from a REST snapshot first.
	RequiresSeed() bool
}

// DepthSnapshot is a full two-sided book image fetched out of band (REST),
// used both to seed delta-only venues and by the REST fallback.
type DepthSnapshot struct {
	LastUpdateID int64
	Asks         []PriceLevel
	Bids         []PriceLevel
}

// SyncAPI fetches a DepthSnapshot over the venue's REST surface. Callers
// bound it with a context deadline.
type SyncAPI interface {
	BookSnapshot(ctx context.Context, symbol *MarketSymbol, limit int) (*DepthSnapshot, error)
}

// Subscription is a generic handle on a stream of T.
type Subscription[T any] struct {
	Stream      chan T
	Unsubscribe func()
	Topic       string
}

// MidPrice returns the midpoint of the snapshot's best levels, or zero
// when either side is empty. Used to anchor synthetic fallback books.
func (s *BookSnapshot) MidPrice() decimal.Decimal {
	if len(s.Asks) == 0 || len(s.Bids) == 0 {
		return decimal.Zero
	}
	return s.Asks[0].Price.Add(s.Bids[0].Price).Div(decimal.NewFromInt(2))
}

// Levels converts a published side back into raw price levels, used when
// re-seeding a book from a cached snapshot.
func Levels(side []DepthLevel) []PriceLevel {
	out := make([]PriceLevel, len(side))
	for i, lvl := range side {
		out[i] = PriceLevel{Price: lvl.Price, Size: lvl.Size}
	}
	return out
}
