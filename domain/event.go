package domain

import "github.com/shopspring/decimal"

type Venue string

const (
	VenueBitfinex Venue = "bitfinex"
	VenueCoinbase Venue = "coinbase"
	VenueBinance  Venue = "binance"
)

type BookSide string

const (
	SideAsk BookSide = "ask"
	SideBid BookSide = "bid"
)

type EventType string

const (
	EventSnapshot              EventType = "Snapshot"
	EventUpsert                EventType = "Upsert"
	EventRemove                EventType = "Remove"
	EventHeartbeat             EventType = "Heartbeat"
	EventSubscriptionConfirmed EventType = "SubscriptionConfirmed"
)

// PriceLevel is a single aggregated level. Size is strictly positive inside
// a stored book; a zero size in an incoming delta means removal.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// AdapterEvent is the closed, venue-agnostic event set every adapter decodes
// into. Exactly one of the per-type field groups is meaningful, selected by
// Type. Venue-native sequencing (binance U/u pair) rides along on deltas so
// the feed worker can gate them against the REST seed.
type AdapterEvent struct {
	Type EventType

	// Upsert / Remove
	Side  BookSide
	Price decimal.Decimal
	Size  decimal.Decimal

	// Snapshot
	Asks []PriceLevel
	Bids []PriceLevel

	// SubscriptionConfirmed
	ChannelID string

	// Venue-native delta sequencing, zero when the venue has none.
	FirstUpdateID int64
	FinalUpdateID int64
}

func NewSnapshotEvent(asks, bids []PriceLevel) AdapterEvent {
	return AdapterEvent{Type: EventSnapshot, Asks: asks, Bids: bids}
}

func NewUpsertEvent(side BookSide, price, size decimal.Decimal) AdapterEvent {
	return AdapterEvent{Type: EventUpsert, Side: side, Price: price, Size: size}
}

func NewRemoveEvent(side BookSide, price decimal.Decimal) AdapterEvent {
	return AdapterEvent{Type: EventRemove, Side: side, Price: price}
}

func NewHeartbeatEvent() AdapterEvent {
	return AdapterEvent{Type: EventHeartbeat}
}

func NewSubscriptionConfirmedEvent(channelID string) AdapterEvent {
	return AdapterEvent{Type: EventSubscriptionConfirmed, ChannelID: channelID}
}
