package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotCache_PutGet(t *testing.T) {
	cache := NewSnapshotCache()
	symbol, err := NewMarketSymbol("BTC", "USDT")
	if err != nil {
		t.Fatal(err)
	}

	_, ok := cache.Get(VenueCoinbase, symbol)
	assert.False(t, ok, "empty cache should report a miss")

	snap := &BookSnapshot{Venue: VenueCoinbase, Symbol: symbol.String(), Sequence: 7}
	cache.Put(VenueCoinbase, symbol, snap)

	entry, ok := cache.Get(VenueCoinbase, symbol)
	assert.True(t, ok)
	assert.Equal(t, snap, entry.Snapshot)
	assert.WithinDuration(t, time.Now(), entry.StoredAt, time.Second)
}

func TestSnapshotCache_KeyedByVenueAndSymbol(t *testing.T) {
	cache := NewSnapshotCache()
	btc, _ := NewMarketSymbol("BTC", "USDT")
	eth, _ := NewMarketSymbol("ETH", "USDT")

	cache.Put(VenueBinance, btc, &BookSnapshot{Sequence: 1})
	cache.Put(VenueBitfinex, btc, &BookSnapshot{Sequence: 2})

	entry, ok := cache.Get(VenueBinance, btc)
	assert.True(t, ok)
	assert.Equal(t, int64(1), entry.Snapshot.Sequence)

	entry, ok = cache.Get(VenueBitfinex, btc)
	assert.True(t, ok)
	assert.Equal(t, int64(2), entry.Snapshot.Sequence)

	_, ok = cache.Get(VenueBinance, eth)
	assert.False(t, ok, "a different symbol should miss")
}

func TestSnapshotCache_OverwriteKeepsLatest(t *testing.T) {
	cache := NewSnapshotCache()
	symbol, _ := NewMarketSymbol("BTC", "USDT")

	cache.Put(VenueBinance, symbol, &BookSnapshot{Sequence: 1})
	cache.Put(VenueBinance, symbol, &BookSnapshot{Sequence: 2})

	entry, _ := cache.Get(VenueBinance, symbol)
	assert.Equal(t, int64(2), entry.Snapshot.Sequence, "put should overwrite the previous entry")
}

func TestSnapshotCache_Age(t *testing.T) {
	cache := NewSnapshotCache()
	symbol, _ := NewMarketSymbol("BTC", "USDT")

	_, ok := cache.Age(VenueBinance, symbol)
	assert.False(t, ok)

	cache.Put(VenueBinance, symbol, &BookSnapshot{})
	age, ok := cache.Age(VenueBinance, symbol)
	assert.True(t, ok)
	assert.Less(t, age, time.Second)
}

func TestBookSnapshot_MidPrice(t *testing.T) {
	snap := &BookSnapshot{
		Asks: []DepthLevel{{Price: d("10100")}},
		Bids: []DepthLevel{{Price: d("9900")}},
	}
	assert.Equal(t, "10000", snap.MidPrice().String())

	empty := &BookSnapshot{}
	assert.True(t, empty.MidPrice().IsZero(), "one-sided or empty book has no mid price")
}
