package coinbase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cryptoview/go-orderbook-sync/domain"
)

func testSymbol(t *testing.T) *domain.MarketSymbol {
	t.Helper()
	symbol, err := domain.NewMarketSymbol("BTC", "USD")
	if err != nil {
		t.Fatal(err)
	}
	return symbol
}

func TestAdapter_SubscribeFrames(t *testing.T) {
	a := NewAdapter()

	frames, err := a.SubscribeFrames(testSymbol(t))
	assert.NoError(t, err)
	assert.Len(t, frames, 1)

	frame := string(frames[0])
	assert.Contains(t, frame, `"type":"subscribe"`)
	assert.Contains(t, frame, `"BTC-USD"`)
	assert.Contains(t, frame, `"level2"`)
	assert.Contains(t, frame, `"heartbeat"`)
}

func TestProductID(t *testing.T) {
	assert.Equal(t, "BTC-USD", ProductID(testSymbol(t)))
}

func TestAdapter_DecodeSnapshot(t *testing.T) {
	a := NewAdapter()

	raw := `{"type":"snapshot","product_id":"BTC-USD","asks":[["10102.55","0.57753524"],["10103","1"]],"bids":[["10101.10","0.45054140"]]}`
	events, err := a.Decode([]byte(raw))
	assert.NoError(t, err)
	assert.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, domain.EventSnapshot, ev.Type)
	assert.Len(t, ev.Asks, 2)
	assert.Len(t, ev.Bids, 1)
	assert.Equal(t, "10102.55", ev.Asks[0].Price.String())
	assert.Equal(t, "0.4505414", ev.Bids[0].Size.String())
}

func TestAdapter_DecodeL2Update(t *testing.T) {
	a := NewAdapter()

	raw := `{"type":"l2update","product_id":"BTC-USD","changes":[["buy","10101.80000000","0.162567"],["sell","10103.00000000","0"]]}`
	events, err := a.Decode([]byte(raw))
	assert.NoError(t, err)
	assert.Len(t, events, 2)

	assert.Equal(t, domain.EventUpsert, events[0].Type)
	assert.Equal(t, domain.SideBid, events[0].Side)
	assert.Equal(t, "10101.8", events[0].Price.String())

	assert.Equal(t, domain.EventRemove, events[1].Type, `size "0" should remove the level`)
	assert.Equal(t, domain.SideAsk, events[1].Side)
	assert.Equal(t, "10103", events[1].Price.String())
}

func TestAdapter_DecodeControlMessages(t *testing.T) {
	a := NewAdapter()

	events, err := a.Decode([]byte(`{"type":"subscriptions","channels":[{"name":"level2","product_ids":["BTC-USD"]}]}`))
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, domain.EventSubscriptionConfirmed, events[0].Type)

	events, err = a.Decode([]byte(`{"type":"heartbeat","sequence":90,"product_id":"BTC-USD"}`))
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, domain.EventHeartbeat, events[0].Type)

	events, err = a.Decode([]byte(`{"type":"ticker","price":"10101"}`))
	assert.NoError(t, err)
	assert.Empty(t, events, "unknown message types are ignored, not fatal")
}

func TestAdapter_DecodeVenueError(t *testing.T) {
	a := NewAdapter()

	_, err := a.Decode([]byte(`{"type":"error","message":"Failed to subscribe","reason":"BTC-XYZ is not a valid product"}`))
	assert.Error(t, err)
}

func TestAdapter_DecodeMalformed(t *testing.T) {
	a := NewAdapter()

	for _, raw := range []string{
		"not json",
		`{"type":"l2update","changes":[["buy","10101.80"]]}`,
		`{"type":"l2update","changes":[["hold","10101.80","1"]]}`,
		`{"type":"l2update","changes":[["buy","abc","1"]]}`,
	} {
		_, err := a.Decode([]byte(raw))
		assert.Error(t, err, "frame %q should fail to decode", raw)
	}
}
