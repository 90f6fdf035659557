package bitfinex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cryptoview/go-orderbook-sync/domain"
)

var logger = log.New(log.Writer(), "[bitfinex] ", log.LstdFlags)

const wsEndpoint = "wss://api-pub.bitfinex.com/ws/2"

// Adapter decodes the bitfinex book channel. The wire format is positional:
// data frames are arrays, and each level is a [price, count, amount] triple
// where the sign of amount selects the side (positive bid, negative ask)
// and count == 0 signals removal regardless of sign.
type Adapter struct {
	depthLimit int
}

func NewAdapter(depthLimit int) *Adapter {
	return &Adapter{depthLimit: depthLimit}
}

func (a *Adapter) Venue() domain.Venue { return domain.VenueBitfinex }

func (a *Adapter) Endpoint() string { return wsEndpoint }

// RequiresSeed is false: the book channel opens with a full snapshot frame.
func (a *Adapter) RequiresSeed() bool { return false }

type subscribeRequest struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Symbol  string `json:"symbol"`
	Prec    string `json:"prec"`
	Freq    string `json:"freq"`
	Len     string `json:"len"`
}

func (a *Adapter) SubscribeFrames(symbol *domain.MarketSymbol) ([][]byte, error) {
	frame, err := json.Marshal(subscribeRequest{
		Event:   "subscribe",
		Channel: "book",
		Symbol:  PairSymbol(symbol),
		Prec:    "P0",
		Freq:    "F0",
		Len:     strconv.Itoa(allowedLen(a.depthLimit)),
	})
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

// PairSymbol renders the venue notation, e.g. btc_usd -> tBTCUSD.
func PairSymbol(symbol *domain.MarketSymbol) string {
	return "t" + strings.ToUpper(symbol.Join(""))
}

// allowedLen snaps the configured depth onto the venue's accepted book
// lengths.
func allowedLen(limit int) int {
	switch {
	case limit <= 1:
		return 1
	case limit <= 25:
		return 25
	case limit <= 100:
		return 100
	default:
		return 250
	}
}

func (a *Adapter) Decode(raw []byte) ([]domain.AdapterEvent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	switch trimmed[0] {
	case '{':
		return a.decodeEventMessage(trimmed)
	case '[':
		return a.decodeChannelMessage(trimmed)
	default:
		return nil, fmt.Errorf("unrecognized frame: %.40s", trimmed)
	}
}

type eventMessage struct {
	Event  string `json:"event"`
	ChanID int64  `json:"chanId"`
	Msg    string `json:"msg"`
}

func (a *Adapter) decodeEventMessage(raw []byte) ([]domain.AdapterEvent, error) {
	var msg eventMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("event message: %w", err)
	}

	switch msg.Event {
	case "subscribed":
		return []domain.AdapterEvent{
			domain.NewSubscriptionConfirmedEvent(strconv.FormatInt(msg.ChanID, 10)),
		}, nil
	case "error":
		return nil, fmt.Errorf("venue error: %s", msg.Msg)
	default:
		// info, conf and pong frames carry nothing the book needs.
		return nil, nil
	}
}

func (a *Adapter) decodeChannelMessage(raw []byte) ([]domain.AdapterEvent, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("channel frame: %w", err)
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("channel frame has %d parts", len(parts))
	}

	payload := bytes.TrimSpace(parts[1])

	if bytes.Equal(payload, []byte(`"hb"`)) {
		return []domain.AdapterEvent{domain.NewHeartbeatEvent()}, nil
	}
	if len(payload) == 0 || payload[0] != '[' {
		return nil, fmt.Errorf("unexpected channel payload: %.40s", payload)
	}

	var inner []json.RawMessage
	if err := json.Unmarshal(payload, &inner); err != nil {
		return nil, fmt.Errorf("channel payload: %w", err)
	}
	if len(inner) == 0 {
		return nil, nil
	}

	// A snapshot is a list of triples, a delta is one bare triple.
	if bytes.TrimSpace(inner[0])[0] == '[' {
		return a.decodeSnapshot(payload)
	}
	return a.decodeDelta(payload)
}

func (a *Adapter) decodeSnapshot(payload []byte) ([]domain.AdapterEvent, error) {
	var triples [][]json.Number
	if err := json.Unmarshal(payload, &triples); err != nil {
		return nil, fmt.Errorf("snapshot payload: %w", err)
	}

	var asks, bids []domain.PriceLevel
	for _, t := range triples {
		price, count, amount, err := parseTriple(t)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			// Removal inside a snapshot frame would be a venue bug.
			logger.Printf("snapshot carries zero-count level at %s, skipping", price)
			continue
		}
		if amount.Sign() > 0 {
			bids = append(bids, domain.PriceLevel{Price: price, Size: amount})
		} else {
			asks = append(asks, domain.PriceLevel{Price: price, Size: amount.Abs()})
		}
	}

	return []domain.AdapterEvent{domain.NewSnapshotEvent(asks, bids)}, nil
}

func (a *Adapter) decodeDelta(payload []byte) ([]domain.AdapterEvent, error) {
	var triple []json.Number
	if err := json.Unmarshal(payload, &triple); err != nil {
		return nil, fmt.Errorf("delta payload: %w", err)
	}

	price, count, amount, err := parseTriple(triple)
	if err != nil {
		return nil, err
	}

	side := domain.SideAsk
	if amount.Sign() > 0 {
		side = domain.SideBid
	}

	if count == 0 {
		return []domain.AdapterEvent{domain.NewRemoveEvent(side, price)}, nil
	}
	return []domain.AdapterEvent{domain.NewUpsertEvent(side, price, amount.Abs())}, nil
}

func parseTriple(t []json.Number) (price decimal.Decimal, count int64, amount decimal.Decimal, err error) {
	if len(t) != 3 {
		return price, 0, amount, fmt.Errorf("level triple has %d fields", len(t))
	}
	price, err = decimal.NewFromString(t[0].String())
	if err != nil {
		return price, 0, amount, fmt.Errorf("bad price %q: %w", t[0], err)
	}
	count, err = t[1].Int64()
	if err != nil {
		return price, 0, amount, fmt.Errorf("bad count %q: %w", t[1], err)
	}
	amount, err = decimal.NewFromString(t[2].String())
	if err != nil {
		return price, 0, amount, fmt.Errorf("bad amount %q: %w", t[2], err)
	}
	return price, count, amount, nil
}
