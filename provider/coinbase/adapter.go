package coinbase

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cryptoview/go-orderbook-sync/domain"
	"github.com/cryptoview/go-orderbook-sync/helpers"
)

var logger = log.New(log.Writer(), "[coinbase] ", log.LstdFlags)

const wsEndpoint = "wss://ws-feed.exchange.coinbase.com"

// Adapter decodes the coinbase level2 channel: an explicit snapshot
// message with separate asks/bids string arrays, then l2update messages
// whose changes carry a side plus [price, size], where size "0" removes
// the level.
type Adapter struct{}

func NewAdapter() *Adapter { return &Adapter{} }

func (a *Adapter) Venue() domain.Venue { return domain.VenueCoinbase }

func (a *Adapter) Endpoint() string { return wsEndpoint }

// RequiresSeed is false: the channel starts with a snapshot message.
func (a *Adapter) RequiresSeed() bool { return false }

type subscribeRequest struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

func (a *Adapter) SubscribeFrames(symbol *domain.MarketSymbol) ([][]byte, error) {
	frame, err := json.Marshal(subscribeRequest{
		Type:       "subscribe",
		ProductIDs: []string{ProductID(symbol)},
		Channels:   []string{"level2", "heartbeat"},
	})
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

// ProductID renders the venue notation, e.g. btc_usd -> BTC-USD.
func ProductID(symbol *domain.MarketSymbol) string {
	return strings.ToUpper(symbol.Join("-"))
}

type inboundMessage struct {
	Type      string     `json:"type"`
	ProductID string     `json:"product_id"`
	Asks      [][]string `json:"asks"`
	Bids      [][]string `json:"bids"`
	Changes   [][]string `json:"changes"`
	Message   string     `json:"message"`
}

func (a *Adapter) Decode(raw []byte) ([]domain.AdapterEvent, error) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("frame: %w", err)
	}

	switch msg.Type {
	case "snapshot":
		return a.decodeSnapshot(&msg)
	case "l2update":
		return a.decodeUpdate(&msg)
	case "subscriptions":
		return []domain.AdapterEvent{domain.NewSubscriptionConfirmedEvent("level2")}, nil
	case "heartbeat":
		return []domain.AdapterEvent{domain.NewHeartbeatEvent()}, nil
	case "error":
		return nil, fmt.Errorf("venue error: %s", msg.Message)
	default:
		logger.Printf("ignoring message type %q", msg.Type)
		return nil, nil
	}
}

func (a *Adapter) decodeSnapshot(msg *inboundMessage) ([]domain.AdapterEvent, error) {
	asks, err := helpers.ParseLevels(msg.Asks)
	if err != nil {
		return nil, fmt.Errorf("snapshot asks: %w", err)
	}
	bids, err := helpers.ParseLevels(msg.Bids)
	if err != nil {
		return nil, fmt.Errorf("snapshot bids: %w", err)
	}
	return []domain.AdapterEvent{domain.NewSnapshotEvent(asks, bids)}, nil
}

func (a *Adapter) decodeUpdate(msg *inboundMessage) ([]domain.AdapterEvent, error) {
	events := make([]domain.AdapterEvent, 0, len(msg.Changes))
	for _, change := range msg.Changes {
		if len(change) != 3 {
			return nil, fmt.Errorf("l2update change has %d fields, want 3", len(change))
		}

		var side domain.BookSide
		switch change[0] {
		case "buy":
			side = domain.SideBid
		case "sell":
			side = domain.SideAsk
		default:
			return nil, fmt.Errorf("unknown side %q", change[0])
		}

		price, err := decimal.NewFromString(change[1])
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", change[1], err)
		}
		size, err := decimal.NewFromString(change[2])
		if err != nil {
			return nil, fmt.Errorf("bad size %q: %w", change[2], err)
		}

		if size.Sign() == 0 {
			events = append(events, domain.NewRemoveEvent(side, price))
		} else {
			events = append(events, domain.NewUpsertEvent(side, price, size))
		}
	}
	return events, nil
}
