package binance

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cryptoview/go-orderbook-sync/domain"
)

var logger = log.New(log.Writer(), "[binance] ", log.LstdFlags)

const wsEndpoint = "wss://stream.binance.com:9443/stream"

// Adapter decodes the combined-stream depth diff channel. The stream only
// carries deltas sequenced by a firstUpdateId/finalUpdateId pair, so the
// book must be seeded out of band from the REST depth endpoint before any
// delta can be applied.
type Adapter struct {
	// updateSpeed selects the venue's stream cadence suffix, "100ms" or
	// "1000ms".
	updateSpeed string
}

func NewAdapter(updateSpeed string) *Adapter {
	if updateSpeed == "" {
		updateSpeed = "100ms"
	}
	return &Adapter{updateSpeed: updateSpeed}
}

func (a *Adapter) Venue() domain.Venue { return domain.VenueBinance }

func (a *Adapter) Endpoint() string { return wsEndpoint }

func (a *Adapter) RequiresSeed() bool { return true }

type wsRequest struct {
	ReqID  int      `json:"id"`
	Method string   `json:"method"`
	Params []string `json:"params"`
}

func (a *Adapter) SubscribeFrames(symbol *domain.MarketSymbol) ([][]byte, error) {
	frame, err := json.Marshal(wsRequest{
		ReqID:  getRandomReqID(),
		Method: "SUBSCRIBE",
		Params: []string{a.topic(symbol)},
	})
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

func (a *Adapter) topic(symbol *domain.MarketSymbol) string {
	return fmt.Sprintf("%s@depth@%s", symbol.Join(""), a.updateSpeed)
}

// message is the combined-stream envelope.
type message[T any] struct {
	Stream string `json:"stream"`
	Data   T      `json:"data"`
}

type depthUpdateData struct {
	Event         string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

func (a *Adapter) Decode(raw []byte) ([]domain.AdapterEvent, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("frame: %w", err)
	}

	// A frame carrying an id is the ack for our SUBSCRIBE request.
	if _, ok := probe["id"]; ok {
		return []domain.AdapterEvent{domain.NewSubscriptionConfirmedEvent("depth")}, nil
	}

	if _, ok := probe["stream"]; !ok {
		logger.Printf("ignoring frame without stream field")
		return nil, nil
	}

	var msg message[depthUpdateData]
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("depth update: %w", err)
	}
	if msg.Data.Event != "depthUpdate" {
		return nil, nil
	}

	events := make([]domain.AdapterEvent, 0, len(msg.Data.Bids)+len(msg.Data.Asks))

	bidEvents, err := levelEvents(domain.SideBid, msg.Data.Bids, msg.Data.FirstUpdateID, msg.Data.FinalUpdateID)
	if err != nil {
		return nil, err
	}
	askEvents, err := levelEvents(domain.SideAsk, msg.Data.Asks, msg.Data.FirstUpdateID, msg.Data.FinalUpdateID)
	if err != nil {
		return nil, err
	}

	events = append(events, bidEvents...)
	events = append(events, askEvents...)
	return events, nil
}

// levelEvents turns one side of a delta batch into point events, each
// tagged with the batch's U/u pair so the feed worker can gate the whole
// batch against the seed sequence.
func levelEvents(side domain.BookSide, levels [][]string, firstID, finalID int64) ([]domain.AdapterEvent, error) {
	events := make([]domain.AdapterEvent, 0, len(levels))
	for _, lvl := range levels {
		if len(lvl) < 2 {
			return nil, fmt.Errorf("depth level has %d fields, want 2", len(lvl))
		}
		price, err := decimal.NewFromString(lvl[0])
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", lvl[0], err)
		}
		size, err := decimal.NewFromString(lvl[1])
		if err != nil {
			return nil, fmt.Errorf("bad size %q: %w", lvl[1], err)
		}

		var ev domain.AdapterEvent
		if size.Sign() == 0 {
			ev = domain.NewRemoveEvent(side, price)
		} else {
			ev = domain.NewUpsertEvent(side, price, size)
		}
		ev.FirstUpdateID = firstID
		ev.FinalUpdateID = finalID
		events = append(events, ev)
	}
	return events, nil
}

func getRandomReqID() int {
	min := 10000
	max := 9999999
	return min + rand.Intn(max-min)
}

// PairSymbol renders the venue notation, e.g. btc_usdt -> BTCUSDT.
func PairSymbol(symbol *domain.MarketSymbol) string {
	return strings.ToUpper(symbol.Join(""))
}
