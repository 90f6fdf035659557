package bitfinex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cryptoview/go-orderbook-sync/domain"
)

const defaultRestEndpoint = "https://api-pub.bitfinex.com"

// SyncAPI fetches full book images from the public v2 REST surface; the
// supervisor uses it for the REST fallback stage.
type SyncAPI struct {
	endpoint string
	client   *http.Client
}

func NewSyncAPI() *SyncAPI {
	endpoint := os.Getenv("BITFINEX_REST_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultRestEndpoint
	}
	return &SyncAPI{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (api *SyncAPI) BookSnapshot(ctx context.Context, symbol *domain.MarketSymbol, limit int) (*domain.DepthSnapshot, error) {
	url := fmt.Sprintf("%s/v2/book/%s/P0?len=%d", api.endpoint, PairSymbol(symbol), allowedLen(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := api.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get book snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("book snapshot: unexpected status %s", resp.Status)
	}

	var triples [][]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&triples); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response body: %w", err)
	}

	snapshot := &domain.DepthSnapshot{}
	for _, t := range triples {
		price, count, amount, err := parseTriple(t)
		if err != nil {
			return nil, err
		}
		if count == 0 || amount.Sign() == 0 {
			continue
		}
		if amount.Sign() > 0 {
			snapshot.Bids = append(snapshot.Bids, domain.PriceLevel{Price: price, Size: amount})
		} else {
			snapshot.Asks = append(snapshot.Asks, domain.PriceLevel{Price: price, Size: amount.Abs()})
		}
	}

	return snapshot, nil
}
