package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cryptoview/go-orderbook-sync/domain"
	"github.com/cryptoview/go-orderbook-sync/helpers"
)

const defaultRestEndpoint = "https://api.exchange.coinbase.com"

// SyncAPI fetches an aggregated level-2 book image over REST for the
// fallback cascade.
type SyncAPI struct {
	endpoint string
	client   *http.Client
}

func NewSyncAPI() *SyncAPI {
	endpoint := os.Getenv("COINBASE_REST_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultRestEndpoint
	}
	return &SyncAPI{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type bookResponse struct {
	Sequence int64      `json:"sequence"`
	Bids     [][]string `json:"bids"`
	Asks     [][]string `json:"asks"`
}

func (api *SyncAPI) BookSnapshot(ctx context.Context, symbol *domain.MarketSymbol, limit int) (*domain.DepthSnapshot, error) {
	// Level 2 returns the top 50 aggregated levels; the caller's limit is
	// applied downstream at publish time.
	url := fmt.Sprintf("%s/products/%s/book?level=2", api.endpoint, ProductID(symbol))

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

	var body bookResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response body: %w", err)
	}

	asks, err := helpers.ParseLevels(body.Asks)
	if err != nil {
		return nil, fmt.Errorf("snapshot asks: %w", err)
	}
	bids, err := helpers.ParseLevels(body.Bids)
	if err != nil {
		return nil, fmt.Errorf("snapshot bids: %w", err)
	}

	return &domain.DepthSnapshot{
		LastUpdateID: body.Sequence,
		Asks:         asks,
		Bids:         bids,
	}, nil
}
