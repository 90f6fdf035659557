package binance

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

const defaultRestEndpoint = "https://api.binance.com"

// SyncAPI fetches full depth snapshots from the REST endpoint. It seeds
// the delta-only stream at connect time and backs the REST fallback.
type SyncAPI struct {
	endpoint string
	client   *http.Client
}

func NewSyncAPI() *SyncAPI {
	endpoint := os.Getenv("BINANCE_REST_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultRestEndpoint
	}
	return &SyncAPI{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func (api *SyncAPI) BookSnapshot(ctx context.Context, symbol *domain.MarketSymbol, limit int) (*domain.DepthSnapshot, error) {
	url := fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=%d",
		api.endpoint, PairSymbol(symbol), clampLimit(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := api.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get depth snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("depth snapshot: unexpected status %s", resp.Status)
	}

	var body depthResponse
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
		LastUpdateID: body.LastUpdateID,
		Asks:         asks,
		Bids:         bids,
	}, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 5000:
		return 5000
	default:
		return limit
	}
}
