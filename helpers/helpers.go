package helpers

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cryptoview/go-orderbook-sync/domain"
)

// ParseLevels converts the ubiquitous [["price","size"], ...] wire shape
// into typed levels. Extra columns (coinbase appends an order count) are
// ignored.
func ParseLevels(raw [][]string) ([]domain.PriceLevel, error) {
	result := make([]domain.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			return nil, fmt.Errorf("price level has %d fields, want at least 2", len(lvl))
		}
		price, err := decimal.NewFromString(lvl[0])
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", lvl[0], err)
		}
		size, err := decimal.NewFromString(lvl[1])
		if err != nil {
			return nil, fmt.Errorf("bad size %q: %w", lvl[1], err)
		}
		result = append(result, domain.PriceLevel{Price: price, Size: size})
	}
	return result, nil
}

// ToJsonString converts any value to a JSON string, for log lines.
func ToJsonString(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
