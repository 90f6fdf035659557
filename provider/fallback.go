package provider

import (
	"github.com/shopspring/decimal"

	"github.com/cryptoview/go-orderbook-sync/domain"
)

// defaultSyntheticRef anchors a synthetic book when no cached price is
// available at all.
var defaultSyntheticRef = decimal.NewFromInt(100)

var (
	syntheticSpreadFrac = decimal.NewFromFloat(0.0005)
	syntheticBaseSize   = decimal.NewFromFloat(0.75)
)

// SyntheticSnapshot builds a plausible two-sided book of the given depth
// around a reference price. It exists so the consumer never renders an
// empty book when every real source is gone; it is always published with
// an explicit not-live flag, never passed off as market data.
func SyntheticSnapshot(ref decimal.Decimal, depth int) *domain.DepthSnapshot {
	if ref.Sign() <= 0 {
		ref = defaultSyntheticRef
	}
	if depth <= 0 {
		depth = 25
	}

	step := ref.Mul(syntheticSpreadFrac)

	asks := make([]domain.PriceLevel, 0, depth)
	bids := make([]domain.PriceLevel, 0, depth)

	for i := 1; i <= depth; i++ {
		offset := step.Mul(decimal.NewFromInt(int64(i)))
		size := syntheticBaseSize.Mul(decimal.NewFromInt(int64(i)))

		asks = append(asks, domain.PriceLevel{
			Price: ref.Add(offset),
			Size:  size,
		})

		bidPrice := ref.Sub(offset)
		if bidPrice.Sign() <= 0 {
			continue
		}
		bids = append(bids, domain.PriceLevel{
			Price: bidPrice,
			Size:  size,
		})
	}

	return &domain.DepthSnapshot{Asks: asks, Bids: bids}
}
