package provider

import (
	"fmt"

	"github.com/cryptoview/go-orderbook-sync/domain"
	"github.com/cryptoview/go-orderbook-sync/provider/binance"
	"github.com/cryptoview/go-orderbook-sync/provider/bitfinex"
	"github.com/cryptoview/go-orderbook-sync/provider/coinbase"
)

// VenueComponents bundles everything the feed worker needs for one venue.
// Validator is nil for venues without native delta sequencing.
type VenueComponents struct {
	Adapter   domain.Adapter
	SyncAPI   domain.SyncAPI
	Validator domain.DepthUpdateValidator
}

// ResolveOptions carries the venue-shaping configuration.
type ResolveOptions struct {
	DepthLimit int
	// UpdateSpeed is the stream cadence hint for venues that offer one.
	UpdateSpeed string
}

// Resolve maps a venue selection onto its concrete implementation. An
// unsupported venue is a configuration error: fatal to the requesting
// worker, reported once, never retried.
func Resolve(venue domain.Venue, opts ResolveOptions) (*VenueComponents, error) {
	switch venue {
	case domain.VenueBitfinex:
		return &VenueComponents{
			Adapter: bitfinex.NewAdapter(opts.DepthLimit),
			SyncAPI: bitfinex.NewSyncAPI(),
		}, nil
	case domain.VenueCoinbase:
		return &VenueComponents{
			Adapter: coinbase.NewAdapter(),
			SyncAPI: coinbase.NewSyncAPI(),
		}, nil
	case domain.VenueBinance:
		return &VenueComponents{
			Adapter:   binance.NewAdapter(opts.UpdateSpeed),
			SyncAPI:   binance.NewSyncAPI(),
			Validator: &binance.DepthUpdateValidator{},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported venue %q", venue)
	}
}
