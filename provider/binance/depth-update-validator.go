package binance

import "github.com/cryptoview/go-orderbook-sync/domain"

// DepthUpdateValidator applies the venue's documented sequencing rules:
// drop any batch whose u is <= the seed's lastUpdateId; the first applied
// batch must have U <= lastUpdateId+1 and u >= lastUpdateId+1; a batch
// starting beyond lastUpdateId+1 means deltas were lost.
type DepthUpdateValidator struct{}

func (v *DepthUpdateValidator) Validate(firstUpdateID, finalUpdateID, lastApplied int64) error {
	if finalUpdateID <= lastApplied {
		return domain.ErrUpdateOutdated
	}

	if firstUpdateID <= lastApplied+1 && finalUpdateID >= lastApplied+1 {
		return nil
	}

	if firstUpdateID > lastApplied+1 {
		return domain.ErrUpdateOutOfSequence
	}

	return nil
}
