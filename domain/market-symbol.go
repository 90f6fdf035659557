package domain

import (
	"fmt"
	"strings"
)

// MarketSymbol identifies a traded pair in a venue-neutral form: lowercase
// asset codes, joined into each venue's own notation via Join.
type MarketSymbol struct {
	BaseAsset  string
	QuoteAsset string
}

func NewMarketSymbol(base string, quote string) (*MarketSymbol, error) {
	base = strings.ToLower(strings.TrimSpace(base))
	quote = strings.ToLower(strings.TrimSpace(quote))

	if base == "" || quote == "" {
		return nil, fmt.Errorf("base and quote must not be empty")
	}
	if base == quote {
		return nil, fmt.Errorf("base and quote must be different")
	}
	if !validAssetCode(base) {
		return nil, fmt.Errorf("invalid base asset %q", base)
	}
	if !validAssetCode(quote) {
		return nil, fmt.Errorf("invalid quote asset %q", quote)
	}

	return &MarketSymbol{
		BaseAsset:  base,
		QuoteAsset: quote,
	}, nil
}

func NewMarketSymbolFromString(s string) (*MarketSymbol, error) {
	base, quote, ok := strings.Cut(s, "_")
	if !ok {
		return nil, fmt.Errorf("symbol %q is not of the form base_quote", s)
	}
	return NewMarketSymbol(base, quote)
}

// validAssetCode accepts letters and digits only, so separators can never
// leak into a rendered venue pair.
func validAssetCode(code string) bool {
	for _, r := range code {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func (ms *MarketSymbol) Join(separator string) string {
	return fmt.Sprintf("%s%s%s", ms.BaseAsset, separator, ms.QuoteAsset)
}

func (ms *MarketSymbol) String() string {
	return fmt.Sprintf("%s_%s", ms.BaseAsset, ms.QuoteAsset)
}

func (ms *MarketSymbol) Equal(other *MarketSymbol) bool {
	return ms.BaseAsset == other.BaseAsset && ms.QuoteAsset == other.QuoteAsset
}
