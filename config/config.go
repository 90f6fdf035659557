package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/cryptoview/go-orderbook-sync/domain"
)

// Config is the whole environment surface of the engine.
type Config struct {
	Symbol string `env:"SYMBOL" envDefault:"btc_usd"`
	Venue  string `env:"VENUE" envDefault:"bitfinex"`

	// DepthLimit bounds the published book to the top N levels per side.
	DepthLimit int `env:"DEPTH_LIMIT" envDefault:"100"`

	// UpdateSpeed is a cadence hint for venues that offer one (binance
	// depth streams run at 100ms or 1000ms).
	UpdateSpeed string `env:"UPDATE_SPEED" envDefault:"100ms"`

	// PublishFPS caps consumer-facing emissions per second.
	PublishFPS int `env:"PUBLISH_FPS" envDefault:"5"`

	RestRetryCount int           `env:"REST_RETRY_COUNT" envDefault:"3"`
	RestTimeout    time.Duration `env:"REST_TIMEOUT" envDefault:"5s"`

	MaxReconnectAttempts int           `env:"MAX_RECONNECT_ATTEMPTS" envDefault:"5"`
	BackoffInitial       time.Duration `env:"BACKOFF_INITIAL" envDefault:"1s"`
	BackoffMax           time.Duration `env:"BACKOFF_MAX" envDefault:"30s"`

	CacheFreshness   time.Duration `env:"CACHE_FRESHNESS" envDefault:"5m"`
	HeartbeatTimeout time.Duration `env:"HEARTBEAT_TIMEOUT" envDefault:"45s"`

	MetricsAddr string `env:"METRICS_ADDR" envDefault:":8080"`
}

var supportedVenues = []string{
	string(domain.VenueBitfinex),
	string(domain.VenueCoinbase),
	string(domain.VenueBinance),
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unusable configuration up front; a bad venue or symbol
// is fatal to the worker that would use it, with no retry loop.
func (c *Config) Validate() error {
	if !isSupportedVenue(c.Venue) {
		return fmt.Errorf("venue %q is not supported (want one of %v)", c.Venue, supportedVenues)
	}
	if _, err := domain.NewMarketSymbolFromString(c.Symbol); err != nil {
		return fmt.Errorf("symbol %q: %w", c.Symbol, err)
	}
	if c.PublishFPS <= 0 {
		return fmt.Errorf("publish fps must be positive, got %d", c.PublishFPS)
	}
	if c.DepthLimit <= 0 {
		return fmt.Errorf("depth limit must be positive, got %d", c.DepthLimit)
	}
	if c.BackoffInitial <= 0 || c.BackoffMax < c.BackoffInitial {
		return fmt.Errorf("backoff window %s..%s is invalid", c.BackoffInitial, c.BackoffMax)
	}
	return nil
}

func isSupportedVenue(venue string) bool {
	for _, v := range supportedVenues {
		if v == venue {
			return true
		}
	}
	return false
}

// MarketSymbol returns the validated symbol.
func (c *Config) MarketSymbol() (*domain.MarketSymbol, error) {
	return domain.NewMarketSymbolFromString(c.Symbol)
}

// PublishInterval converts the FPS cap into the throttle's minimum
// inter-emission interval.
func (c *Config) PublishInterval() time.Duration {
	return time.Second / time.Duration(c.PublishFPS)
}
