package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "btc_usd", cfg.Symbol)
	assert.Equal(t, "bitfinex", cfg.Venue)
	assert.Equal(t, 100, cfg.DepthLimit)
	assert.Equal(t, 5, cfg.PublishFPS)
	assert.Equal(t, 5, cfg.MaxReconnectAttempts)
	assert.Equal(t, time.Second, cfg.BackoffInitial)
	assert.Equal(t, 30*time.Second, cfg.BackoffMax)
	assert.Equal(t, 5*time.Minute, cfg.CacheFreshness)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("VENUE", "binance")
	t.Setenv("SYMBOL", "eth_usdt")
	t.Setenv("PUBLISH_FPS", "10")
	t.Setenv("DEPTH_LIMIT", "50")
	t.Setenv("BACKOFF_INITIAL", "500ms")

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "binance", cfg.Venue)
	assert.Equal(t, "eth_usdt", cfg.Symbol)
	assert.Equal(t, 50, cfg.DepthLimit)
	assert.Equal(t, 500*time.Millisecond, cfg.BackoffInitial)

	symbol, err := cfg.MarketSymbol()
	assert.NoError(t, err)
	assert.Equal(t, "eth_usdt", symbol.String())
}

func TestLoad_RejectsUnknownVenue(t *testing.T) {
	t.Setenv("VENUE", "kraken")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestLoad_RejectsBadSymbol(t *testing.T) {
	t.Setenv("SYMBOL", "btcusd")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Symbol:         "btc_usd",
			Venue:          "coinbase",
			DepthLimit:     100,
			PublishFPS:     5,
			BackoffInitial: time.Second,
			BackoffMax:     30 * time.Second,
		}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.PublishFPS = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.DepthLimit = -1
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.BackoffMax = time.Millisecond
	assert.Error(t, cfg.Validate(), "max below initial is an invalid backoff window")
}

func TestConfig_PublishInterval(t *testing.T) {
	cfg := &Config{PublishFPS: 5}
	assert.Equal(t, 200*time.Millisecond, cfg.PublishInterval())

	cfg.PublishFPS = 10
	assert.Equal(t, 100*time.Millisecond, cfg.PublishInterval())
}
