package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/cryptoview/go-orderbook-sync/domain"
	"github.com/cryptoview/go-orderbook-sync/provider"
)

// FeedManager owns the "current selection": at most one live worker at a
// time. Switching venues tears the old worker down completely (clean
// close, so its supervisor never reconnects) before the new one starts.
type FeedManager struct {
	depthLimit int
	interval   time.Duration
	supCfg     provider.SupervisorConfig
	opts       provider.ResolveOptions
	cache      *domain.SnapshotCache

	mu      sync.Mutex
	current *BookFeed
}

func NewFeedManager(
	depthLimit int,
	publishInterval time.Duration,
	supCfg provider.SupervisorConfig,
	opts provider.ResolveOptions,
) *FeedManager {
	return &FeedManager{
		depthLimit: depthLimit,
		interval:   publishInterval,
		supCfg:     supCfg,
		opts:       opts,
		cache:      domain.NewSnapshotCache(),
	}
}

// Switch starts a worker for the venue/symbol selection, replacing any
// running one. An unsupported venue fails once, without retries.
func (m *FeedManager) Switch(ctx context.Context, venue domain.Venue, symbol *domain.MarketSymbol) (*domain.Subscription[*domain.FeedUpdate], error) {
	comps, err := provider.Resolve(venue, m.opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.Stop()
		m.current = nil
	}

	supCfg := m.supCfg
	supCfg.Symbol = symbol
	supCfg.DepthLimit = m.depthLimit

	feed := NewBookFeed(symbol, m.depthLimit, m.interval, supCfg, comps, m.cache)
	m.current = feed
	return feed.Start(ctx), nil
}

// NetworkRestored forwards the connectivity signal to the active worker.
func (m *FeedManager) NetworkRestored() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.NetworkRestored()
	}
}

func (m *FeedManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Stop()
		m.current = nil
	}
}
