package provider

import (
	"context"
	"sync"
	"time"

	"github.com/cryptoview/go-orderbook-sync/domain"
	promclient "github.com/cryptoview/go-orderbook-sync/infrastructure/prometheus"
)

// BookSink is the downstream half of a connection worker: it applies
// normalized events to the book and publishes fallback data. All methods
// are invoked from the supervisor's goroutine only.
type BookSink interface {
	// ApplyEvent applies one live event. A non-nil error is decode-fatal
	// for the connection and triggers a reconnect.
	ApplyEvent(ev domain.AdapterEvent) error
	// Seed replaces the book from a REST snapshot (delta-only venues at
	// connect time, and the REST fallback).
	Seed(snap *domain.DepthSnapshot)
	// PublishCached republishes the last-known-good snapshot, keeping its
	// original timestamp so consumers can display staleness.
	PublishCached(entry *domain.CachedBook)
	// PublishSynthetic installs an explicitly non-live generated book.
	PublishSynthetic(snap *domain.DepthSnapshot)
	// StateChanged reports every supervisor transition.
	StateChanged(state domain.ConnState)
}

// SupervisorConfig carries the connection-lifecycle knobs; see config for
// the environment surface they come from.
type SupervisorConfig struct {
	Symbol     *domain.MarketSymbol
	DepthLimit int

	MaxReconnectAttempts int
	BackoffInitial       time.Duration
	BackoffMax           time.Duration

	RestRetryCount   int
	RestTimeout      time.Duration
	RestPollInterval time.Duration

	CacheFreshness time.Duration

	HandshakeTimeout time.Duration
	HeartbeatTimeout time.Duration
}

func (c *SupervisorConfig) withDefaults() {
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
	if c.RestRetryCount <= 0 {
		c.RestRetryCount = 3
	}
	if c.RestTimeout <= 0 {
		c.RestTimeout = 5 * time.Second
	}
	if c.RestPollInterval <= 0 {
		c.RestPollInterval = 3 * time.Second
	}
	if c.CacheFreshness <= 0 {
		c.CacheFreshness = 5 * time.Minute
	}
}

// Supervisor drives one adapter's transport lifecycle through an explicit
// state machine: connect, subscribe, detect failure, reconnect with
// backoff, and degrade through the REST -> cache -> synthetic cascade when
// reconnecting is exhausted. State and the attempt counter live in this
// one struct and change only through named methods here, never from
// message handlers.
type Supervisor struct {
	cfg     SupervisorConfig
	adapter domain.Adapter
	syncAPI domain.SyncAPI
	cache   *domain.SnapshotCache
	sink    BookSink
	backoff *ReconnectBackoff

	// dial is swappable in tests to run the state machine without a
	// network.
	dial func(ctx context.Context) (*StreamClient, error)

	mu      sync.Mutex
	state   domain.ConnState
	attempt int

	netRestored chan struct{}
	closeReq    chan struct{}
	closeOnce   sync.Once
	done        chan struct{}
}

func NewSupervisor(
	cfg SupervisorConfig,
	adapter domain.Adapter,
	syncAPI domain.SyncAPI,
	cache *domain.SnapshotCache,
	sink BookSink,
) *Supervisor {
	cfg.withDefaults()

	s := &Supervisor{
		cfg:         cfg,
		adapter:     adapter,
		syncAPI:     syncAPI,
		cache:       cache,
		sink:        sink,
		backoff:     NewReconnectBackoff(cfg.BackoffInitial, cfg.BackoffMax),
		state:       domain.StateConnecting,
		netRestored: make(chan struct{}, 1),
		closeReq:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	s.dial = s.dialStream
	return s
}

func (s *Supervisor) State() domain.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) Attempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// NetworkRestored signals external connectivity restoration: any fallback
// or backoff wait is cut short and a fresh connect cycle starts with the
// attempt counter reset.
func (s *Supervisor) NetworkRestored() {
	select {
	case s.netRestored <- struct{}{}:
	default:
	}
}

// Shutdown requests a clean, caller-initiated close. The supervisor moves
// to Disconnected and never reconnects from there.
func (s *Supervisor) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.closeReq)
	})
}

func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Run owns the whole lifecycle until clean close or context cancellation.
// It is the single goroutine touching the sink, which keeps book mutation
// free of cross-worker sharing.
func (s *Supervisor) Run(ctx context.Context) {
	defer close(s.done)

	for {
		if s.stopping(ctx) {
			s.transition(domain.StateDisconnected)
			return
		}

		s.transition(domain.StateConnecting)
		client, err := s.connect(ctx)
		if err == nil {
			s.transition(domain.StateConnected)
			s.resetAttempt()

			clean := s.consume(ctx, client)
			if clean {
				s.transition(domain.StateDisconnected)
				return
			}
			promclient.ReconnectsTotal.Inc()
		} else {
			logger.Printf("%s: connect failed: %v", s.adapter.Venue(), err)
		}

		if s.stopping(ctx) {
			s.transition(domain.StateDisconnected)
			return
		}

		s.transition(domain.StateReconnecting)
		attempt := s.bumpAttempt()

		if attempt > s.cfg.MaxReconnectAttempts {
			if !s.fallback(ctx) {
				s.transition(domain.StateDisconnected)
				return
			}
			// Network restoration: retry live with a fresh budget.
			s.resetAttempt()
			continue
		}

		delay := s.backoff.Delay(attempt - 1)
		logger.Printf("%s: reconnect attempt %d in %s", s.adapter.Venue(), attempt, delay)

		select {
		case <-time.After(delay):
		case <-s.netRestored:
			s.resetAttempt()
		case <-s.closeReq:
			s.transition(domain.StateDisconnected)
			return
		case <-ctx.Done():
			s.transition(domain.StateDisconnected)
			return
		}
	}
}

// connect dials the venue and sends its subscription control frames.
func (s *Supervisor) connect(ctx context.Context) (*StreamClient, error) {
	client, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}

	frames, err := s.adapter.SubscribeFrames(s.cfg.Symbol)
	if err != nil {
		client.CloseClean()
		return nil, err
	}
	for _, frame := range frames {
		if err := client.Send(frame); err != nil {
			client.CloseClean()
			return nil, err
		}
	}

	return client, nil
}

func (s *Supervisor) dialStream(ctx context.Context) (*StreamClient, error) {
	client := NewStreamClient(StreamConfig{
		Endpoint:         s.adapter.Endpoint(),
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		HeartbeatTimeout: s.cfg.HeartbeatTimeout,
	})
	if err := client.Dial(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

type seedResult struct {
	snap *domain.DepthSnapshot
	err  error
}

// consume pumps frames from one live connection until it ends. Returns
// true for a clean, caller-initiated end and false for a failure that
// should enter the reconnect path.
func (s *Supervisor) consume(ctx context.Context, client *StreamClient) bool {
	defer client.CloseClean()

	// Delta-only venues need a REST image before deltas mean anything.
	// The fetch runs aside the read loop so no delta is lost meanwhile;
	// the sink buffers until Seed arrives.
	var seedCh chan seedResult
	if s.adapter.RequiresSeed() && s.syncAPI != nil {
		seedCh = s.fetchSeed(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return true
		case <-s.closeReq:
			return true

		case res := <-seedCh:
			if res.err != nil {
				logger.Printf("%s: seed snapshot failed: %v", s.adapter.Venue(), res.err)
				return false
			}
			s.sink.Seed(res.snap)
			seedCh = nil

		case frame, ok := <-client.Frames():
			if !ok {
				if err := client.Err(); err != nil {
					logger.Printf("%s: transport failure: %v", s.adapter.Venue(), err)
					return false
				}
				return true
			}

			events, err := s.adapter.Decode(frame)
			if err != nil {
				// Malformed single message: log, count, move on.
				promclient.DecodeErrorsTotal.Inc()
				logger.Printf("%s: skipping undecodable frame: %v", s.adapter.Venue(), err)
				continue
			}

			for _, ev := range events {
				if err := s.sink.ApplyEvent(ev); err != nil {
					logger.Printf("%s: decode-fatal: %v", s.adapter.Venue(), err)
					return false
				}
			}
		}
	}
}

func (s *Supervisor) fetchSeed(ctx context.Context) chan seedResult {
	ch := make(chan seedResult, 1)
	go func() {
		cctx, cancel := context.WithTimeout(ctx, s.cfg.RestTimeout)
		defer cancel()
		snap, err := s.syncAPI.BookSnapshot(cctx, s.cfg.Symbol, s.cfg.DepthLimit)
		ch <- seedResult{snap: snap, err: err}
	}()
	return ch
}

// fallback walks the degradation cascade. Returns true when the live path
// should be retried (connectivity restored), false when the supervisor
// should stop.
func (s *Supervisor) fallback(ctx context.Context) bool {
	s.transition(domain.StateFallbackRest)
	promclient.FallbacksTotal.WithLabelValues("rest").Inc()

	failures := 0
	for s.syncAPI != nil && failures < s.cfg.RestRetryCount {
		cctx, cancel := context.WithTimeout(ctx, s.cfg.RestTimeout)
		snap, err := s.syncAPI.BookSnapshot(cctx, s.cfg.Symbol, s.cfg.DepthLimit)
		cancel()

		if err != nil {
			failures++
			logger.Printf("%s: rest fallback fetch failed (%d/%d): %v",
				s.adapter.Venue(), failures, s.cfg.RestRetryCount, err)
			if ctx.Err() != nil {
				return false
			}
			continue
		}

		s.sink.Seed(snap)
		failures = 0

		select {
		case <-time.After(s.cfg.RestPollInterval):
		case <-s.netRestored:
			return true
		case <-s.closeReq:
			return false
		case <-ctx.Done():
			return false
		}
	}

	s.transition(domain.StateFallbackCache)
	promclient.FallbacksTotal.WithLabelValues("cache").Inc()

	entry, ok := s.cache.Get(s.adapter.Venue(), s.cfg.Symbol)
	if ok && time.Since(entry.StoredAt) <= s.cfg.CacheFreshness {
		s.sink.PublishCached(entry)
	} else {
		s.transition(domain.StateFallbackSynthetic)
		promclient.FallbacksTotal.WithLabelValues("synthetic").Inc()

		ref := defaultSyntheticRef
		if ok {
			// Even a stale cache anchors the synthetic price better than
			// a constant.
			if mid := entry.Snapshot.MidPrice(); mid.Sign() > 0 {
				ref = mid
			}
		}
		s.sink.PublishSynthetic(SyntheticSnapshot(ref, s.cfg.DepthLimit))
	}

	select {
	case <-s.netRestored:
		return true
	case <-s.closeReq:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *Supervisor) transition(next domain.ConnState) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	if prev != next {
		logger.Printf("%s: %s -> %s", s.adapter.Venue(), prev, next)
		s.sink.StateChanged(next)
	}
}

func (s *Supervisor) bumpAttempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt++
	return s.attempt
}

func (s *Supervisor) resetAttempt() {
	s.mu.Lock()
	s.attempt = 0
	s.mu.Unlock()
}

func (s *Supervisor) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-s.closeReq:
		return true
	default:
		return false
	}
}
