package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cryptoview/go-orderbook-sync/config"
	"github.com/cryptoview/go-orderbook-sync/domain"
	promclient "github.com/cryptoview/go-orderbook-sync/infrastructure/prometheus"
	"github.com/cryptoview/go-orderbook-sync/provider"
	"github.com/cryptoview/go-orderbook-sync/usecase"
)

var logger = log.New(os.Stdout, "[main] ", log.LstdFlags)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("configuration: %v", err)
	}

	go promclient.StartPromClientServer(cfg.MetricsAddr)

	symbol, err := cfg.MarketSymbol()
	if err != nil {
		logger.Fatalf("symbol: %v", err)
	}

	manager := usecase.NewFeedManager(
		cfg.DepthLimit,
		cfg.PublishInterval(),
		provider.SupervisorConfig{
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
			BackoffInitial:       cfg.BackoffInitial,
			BackoffMax:           cfg.BackoffMax,
			RestRetryCount:       cfg.RestRetryCount,
			RestTimeout:          cfg.RestTimeout,
			CacheFreshness:       cfg.CacheFreshness,
			HeartbeatTimeout:     cfg.HeartbeatTimeout,
		},
		provider.ResolveOptions{
			DepthLimit:  cfg.DepthLimit,
			UpdateSpeed: cfg.UpdateSpeed,
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sub, err := manager.Switch(ctx, domain.Venue(cfg.Venue), symbol)
	if err != nil {
		logger.Fatalf("starting %s feed: %v", cfg.Venue, err)
	}
	logger.Printf("watching %s on %s (depth %d, %d fps)",
		symbol, cfg.Venue, cfg.DepthLimit, cfg.PublishFPS)

	for {
		select {
		case <-ctx.Done():
			logger.Println("shutting down")
			manager.Close()
			return
		case update, ok := <-sub.Stream:
			if !ok {
				return
			}
			printUpdate(update)
		}
	}
}

func printUpdate(u *domain.FeedUpdate) {
	bid, ask := "-", "-"
	if len(u.Book.Bids) > 0 {
		bid = u.Book.Bids[0].Price.String()
	}
	if len(u.Book.Asks) > 0 {
		ask = u.Book.Asks[0].Price.String()
	}

	fmt.Printf("%s %s bid=%s ask=%s spread=%s depth=%d/%d live=%t state=%s\n",
		u.Book.Venue, u.Book.Symbol, bid, ask, u.Book.Spread,
		len(u.Book.Bids), len(u.Book.Asks), u.Live, u.State)
}
