package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"quotesync/internal/config"
	"quotesync/internal/cycle"
	"quotesync/internal/fetcher"
	"quotesync/internal/quoteapi"
	"quotesync/internal/reconcile"
	"quotesync/internal/statestore"
	"quotesync/internal/symcache"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to connect to state store: %v", err)
	}

	client := quoteapi.New(quoteapi.Config{
		BaseURL:        cfg.APIBaseURL,
		APIKey:         cfg.APIKey,
		RequestTimeout: cfg.RequestTimeout,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseWait:  cfg.RetryBaseWait,
		RetryMaxWait:   cfg.RetryMaxWait,
		RatePerSec:     cfg.RateLimitPerSec,
		Burst:          cfg.RateBurst,
		Cooldown:       cfg.RateCooldown,
	}, logger)

	cache := symcache.New(cfg.RevalidateAfter)
	qf := fetcher.New(client, cache, cfg.MaxConcurrency, logger)
	rec := reconcile.New(store, cfg.StatePrefix, logger)

	// Drop subtrees for symbols removed from configuration before the
	// first cycle runs.
	if err := rec.Cleanup(ctx, cfg.Symbols); err != nil {
		log.Fatalf("Startup cleanup failed: %v", err)
	}

	orc := cycle.New(
		cycle.SymbolSourceFunc(func() []string { return cfg.Symbols }),
		cache,
		qf,
		rec,
		logger,
	)

	runner := cycle.NewRunner(orc, cfg.PollInterval, logger)
	runner.Start(ctx)

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := runner.Stop(stopCtx); err != nil {
		logger.Error("runner did not stop cleanly", "err", err)
	}
}

// newStore connects to Redis when configured and falls back to the
// in-memory store otherwise.
func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (statestore.Store, error) {
	if cfg.RedisAddr == "" {
		logger.Warn("no redis_addr configured, using in-memory state store")
		return statestore.NewMemoryStore(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	store := statestore.NewRedisStore(rdb, logger)

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := store.Ping(pingCtx); err != nil {
		return nil, err
	}
	return store, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
