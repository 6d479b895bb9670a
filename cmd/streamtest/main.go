// streamtest connects to the Polymarket market feed and prints parsed
// events to the console, one per line. It needs no config file.
//
// Usage: go run ./cmd/streamtest -tokens 1234,5678 -duration 1m
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/polymarket-data/internal/connection"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/stream"
	"github.com/rickgao/polymarket-data/internal/version"
)

func main() {
	url := flag.String("url", connection.DefaultSessionConfig().URL, "market feed endpoint")
	tokens := flag.String("tokens", "", "comma-separated token ids to stream")
	duration := flag.Duration("duration", 0, "stop after this long (0 = run until signal)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	// Logs go to stderr so stdout carries only event lines.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	tokenIDs := splitTokens(*tokens)
	if len(tokenIDs) == 0 {
		logger.Error("no tokens to stream; pass -tokens")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	cfg := connection.DefaultSessionConfig()
	cfg.URL = *url

	ctrl := stream.NewController(cfg, nil, logger)

	if err := ctrl.Start(ctx, tokenIDs, printEvent, *duration); err != nil {
		logger.Error("failed to start streaming", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := ctrl.Stats()
				fields := []any{
					"state", ctrl.State().String(),
					"delivered", stats.Delivered,
				}
				if s := stats.Session; s != nil {
					fields = append(fields,
						"connects", s.Connects,
						"books", s.Normalizer.Books,
						"price_changes", s.Normalizer.PriceChanges,
						"parse_errors", s.Normalizer.ParseErrors,
					)
				}
				logger.Info("stats", fields...)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop", "tokens", len(tokenIDs))

	// Wait for shutdown
	if *duration > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(*duration):
			logger.Info("duration elapsed")
		}
	} else {
		<-ctx.Done()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	ctrl.Stop(shutdownCtx)
	logger.Info("shutdown complete")
}

func printEvent(ev model.MarketEvent) {
	switch ev := ev.(type) {
	case model.BookSnapshot:
		fmt.Printf("[BOOK] asset=%s bids=%d asks=%d best_bid=%s best_ask=%s hash=%s\n",
			ev.AssetID, len(ev.Bids), len(ev.Asks),
			fmtPrice(ev.BestBid()), fmtPrice(ev.BestAsk()), ev.Hash)
	case model.PriceChange:
		fmt.Printf("[PRICE] asset=%s side=%s price=%s size=%s best_bid=%s best_ask=%s\n",
			ev.AssetID, ev.Side,
			fmtPtr(ev.Price), fmtPtr(ev.Size), fmtPtr(ev.BestBid), fmtPtr(ev.BestAsk))
	}
}

func fmtPrice(p float64) string {
	if p == 0 {
		return "-"
	}
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func fmtPtr(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func splitTokens(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
