package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/polymarket-data/internal/api"
	"github.com/rickgao/polymarket-data/internal/config"
	"github.com/rickgao/polymarket-data/internal/connection"
	"github.com/rickgao/polymarket-data/internal/database"
	"github.com/rickgao/polymarket-data/internal/market"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/publisher"
	"github.com/rickgao/polymarket-data/internal/router"
	"github.com/rickgao/polymarket-data/internal/stream"
	"github.com/rickgao/polymarket-data/internal/version"
	"github.com/rickgao/polymarket-data/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	tokens := flag.String("tokens", "", "comma-separated token ids to stream")
	markets := flag.String("markets", "", "comma-separated condition ids, resolved to tokens via the registry")
	allOpen := flag.Bool("all-open", false, "stream every open market's tokens")
	duration := flag.Duration("duration", 0, "stop after this long (0 = run until signal)")
	verbose := flag.Bool("v", false, "debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	// Set up structured logging
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.GitCommit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Create CLOB API client
	apiClient := api.NewClient(cfg.API.ClobURL, cfg.API.APIKey,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
	)

	// Connect to database (optional)
	var (
		pool       *pgxpool.Pool
		bookBuffer *router.GrowableBuffer[model.BookSnapshot]
		bookWriter *writer.BookWriter
	)
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)

		pool, err = database.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := database.CreateTables(ctx, pool); err != nil {
			logger.Error("failed to create tables", "error", err)
			os.Exit(1)
		}
		logger.Info("database connected")

		bookBuffer = router.NewGrowableBuffer[model.BookSnapshot](cfg.Database.BufferSize)
		bookWriter = writer.NewBookWriter(writer.WriterConfig{
			BatchSize:     cfg.Database.BatchSize,
			FlushInterval: cfg.Database.FlushInterval,
			Source:        writer.SourceStream,
		}, bookBuffer, pool, logger)

		bookWriter.Start(ctx)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			bookWriter.Stop(shutdownCtx)
		}()
		logger.Info("book writer started")
	}

	// Connect to Redis (optional)
	var pub *publisher.RedisPublisher
	if cfg.Redis.Enabled {
		pub = publisher.NewRedisPublisher(cfg.Redis, logger)

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := pub.Ping(pingCtx)
		pingCancel()
		if err != nil {
			logger.Error("failed to reach redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		logger.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	// Start market registry (initial sync)
	registry := market.NewRegistry(apiClient, cfg.Registry.RefreshInterval, logger)

	logger.Info("starting market registry (initial sync)...")
	if err := registry.Start(ctx); err != nil {
		logger.Error("failed to start market registry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		registry.Stop(shutdownCtx)
	}()
	logger.Info("market registry started", "markets", registry.Len())

	// Resolve the subscription set
	tokenIDs := selectTokens(registry, *tokens, *markets, *allOpen)
	if len(tokenIDs) == 0 {
		logger.Error("no tokens to stream; pass -tokens, -markets, or -all-open")
		os.Exit(1)
	}

	// Fan-out sink: books go to the writer buffer and the publisher,
	// everything is visible at debug level.
	sink := func(ev model.MarketEvent) {
		switch ev := ev.(type) {
		case model.BookSnapshot:
			if bookBuffer != nil {
				bookBuffer.Send(ev)
			}
			if pub != nil {
				// Background context so books still publish while the
				// delivery loop drains after cancellation.
				pubCtx, pubCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := pub.PublishBook(pubCtx, &ev); err != nil {
					logger.Warn("book publish failed", "asset_id", ev.AssetID, "error", err)
				}
				pubCancel()
			}
			logger.Debug("book",
				"asset_id", ev.AssetID,
				"bids", len(ev.Bids),
				"asks", len(ev.Asks),
			)
		case model.PriceChange:
			logger.Debug("price_change", "asset_id", ev.AssetID, "side", ev.Side)
		}
	}

	// Start streaming
	streamCfg := connection.SessionConfig{
		URL:               cfg.Stream.WSURL,
		PingInterval:      cfg.Stream.PingInterval,
		ReconnectBaseWait: cfg.Stream.ReconnectBaseWait,
		ReconnectMaxWait:  cfg.Stream.ReconnectMaxWait,
		EventBuffer:       cfg.Stream.EventBuffer,
		StopTimeout:       cfg.Stream.StopTimeout,
	}
	ctrl := stream.NewController(streamCfg, apiClient, logger)

	if err := ctrl.Start(ctx, tokenIDs, sink, *duration); err != nil {
		logger.Error("failed to start streaming", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		ctrl.Stop(shutdownCtx)
	}()

	// Start health server
	var healthServer *http.Server
	if cfg.Health.Addr != "" {
		healthServer = &http.Server{
			Addr:    cfg.Health.Addr,
			Handler: healthHandler(pool, registry, ctrl, bookBuffer, bookWriter, pub),
		}
		go func() {
			logger.Info("starting health server", "addr", cfg.Health.Addr)
			if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("health server error", "error", err)
			}
		}()
	}

	logger.Info("collector running",
		"tokens", len(tokenIDs),
		"duration", *duration,
	)

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

	logger.Info("shutting down...")

	if healthServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		healthServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	logger.Info("collector stopped")
}

// selectTokens merges the three selection flags into one token list.
// Duplicates are collapsed by the subscription set at session start.
func selectTokens(registry *market.Registry, tokens, markets string, allOpen bool) []string {
	ids := splitList(tokens)

	if conditionIDs := splitList(markets); len(conditionIDs) > 0 {
		ids = append(ids, registry.TokenIDs(conditionIDs...)...)
	}

	if allOpen {
		for _, m := range registry.OpenMarkets() {
			for _, tok := range m.Tokens {
				if tok.ID != "" {
					ids = append(ids, tok.ID)
				}
			}
		}
	}

	return ids
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// healthHandler serves /healthz and /stats. Optional components are nil
// when disabled in config.
func healthHandler(pool *pgxpool.Pool, registry *market.Registry, ctrl *stream.Controller, bookBuffer *router.GrowableBuffer[model.BookSnapshot], bookWriter *writer.BookWriter, pub *publisher.RedisPublisher) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}

		if pub != nil {
			if err := pub.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["redis"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["redis"] = "connected"
			}
		}

		health.Components["stream"] = ctrl.State().String()
		health.Components["markets"] = registry.Len()
		if registry.Len() == 0 {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]any{
			"stream":   ctrl.Stats(),
			"registry": registry.Stats(),
		}
		if bookBuffer != nil {
			stats["book_buffer"] = bookBuffer.Stats()
		}
		if bookWriter != nil {
			stats["writer"] = bookWriter.Metrics()
		}
		if pub != nil {
			stats["publisher"] = pub.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	return mux
}
