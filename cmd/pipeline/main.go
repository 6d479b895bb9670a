package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/polymarket-data/internal/api"
	"github.com/rickgao/polymarket-data/internal/config"
	"github.com/rickgao/polymarket-data/internal/database"
	"github.com/rickgao/polymarket-data/internal/gamma"
	"github.com/rickgao/polymarket-data/internal/pipeline"
	"github.com/rickgao/polymarket-data/internal/version"
	"github.com/rickgao/polymarket-data/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	steps := flag.String("steps", "markets,gamma,filter,books", "comma-separated steps to run")
	maxMarkets := flag.Int("max-markets", 0, "cap open markets polled for books (0 = no cap)")
	upload := flag.Bool("upload", false, "upsert fetched markets into the database")
	failFast := flag.Bool("fail-fast", false, "stop at the first failed step")
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

	logger.Info("starting pipeline",
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

	// Create API clients
	clobClient := api.NewClient(cfg.API.ClobURL, cfg.API.APIKey,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
	)
	gammaClient := gamma.NewClient(cfg.API.GammaURL,
		gamma.WithLogger(logger),
		gamma.WithTimeout(cfg.API.Timeout),
		gamma.WithPageLimit(cfg.Pipeline.GammaPageLimit),
	)

	// Connect to database when uploading
	var marketWriter *writer.MarketWriter
	if *upload {
		if !cfg.Database.Enabled {
			logger.Error("upload requested but database is disabled in config")
			os.Exit(1)
		}

		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)

		pool, err := database.NewPool(ctx, cfg.Database)
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

		marketWriter = writer.NewMarketWriter(pool, logger)
	}

	p := pipeline.NewPipeline(cfg.Pipeline, clobClient, gammaClient, clobClient, marketWriter, logger)

	started := time.Now()
	runErr := p.Run(ctx, splitSteps(*steps), pipeline.Options{
		MaxMarkets: *maxMarkets,
		Upload:     *upload,
		FailFast:   *failFast,
	})
	if runErr != nil {
		logger.Error("pipeline finished with failures",
			"elapsed", time.Since(started).Round(time.Millisecond),
			"error", runErr,
		)
		os.Exit(1)
	}

	logger.Info("pipeline complete",
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
}

func splitSteps(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
