package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/brojonat/soloquy/service/config"
	"github.com/brojonat/soloquy/service/db"
	"github.com/brojonat/soloquy/service/engine"
	"github.com/brojonat/soloquy/service/intent"
	"github.com/brojonat/soloquy/service/metrics"
	"github.com/brojonat/soloquy/service/nats"
	"github.com/brojonat/soloquy/service/server"
	"github.com/brojonat/soloquy/service/solana"
	"github.com/brojonat/soloquy/service/swap"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics collectors
	m := metrics.NewMetrics(nil)

	// Initialize Solana RPC client
	// Note: For premium RPC endpoints, include API key in the URL
	solanaRPC := solana.NewRPCClient(cfg.SolanaRPCURL)
	ledger := solana.NewClient(solanaRPC, cfg.SolanaRPCURL, m, logger)
	logger.Info("initialized solana RPC client", "url", cfg.SolanaRPCURL)

	// Initialize intent classifier
	classifier, err := intent.NewGenAIClassifier(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		logger.Error("failed to initialize classifier", "error", err)
		os.Exit(1)
	}
	logger.Info("initialized intent classifier", "model", cfg.GeminiModel)

	// Initialize swap aggregator client
	quoter := swap.NewClient(cfg.JupiterBaseURL, nil, logger)

	// Initialize the agent signer (optional)
	var signer *engine.AgentSigner
	if cfg.AgentSigningConfigured() {
		signer, err = engine.NewAgentSigner(cfg.AgentPrivateKey)
		if err != nil {
			logger.Error("failed to load agent signing key", "error", err)
			os.Exit(1)
		}
		logger.Info("agent signing enabled", "address", signer.PublicKey().String())
	} else {
		logger.Warn("AGENT_PRIVATE_KEY not set, agent-signed transactions disabled")
	}

	// Initialize asset registry
	assets := engine.NewAssetRegistry()
	assets.Register(engine.Asset{Symbol: "USDC", Mint: cfg.USDCMintAddress, Decimals: 6})

	// Initialize audit store (optional)
	var store *db.Store
	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		store = db.NewStore(dbPool, m)
		logger.Info("connected to database, audit trail enabled")
	} else {
		logger.Warn("DATABASE_URL not set, audit trail disabled")
	}

	// Initialize NATS publisher (optional)
	var publisher *nats.JetStreamPublisher
	if cfg.NATSURL != "" {
		publisher, err = nats.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to initialize NATS publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
	} else {
		logger.Warn("NATS_URL not set, execution event streaming disabled")
	}

	// Assemble the pipeline engine
	engCfg := engine.Config{
		Classifier: classifier,
		Ledger:     ledger,
		Quoter:     quoter,
		Signer:     signer,
		Assets:     assets,
		Metrics:    m,
		Logger:     logger,
	}
	if store != nil {
		engCfg.Audit = store
	}
	if publisher != nil {
		engCfg.Events = publisher
	}
	eng := engine.New(engCfg)

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, cfg, eng, ledger, store, m, logger)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
