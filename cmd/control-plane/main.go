package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/tendant/hr-tenancy/internal/config"
	"github.com/tendant/hr-tenancy/pkg/repository"
	"github.com/tendant/hr-tenancy/plane"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(config.PlaneControl)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger = logger.With("plane", cfg.Plane)

	if cfg.Provisioning.DefaultAPIKey == "" {
		logger.Warn("TENANT_API_KEY is not set; tenants onboarded without an apiKey will reject provisioning calls")
	}

	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database", "db", cfg.DBName)

	p, err := plane.NewControlPlane(plane.Options{DB: db, Config: cfg, Logger: logger})
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.Serve(ctx, cfg.Addr()); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
