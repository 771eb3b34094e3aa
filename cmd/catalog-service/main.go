package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mercadolista/catalog-service/config"
	"github.com/mercadolista/catalog-service/internal/infra/cache"
	"github.com/mercadolista/catalog-service/internal/infra/postgres"
	"github.com/mercadolista/catalog-service/internal/infra/server"
	"github.com/mercadolista/catalog-service/pkg/logger"
)

func main() {
	mainContext := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	observableLogger, loggerProvider, err := logger.NewObservableLogger(&cfg)
	if err != nil {
		// Fall back to local-only logging when the OTLP collector is unreachable.
		slog.Error("failed to create observable logger, using local logger", slog.String("error", err.Error()))
		observableLogger = logger.NewLogger(&cfg)
		loggerProvider = nil
	}
	slog.SetDefault(observableLogger)

	conn, err := postgres.Init(cfg)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := postgres.EnsureSchema(mainContext, conn); err != nil {
		slog.Error("failed to ensure database schema", slog.String("error", err.Error()))
		os.Exit(1)
	}

	redisClient, err := cache.Init(mainContext, cfg)
	if err != nil {
		slog.Warn("redis unavailable, running without cache", slog.String("error", err.Error()))
		redisClient = nil
	}

	srv := server.New(mainContext, &cfg, conn, redisClient)
	if srv == nil {
		slog.Error("failed to initialize server")
		os.Exit(1)
	}
	if loggerProvider != nil {
		srv.SetLoggerProvider(loggerProvider)
	}

	srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("Received shutdown signal", slog.String("signal", sig.String()))
	srv.Shutdown()
}
