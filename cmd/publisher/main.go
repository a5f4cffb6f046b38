// Package main provides the outbox publisher that polls unpublished events and publishes them to Redis Streams.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/rueidis"

	"github.com/opencourt/pairing-settlement/internal/config"
	"github.com/opencourt/pairing-settlement/internal/logger"
	"github.com/opencourt/pairing-settlement/internal/repository"
	"github.com/opencourt/pairing-settlement/internal/service"
)

const (
	signalBufferSize = 1
	exitCode         = 1
)

func setupDatabase(cfg *config.Config) (*pgxpool.Pool, error) {
	return pgxpool.New(context.Background(), cfg.DatabaseURL)
}

func setupRedisClient(cfg *config.Config) (rueidis.Client, error) {
	return rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{cfg.RedisAddr},
	})
}

func setupSignalHandling() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, signalBufferSize)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("shutdown signal received, stopping publisher")
		cancel()
	}()

	return ctx, cancel
}

func runPublisherLoop(
	ctx context.Context,
	publisher service.OutboxPublisher,
	pollInterval time.Duration,
	batchSize int,
) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("publisher stopped")
			return
		case <-ticker.C:
			if err := publisher.ProcessUnpublished(ctx, batchSize); err != nil {
				slog.Error("error processing outbox events", slog.String("error", err.Error()))
			}
		}
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	loggerInstance := logger.Setup(cfg.LogLevel, "publisher")
	slog.SetDefault(loggerInstance)

	dbPool, err := setupDatabase(cfg)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer dbPool.Close()

	redisClient, err := setupRedisClient(cfg)
	if err != nil {
		slog.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer redisClient.Close()

	store := repository.NewStore(dbPool)
	publisher := service.NewOutboxPublisherImpl(store.Repos().Outbox, redisClient, cfg.EventStreamKey, loggerInstance)

	ctx, cancel := setupSignalHandling()
	defer cancel()

	slog.Info("starting outbox publisher",
		slog.String("stream", cfg.EventStreamKey),
		slog.Duration("poll_interval", cfg.PublisherPollInterval),
		slog.Int("batch_size", cfg.PublisherBatchSize),
	)

	runPublisherLoop(ctx, publisher, cfg.PublisherPollInterval, cfg.PublisherBatchSize)
}
