package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventbook/internal/notifications"
	"eventbook/internal/shared/config"
	"eventbook/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// notifier consumes booking.confirmed events and sends confirmations.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	appLogger := logger.NewWithWriter(os.Stdout, cfg.LogLevel, cfg.IsDevelopment())
	logger.SetDefault(appLogger)

	if !cfg.Kafka.Enabled {
		appLogger.Error("Kafka is disabled, set KAFKA_ENABLED=true to run the notifier")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// Without the marker store duplicates are delivered twice, not lost
			appLogger.Error("Redis unavailable, notification dedup disabled", slog.Any("error", err))
			_ = rdb.Close()
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	notifier := notifications.NewNotifier(notifications.NewLogSender(), rdb)
	consumer, err := notifications.NewConsumer(cfg.Kafka, notifier)
	if err != nil {
		appLogger.Error("Failed to create booking consumer", slog.Any("error", err))
		os.Exit(1)
	}

	appLogger.Info("Notifier started",
		slog.String("topic", cfg.Kafka.BookingTopic),
		slog.String("group", cfg.Kafka.GroupID),
		slog.Int("workers", cfg.Kafka.Workers),
	)

	if err := consumer.Run(ctx); err != nil {
		appLogger.Error("Consumer stopped with error", slog.Any("error", err))
	}
	if err := consumer.Close(); err != nil {
		appLogger.Error("Failed to close consumer", slog.Any("error", err))
	}
	appLogger.Info("Notifier exited")
}
