package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/romariotrain/lesson-media/internal/app"
	"github.com/romariotrain/lesson-media/internal/config"
	"github.com/romariotrain/lesson-media/internal/media/kafka"
	"github.com/romariotrain/lesson-media/internal/media/outbox"
	pg "github.com/romariotrain/lesson-media/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	logger := app.NewLogger(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	code := app.Run("publish", logger, func(ctx context.Context) error {
		return run(ctx, cfg, logger)
	})
	os.Exit(code)
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	if cfg.QueueMode != config.QueueKafka {
		return fmt.Errorf("publisher requires QUEUE_MODE=%s", config.QueueKafka)
	}

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:         cfg.KafkaBrokers,
		Topic:           cfg.KafkaTopic,
		MaxMessageBytes: cfg.KafkaMaxMessageBytes,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	defer producer.Close()

	if err := producer.HealthCheck(ctx); err != nil {
		logger.Warn().Err(err).Msg("kafka not reachable yet, publisher will keep retrying")
	}

	pub, err := outbox.NewPublisher(outbox.PublisherConfig{
		Store:     pg.NewOutboxRepo(db),
		Producer:  producer,
		Interval:  cfg.OutboxInterval,
		BatchSize: cfg.OutboxBatchSize,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("outbox publisher: %w", err)
	}

	if err := pub.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stats := producer.GetMetrics()
	logger.Info().
		Int64("published", stats.MessagesPublished).
		Int64("failed", stats.MessagesFailed).
		Int64("retries", stats.RetriesTotal).
		Dur("avg_publish", stats.AvgPublishTime).
		Msg("publisher totals")
	return nil
}
