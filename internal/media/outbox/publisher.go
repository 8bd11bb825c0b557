// Package outbox relays task envelopes written to the outbox table into the
// task topic. Delivery is at-least-once; the worker tolerates duplicates.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/lesson-media/internal/storage/postgres"
)

// Store is the outbox table as seen by the relay.
type Store interface {
	GetPending(ctx context.Context, limit int) ([]postgres.OutboxRecord, error)
	MarkProcessed(ctx context.Context, id int64) error
}

type Producer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type Publisher struct {
	store     Store
	producer  Producer
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
}

type PublisherConfig struct {
	Store     Store
	Producer  Producer
	Interval  time.Duration
	BatchSize int
	Logger    zerolog.Logger
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.Store == nil {
		return nil, errors.New("outbox store is required")
	}
	if cfg.Producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got: %v", cfg.Interval)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got: %d", cfg.BatchSize)
	}

	return &Publisher{
		store:     cfg.Store,
		producer:  cfg.Producer,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger.With().Str("component", "outbox_publisher").Logger(),
	}, nil
}

// Start polls the outbox every interval until ctx is cancelled. A failed
// record stays pending and is retried on the next tick.
func (p *Publisher) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().
		Dur("interval", p.interval).
		Int("batch_size", p.batchSize).
		Msg("outbox publisher started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Err(ctx.Err()).Msg("outbox publisher stopped")
			return ctx.Err()

		case <-ticker.C:
			if _, err := p.publishBatch(ctx); err != nil {
				p.logger.Error().Err(err).Msg("failed to publish batch")
			}
		}
	}
}

type batchStats struct {
	total     int
	published int
	failed    int
	marked    int
}

func (p *Publisher) publishBatch(ctx context.Context) (batchStats, error) {
	var stats batchStats

	records, err := p.store.GetPending(ctx, p.batchSize)
	if err != nil {
		return stats, fmt.Errorf("get pending records: %w", err)
	}
	stats.total = len(records)
	if len(records) == 0 {
		return stats, nil
	}

	for _, record := range records {
		eventLogger := p.logger.With().
			Str("event_id", record.EventID).
			Str("event_type", record.EventType).
			Str("task_id", record.AggregateID).
			Int64("outbox_id", record.ID).
			Logger()

		// keyed by task id so redeliveries of one task stay on one partition
		if err := p.producer.Publish(ctx, record.AggregateID, record.Payload); err != nil {
			eventLogger.Error().Err(err).Msg("failed to publish task envelope")
			stats.failed++
			continue
		}
		stats.published++

		if err := p.store.MarkProcessed(ctx, record.ID); err != nil {
			// published but still pending: it will go out again
			eventLogger.Warn().Err(err).Msg("failed to mark event as processed")
			continue
		}
		stats.marked++
	}

	p.logger.Info().
		Int("total", stats.total).
		Int("published", stats.published).
		Int("failed", stats.failed).
		Int("marked", stats.marked).
		Msg("batch processing completed")

	return stats, nil
}
