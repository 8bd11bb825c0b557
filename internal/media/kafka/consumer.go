package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// MaxAttempts bounds how often a failing message is handed back to the
	// handler before its offset is committed anyway.
	MaxAttempts  int
	RetryBackoff time.Duration
	// MaxBytes caps one fetch. Envelopes carry no file bytes, so the default
	// is generous.
	MaxBytes int
	Logger   zerolog.Logger
}

// Handler processes one record. A returned error asks for a retry.
type Handler func(ctx context.Context, msg Message) error

// messageReader is the part of *kafkago.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Consumer struct {
	reader  messageReader
	config  ConsumerConfig
	handler Handler
	logger  zerolog.Logger
}

func NewConsumer(cfg ConsumerConfig, h Handler) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("brokers list is empty")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is empty")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("group id is empty")
	}
	if h == nil {
		return nil, errors.New("handler is nil")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       cfg.MaxBytes,
		CommitInterval: 0, // commit synchronously after each message
		StartOffset:    kafkago.FirstOffset,
	})
	return newConsumer(cfg, h, reader), nil
}

func newConsumer(cfg ConsumerConfig, h Handler, reader messageReader) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &Consumer{
		reader:  reader,
		config:  cfg,
		handler: h,
		logger:  cfg.Logger.With().Str("component", "kafka_consumer").Str("topic", cfg.Topic).Logger(),
	}
}

// Run fetches, handles and commits until ctx is cancelled. Offsets are
// committed only after the handler returns, so a crash mid-task redelivers.
// A message interrupted by cancellation is left uncommitted.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info().Str("group_id", c.config.GroupID).Msg("consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info().Msg("consumer stopped")
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		c.handle(ctx, msg)
		if ctx.Err() != nil {
			c.logger.Info().Int64("offset", msg.Offset).Msg("consumer stopped before commit")
			return ctx.Err()
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) {
	log := c.logger.With().
		Str("key", string(msg.Key)).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Logger()

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		err := c.handler(ctx, Message{Key: string(msg.Key), Value: msg.Value})
		if err == nil {
			return
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("handler failed")
		if attempt == c.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.config.RetryBackoff * time.Duration(attempt)):
		}
	}
	log.Error().Msg("giving up on message, committing offset")
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
