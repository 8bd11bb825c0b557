package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// ProducerConfig configures the task topic writer. Zero values are replaced
// by defaults in setDefaults.
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	MaxRetries   int
	RetryBackoff time.Duration
	WriteTimeout time.Duration
	BatchSize    int

	// MaxMessageBytes bounds key plus value of one message and sizes the
	// writer batch. It must not exceed the broker's message.max.bytes.
	MaxMessageBytes int
	Async           bool
	Logger          zerolog.Logger
}

// DefaultMaxMessageBytes matches the kafka-go writer batch default.
const DefaultMaxMessageBytes = 1 << 20

// ErrMessageTooLarge is returned before any write is attempted. Retrying
// cannot help.
var ErrMessageTooLarge = errors.New("message exceeds max message bytes")

// messageWriter is the part of *kafkago.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Message struct {
	Key   string
	Value []byte
}

type producerMetrics struct {
	MessagesPublished atomic.Int64
	MessagesFailed    atomic.Int64
	RetriesTotal      atomic.Int64
	PublishDuration   atomic.Int64 // nanoseconds, summed
}

type ProducerMetrics struct {
	MessagesPublished int64
	MessagesFailed    int64
	RetriesTotal      int64
	AvgPublishTime    time.Duration
}

type Producer struct {
	writer  messageWriter
	config  ProducerConfig
	metrics producerMetrics
	closed  atomic.Bool
	logger  zerolog.Logger
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid producer config: %w", err)
	}
	setDefaults(&cfg)

	p := &Producer{
		config: cfg,
		logger: cfg.Logger.With().Str("component", "kafka_producer").Str("topic", cfg.Topic).Logger(),
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.MaxMessageBytes),
		WriteTimeout: cfg.WriteTimeout,
		// retries are driven by Publish so they show up in metrics
		MaxAttempts: 1,
		Async:       cfg.Async,
	}
	if cfg.Async {
		w.Completion = func(msgs []kafkago.Message, err error) {
			if err != nil {
				p.metrics.MessagesFailed.Add(int64(len(msgs)))
				p.logger.Error().Err(err).Int("count", len(msgs)).Msg("async write failed")
				return
			}
			p.metrics.MessagesPublished.Add(int64(len(msgs)))
		}
	}
	p.writer = w
	return p, nil
}

func validateConfig(cfg *ProducerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("brokers list is empty")
	}
	if cfg.Topic == "" {
		return errors.New("topic is empty")
	}
	if cfg.MaxRetries < 0 {
		return errors.New("max_retries cannot be negative")
	}
	if cfg.RetryBackoff < 0 {
		return errors.New("retry_backoff cannot be negative")
	}
	if cfg.WriteTimeout < 0 {
		return errors.New("write_timeout cannot be negative")
	}
	if cfg.MaxMessageBytes < 0 {
		return errors.New("max_message_bytes cannot be negative")
	}
	return nil
}

func setDefaults(cfg *ProducerConfig) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxMessageBytes == 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}
}

// Publish writes one message keyed by key. Messages for the same key land on
// the same partition.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	return p.PublishBatch(ctx, []Message{{Key: key, Value: value}})
}

func (p *Producer) PublishBatch(ctx context.Context, messages []Message) error {
	if p.closed.Load() {
		return errors.New("producer is closed")
	}
	if len(messages) == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, 0, len(messages))
	for _, m := range messages {
		if size := len(m.Key) + len(m.Value); size > p.config.MaxMessageBytes {
			p.metrics.MessagesFailed.Add(int64(len(messages)))
			return fmt.Errorf("kafka publish key %s: %w (%d > %d)", m.Key, ErrMessageTooLarge, size, p.config.MaxMessageBytes)
		}
		msgs = append(msgs, kafkago.Message{Key: []byte(m.Key), Value: m.Value})
	}

	start := time.Now()
	var err error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			p.metrics.RetriesTotal.Add(1)
			backoff := p.config.RetryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				p.metrics.MessagesFailed.Add(int64(len(msgs)))
				return fmt.Errorf("kafka publish: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		err = p.writer.WriteMessages(ctx, msgs...)
		if err == nil {
			break
		}
		if !isRetriableError(err) {
			break
		}
		p.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("kafka write failed, retrying")
	}

	if err != nil {
		p.metrics.MessagesFailed.Add(int64(len(msgs)))
		return fmt.Errorf("kafka publish: %w", err)
	}
	if !p.config.Async {
		p.metrics.MessagesPublished.Add(int64(len(msgs)))
	}
	p.metrics.PublishDuration.Add(int64(time.Since(start)))
	return nil
}

func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrMessageTooLarge) {
		return false
	}

	var kerr kafkago.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"invalid", "too large", "authorization", "authentication"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	return true
}

func (p *Producer) GetMetrics() ProducerMetrics {
	published := p.metrics.MessagesPublished.Load()
	m := ProducerMetrics{
		MessagesPublished: published,
		MessagesFailed:    p.metrics.MessagesFailed.Load(),
		RetriesTotal:      p.metrics.RetriesTotal.Load(),
	}
	if published > 0 {
		m.AvgPublishTime = time.Duration(p.metrics.PublishDuration.Load() / published)
	}
	return m
}

// HealthCheck dials the first reachable broker.
func (p *Producer) HealthCheck(ctx context.Context) error {
	if p.closed.Load() {
		return errors.New("producer is closed")
	}
	var lastErr error
	for _, b := range p.config.Brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", b)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("no broker reachable: %w", lastErr)
}

func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return errors.New("producer already closed")
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
