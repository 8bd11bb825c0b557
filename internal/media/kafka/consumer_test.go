package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopHandler(context.Context, Message) error { return nil }

// fakeReader hands out msgs in order and then calls drained, blocking until
// ctx is done. Every fetch, handler call and commit is appended to events.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafkago.Message
	drained   func()
	commitErr error
	events    []string
	committed []int64
}

func (r *fakeReader) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()

	if r.drained != nil {
		r.drained()
	}
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	for _, m := range msgs {
		r.record(fmt.Sprintf("commit:%d", m.Offset))
		r.mu.Lock()
		r.committed = append(r.committed, m.Offset)
		r.mu.Unlock()
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func taskMessages(n int) []kafkago.Message {
	msgs := make([]kafkago.Message, n)
	for i := range msgs {
		msgs[i] = kafkago.Message{
			Key:    []byte(fmt.Sprintf("task-%d", i)),
			Value:  []byte(`{"task_id":"x"}`),
			Offset: int64(i),
		}
	}
	return msgs
}

func testConsumer(reader *fakeReader, maxAttempts int, h Handler) *Consumer {
	return newConsumer(ConsumerConfig{
		Topic:        "media.tasks",
		GroupID:      "media-worker",
		MaxAttempts:  maxAttempts,
		RetryBackoff: time.Millisecond,
		Logger:       zerolog.Nop(),
	}, h, reader)
}

func TestNewConsumer_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  ConsumerConfig
		handler Handler
		wantErr string
	}{
		{"empty brokers", ConsumerConfig{Topic: "t", GroupID: "g"}, nopHandler, "brokers list is empty"},
		{"empty topic", ConsumerConfig{Brokers: []string{"localhost:9092"}, GroupID: "g"}, nopHandler, "topic is empty"},
		{"empty group", ConsumerConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, nopHandler, "group id is empty"},
		{"nil handler", ConsumerConfig{Brokers: []string{"localhost:9092"}, Topic: "t", GroupID: "g"}, nil, "handler is nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewConsumer(tt.config, tt.handler)

			require.Error(t, err)
			assert.Nil(t, c)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewConsumer_ReaderConfig(t *testing.T) {
	c, err := NewConsumer(ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "media.tasks",
		GroupID: "media-worker",
		Logger:  zerolog.Nop(),
	}, nopHandler)
	require.NoError(t, err)
	defer c.Close()

	r, ok := c.reader.(*kafkago.Reader)
	require.True(t, ok)
	assert.Equal(t, 5, c.config.MaxAttempts)
	assert.Equal(t, "media.tasks", r.Config().Topic)
	assert.Equal(t, "media-worker", r.Config().GroupID)
	assert.Equal(t, 10<<20, r.Config().MaxBytes)
}

func TestConsumer_CommitsAfterHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{msgs: taskMessages(2), drained: cancel}

	c := testConsumer(reader, 3, func(_ context.Context, msg Message) error {
		reader.record("handle:" + msg.Key)
		return nil
	})

	err := c.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"handle:task-0", "commit:0", "handle:task-1", "commit:1"}, reader.events)
}

func TestConsumer_RetriesThenCommits(t *testing.T) {
	t.Run("recovers on a later attempt", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		reader := &fakeReader{msgs: taskMessages(1), drained: cancel}

		calls := 0
		c := testConsumer(reader, 3, func(context.Context, Message) error {
			calls++
			if calls == 1 {
				return errors.New("db blip")
			}
			return nil
		})

		require.ErrorIs(t, c.Run(ctx), context.Canceled)
		assert.Equal(t, 2, calls)
		assert.Equal(t, []int64{0}, reader.committed)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		reader := &fakeReader{msgs: taskMessages(1), drained: cancel}

		calls := 0
		c := testConsumer(reader, 3, func(context.Context, Message) error {
			calls++
			return errors.New("still broken")
		})

		require.ErrorIs(t, c.Run(ctx), context.Canceled)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int64{0}, reader.committed)
	})
}

func TestConsumer_NoCommitWhenCancelledMidTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{msgs: taskMessages(2)}

	c := testConsumer(reader, 5, func(context.Context, Message) error {
		cancel()
		return errors.New("interrupted")
	})

	err := c.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reader.committed)
}

func TestConsumer_CommitFailureStopsRun(t *testing.T) {
	reader := &fakeReader{msgs: taskMessages(1), commitErr: errors.New("coordinator moved")}
	c := testConsumer(reader, 1, nopHandler)

	err := c.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit offset 0")
}
