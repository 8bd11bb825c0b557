package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/lesson-media/internal/media/domain"
	"github.com/romariotrain/lesson-media/internal/media/models"
)

// DefaultMaxEnvelopeBytes keeps relayed envelopes well under the 1 MiB
// batch limit of the Kafka writer.
const DefaultMaxEnvelopeBytes = 512 << 10

type TxTaskStore interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, t *models.Task) error
}

type OutboxWriter interface {
	Add(ctx context.Context, tx *sqlx.Tx, event models.DomainEvent) error
}

// OutboxQueue is the durable enqueue path: the pending task row, the staged
// upload bytes and the envelope are written in one transaction, and the
// outbox publisher relays the envelope to Kafka afterwards.
type OutboxQueue struct {
	tasks       TxTaskStore
	outbox      OutboxWriter
	payloads    PayloadWriter
	maxEnvelope int
}

type OutboxOption func(*OutboxQueue)

// WithMaxEnvelopeBytes caps the envelope written to the outbox. Larger
// envelopes are refused so the caller can run the task inline.
func WithMaxEnvelopeBytes(n int) OutboxOption {
	return func(q *OutboxQueue) {
		if n > 0 {
			q.maxEnvelope = n
		}
	}
}

func NewOutboxQueue(tasks TxTaskStore, outbox OutboxWriter, payloads PayloadWriter, opts ...OutboxOption) *OutboxQueue {
	q := &OutboxQueue{
		tasks:       tasks,
		outbox:      outbox,
		payloads:    payloads,
		maxEnvelope: DefaultMaxEnvelopeBytes,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *OutboxQueue) Enqueue(ctx context.Context, env models.Envelope) error {
	env, data, staged, err := detachFile(env)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrQueueUnavailable, err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: encode envelope: %v", models.ErrQueueUnavailable, err)
	}
	if len(raw) > q.maxEnvelope {
		return fmt.Errorf("%w: envelope is %d bytes, limit %d", models.ErrQueueUnavailable, len(raw), q.maxEnvelope)
	}

	tx, err := q.tasks.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", models.ErrQueueUnavailable, err)
	}
	defer tx.Rollback()

	task := &models.Task{
		ID:        env.TaskID,
		Kind:      env.Kind,
		State:     domain.Pending,
		CreatedAt: env.EnqueuedAt,
	}
	if err := q.tasks.CreateTx(ctx, tx, task); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return err
		}
		return fmt.Errorf("%w: create task: %v", models.ErrQueueUnavailable, err)
	}

	if staged {
		if err := q.payloads.PutTx(ctx, tx, env.TaskID, data); err != nil {
			return fmt.Errorf("%w: stage upload: %v", models.ErrQueueUnavailable, err)
		}
	}

	if err := q.outbox.Add(ctx, tx, models.NewTaskEnqueued(env)); err != nil {
		return fmt.Errorf("%w: add outbox: %v", models.ErrQueueUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %v", models.ErrQueueUnavailable, err)
	}
	return nil
}
