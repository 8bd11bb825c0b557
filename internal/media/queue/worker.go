// Package queue moves task envelopes from the ingress handlers to the task
// bodies and owns the pending/completed status of every task.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/lesson-media/internal/media/domain"
	"github.com/romariotrain/lesson-media/internal/media/kafka"
	"github.com/romariotrain/lesson-media/internal/media/models"
	"github.com/romariotrain/lesson-media/internal/media/repository"
)

type Executor interface {
	Execute(ctx context.Context, env models.Envelope) domain.Outcome
}

const completeAttempts = 3

// Worker runs one envelope and records its outcome. It is shared by the
// in-process dispatcher and the Kafka consumer.
type Worker struct {
	tasks    repository.TaskRepository
	executor Executor
	payloads PayloadStore
	clock    func() time.Time
	backoff  time.Duration
	logger   zerolog.Logger
}

type WorkerOption func(*Worker)

// WithPayloads lets the worker load upload bytes staged by OutboxQueue.
func WithPayloads(p PayloadStore) WorkerOption {
	return func(w *Worker) { w.payloads = p }
}

func NewWorker(tasks repository.TaskRepository, executor Executor, logger zerolog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		tasks:    tasks,
		executor: executor,
		clock:    time.Now,
		backoff:  200 * time.Millisecond,
		logger:   logger.With().Str("component", "worker").Logger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Handle executes env unless its task already completed, which happens when
// the transport redelivers after a crash between completion and ack.
func (w *Worker) Handle(ctx context.Context, env models.Envelope) error {
	log := w.logger.With().Str("task_id", env.TaskID.String()).Str("kind", string(env.Kind)).Logger()

	task, err := w.tasks.GetByID(ctx, env.TaskID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		log.Warn().Msg("no status record for envelope, dropping")
		return nil
	case err != nil:
		return fmt.Errorf("load task %s: %w", env.TaskID, err)
	case task.State == domain.Completed:
		log.Info().Msg("task already completed, skipping redelivery")
		w.dropPayload(ctx, log, env)
		return nil
	}

	env, err = w.hydrate(ctx, env)
	switch {
	case errors.Is(err, errPayloadMissing):
		log.Error().Err(err).Msg("upload bytes unavailable")
		return w.complete(ctx, env.TaskID, domain.Fail())
	case err != nil:
		return fmt.Errorf("load payload %s: %w", env.TaskID, err)
	}

	out := w.executor.Execute(ctx, env)
	log.Info().Str("result", string(out.Code)).Msg("task finished")

	if err := w.complete(ctx, env.TaskID, out); err != nil {
		return err
	}
	w.dropPayload(ctx, log, env)
	return nil
}

// hydrate puts staged upload bytes back into the envelope.
func (w *Worker) hydrate(ctx context.Context, env models.Envelope) (models.Envelope, error) {
	p, staged := stagedUpload(env)
	if !staged {
		return env, nil
	}
	if w.payloads == nil {
		return env, fmt.Errorf("%w: no payload store configured", errPayloadMissing)
	}

	data, err := w.payloads.Get(ctx, env.TaskID)
	if errors.Is(err, models.ErrNotFound) {
		return env, errPayloadMissing
	}
	if err != nil {
		return env, err
	}
	return attachFile(env, p, data)
}

func (w *Worker) dropPayload(ctx context.Context, log zerolog.Logger, env models.Envelope) {
	if w.payloads == nil || env.Kind != domain.UploadVideo {
		return
	}
	if err := w.payloads.Delete(ctx, env.TaskID); err != nil {
		log.Warn().Err(err).Msg("failed to delete staged upload")
	}
}

// HandleMessage adapts Handle to the Kafka consumer.
func (w *Worker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var env models.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil || env.TaskID == uuid.Nil {
		w.logger.Error().Err(err).Str("key", msg.Key).Msg("undecodable envelope, dropping")
		return nil
	}
	return w.Handle(ctx, env)
}

func (w *Worker) complete(ctx context.Context, id uuid.UUID, out domain.Outcome) error {
	var err error
	for attempt := 1; attempt <= completeAttempts; attempt++ {
		_, err = w.tasks.Complete(ctx, id, out, w.clock())
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Str("task_id", id.String()).Int("attempt", attempt).Msg("record result failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("complete task %s: %w", id, err)
}
