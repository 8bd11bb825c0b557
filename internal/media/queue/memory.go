package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/romariotrain/lesson-media/internal/media/domain"
	"github.com/romariotrain/lesson-media/internal/media/models"
	"github.com/romariotrain/lesson-media/internal/media/repository"
)

type MemoryConfig struct {
	Tasks   repository.TaskRepository
	Worker  *Worker
	Workers int
	Buffer  int
	Logger  zerolog.Logger
}

// MemoryQueue dispatches envelopes to a fixed pool of goroutines. Nothing
// survives a restart; it backs QUEUE_MODE=memory and the tests.
type MemoryQueue struct {
	tasks   repository.TaskRepository
	worker  *Worker
	workers int
	jobs    chan models.Envelope

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	logger zerolog.Logger
}

func NewMemoryQueue(cfg MemoryConfig) (*MemoryQueue, error) {
	if cfg.Tasks == nil || cfg.Worker == nil {
		return nil, errors.New("task store and worker are required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	return &MemoryQueue{
		tasks:   cfg.Tasks,
		worker:  cfg.Worker,
		workers: cfg.Workers,
		jobs:    make(chan models.Envelope, cfg.Buffer),
		logger:  cfg.Logger.With().Str("component", "memory_queue").Logger(),
	}, nil
}

// Start launches the workers. They exit when Close drains the buffer or ctx
// is cancelled.
func (q *MemoryQueue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func(id int) {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case env, ok := <-q.jobs:
					if !ok {
						return
					}
					if err := q.worker.Handle(ctx, env); err != nil {
						q.logger.Error().Err(err).Int("worker", id).Msg("task handling failed")
					}
				}
			}
		}(i)
	}
	q.logger.Info().Int("workers", q.workers).Msg("memory queue started")
}

func (q *MemoryQueue) Enqueue(ctx context.Context, env models.Envelope) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return fmt.Errorf("%w: queue closed", models.ErrQueueUnavailable)
	}
	if len(q.jobs) == cap(q.jobs) {
		return fmt.Errorf("%w: buffer full", models.ErrQueueUnavailable)
	}

	if err := q.tasks.Create(ctx, &models.Task{
		ID:        env.TaskID,
		Kind:      env.Kind,
		State:     domain.Pending,
		CreatedAt: env.EnqueuedAt,
	}); err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	select {
	case q.jobs <- env:
		return nil
	default:
		// lost a race for the last slot; the caller runs it inline
		return fmt.Errorf("%w: buffer full", models.ErrQueueUnavailable)
	}
}

// Close stops accepting work and waits for buffered envelopes to finish.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}
