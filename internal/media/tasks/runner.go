package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/lesson-media/internal/media/domain"
	"github.com/romariotrain/lesson-media/internal/media/models"
)

// Observer is notified once per executed envelope.
type Observer interface {
	Completed(kind, result string, took time.Duration)
}

type nopObserver struct{}

func (nopObserver) Completed(string, string, time.Duration) {}

// Runner decodes an envelope and executes the matching task body. It is the
// single entry point for the queue workers and for the inline fallback.
type Runner struct {
	tasks    *Tasks
	observer Observer
	clock    func() time.Time
	logger   zerolog.Logger
}

func NewRunner(t *Tasks, observer Observer, logger zerolog.Logger) *Runner {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Runner{
		tasks:    t,
		observer: observer,
		clock:    time.Now,
		logger:   logger.With().Str("component", "runner").Logger(),
	}
}

func (r *Runner) Execute(ctx context.Context, env models.Envelope) (out domain.Outcome) {
	start := r.clock()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("task_id", env.TaskID.String()).
				Str("kind", string(env.Kind)).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("task panicked")
			out = domain.Fail()
		}
		r.observer.Completed(string(env.Kind), string(out.Code), r.clock().Sub(start))
	}()

	out, err := r.dispatch(ctx, env)
	if err != nil {
		r.logger.Error().Err(err).Str("task_id", env.TaskID.String()).Msg("bad envelope")
		return domain.Fail()
	}
	return out
}

func (r *Runner) dispatch(ctx context.Context, env models.Envelope) (domain.Outcome, error) {
	switch env.Kind {
	case domain.UploadVideo:
		var p models.UploadVideoPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return domain.Outcome{}, fmt.Errorf("decode upload payload: %w", err)
		}
		return r.tasks.UploadVideo(ctx, env.TaskID, p), nil
	case domain.EnsurePlaylist:
		var p models.EnsurePlaylistPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return domain.Outcome{}, fmt.Errorf("decode playlist payload: %w", err)
		}
		return r.tasks.EnsurePlaylist(ctx, env.TaskID, p), nil
	case domain.LinkVideo:
		var p models.LinkVideoPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return domain.Outcome{}, fmt.Errorf("decode link payload: %w", err)
		}
		return r.tasks.LinkVideo(ctx, env.TaskID, p), nil
	default:
		return domain.Outcome{}, fmt.Errorf("%w: %q", domain.ErrUnknownKind, env.Kind)
	}
}
