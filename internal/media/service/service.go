package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/lesson-media/internal/media/domain"
	"github.com/romariotrain/lesson-media/internal/media/models"
	"github.com/romariotrain/lesson-media/internal/media/repository"
)

type Queue interface {
	Enqueue(ctx context.Context, env models.Envelope) error
}

// Executor runs a task body in the calling goroutine. The same executor
// backs the queue workers, so the inline path cannot drift from them.
type Executor interface {
	Execute(ctx context.Context, env models.Envelope) domain.Outcome
}

type Metrics interface {
	Enqueued(kind string)
	Fallback(kind string)
}

type nopMetrics struct{}

func (nopMetrics) Enqueued(string) {}
func (nopMetrics) Fallback(string) {}

type Config struct {
	Queue    Queue
	Executor Executor
	Tasks    repository.TaskRepository
	Media    repository.MediaRepository
	Metrics  Metrics
	Logger   zerolog.Logger
}

type Service struct {
	queue    Queue
	executor Executor
	tasks    repository.TaskRepository
	media    repository.MediaRepository
	metrics  Metrics
	clock    func() time.Time
	idGen    func() uuid.UUID
	logger   zerolog.Logger
}

func New(cfg Config) *Service {
	m := cfg.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	return &Service{
		queue:    cfg.Queue,
		executor: cfg.Executor,
		tasks:    cfg.Tasks,
		media:    cfg.Media,
		metrics:  m,
		clock:    time.Now,
		idGen:    uuid.New,
		logger:   cfg.Logger.With().Str("component", "media_service").Logger(),
	}
}

// Submission is what a caller learns at submit time. Inline is set only when
// the queue refused the task and it was executed during the request.
type Submission struct {
	TaskID uuid.UUID
	Inline *domain.Outcome
}

type UploadInput struct {
	File        []byte
	Filename    string
	Title       string
	Description string
	AccessToken string
	LessonID    *int64
	Playlist    string
}

func (s *Service) SubmitUpload(ctx context.Context, in UploadInput) (*Submission, error) {
	if len(in.File) == 0 {
		return nil, fmt.Errorf("%w: file is empty", models.ErrInvalidArgument)
	}
	if in.LessonID == nil {
		return nil, fmt.Errorf("%w: lesson_id is required", models.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.AccessToken) == "" {
		return nil, fmt.Errorf("%w: access token is required", models.ErrInvalidArgument)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = in.Filename
	}

	return s.submit(ctx, domain.UploadVideo, models.UploadVideoPayload{
		FileBase64:  base64.StdEncoding.EncodeToString(in.File),
		FileSize:    int64(len(in.File)),
		Title:       title,
		Description: in.Description,
		AccessToken: in.AccessToken,
		LessonID:    in.LessonID,
		Playlist:    strings.TrimSpace(in.Playlist),
	})
}

func (s *Service) SubmitLink(ctx context.Context, lessonID *int64, videoURL string) (*Submission, error) {
	if lessonID == nil {
		return nil, fmt.Errorf("%w: lesson_id is required", models.ErrInvalidArgument)
	}
	videoURL = strings.TrimSpace(videoURL)
	if !domain.ValidVideoURL(videoURL) {
		return nil, fmt.Errorf("%w: malformed video url", models.ErrInvalidArgument)
	}
	return s.submit(ctx, domain.LinkVideo, models.LinkVideoPayload{
		LessonID: lessonID,
		VideoURL: videoURL,
	})
}

func (s *Service) SubmitPlaylist(ctx context.Context, name, accessToken string) (*Submission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: playlist_name is required", models.ErrInvalidArgument)
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("%w: access token is required", models.ErrInvalidArgument)
	}
	return s.submit(ctx, domain.EnsurePlaylist, models.EnsurePlaylistPayload{
		PlaylistName: name,
		AccessToken:  accessToken,
	})
}

// TaskStatus passes through models.ErrNotFound for unknown ids.
func (s *Service) TaskStatus(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	return s.tasks.GetByID(ctx, id)
}

func (s *Service) LessonMedia(ctx context.Context, lessonID int64) ([]models.UploadedMedia, error) {
	if lessonID <= 0 {
		return nil, models.ErrInvalidArgument
	}
	return s.media.ListByLesson(ctx, lessonID)
}

func (s *Service) submit(ctx context.Context, kind domain.Kind, payload any) (*Submission, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	env := models.Envelope{
		TaskID:     s.idGen(),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: s.clock().UTC(),
	}
	log := s.logger.With().Str("task_id", env.TaskID.String()).Str("kind", string(kind)).Logger()

	err = s.queue.Enqueue(ctx, env)
	if err == nil {
		s.metrics.Enqueued(string(kind))
		log.Info().Msg("task enqueued")
		return &Submission{TaskID: env.TaskID}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, models.ErrConflict) {
		return nil, err
	}

	log.Warn().Err(err).Msg("enqueue failed, running task inline")
	s.metrics.Fallback(string(kind))

	out := s.executor.Execute(ctx, env)

	// the queue may have stored the pending row before failing; close it out
	if _, cerr := s.tasks.Complete(ctx, env.TaskID, out, s.clock()); cerr != nil && !errors.Is(cerr, models.ErrNotFound) {
		log.Warn().Err(cerr).Msg("record inline result")
	}

	return &Submission{TaskID: env.TaskID, Inline: &out}, nil
}
