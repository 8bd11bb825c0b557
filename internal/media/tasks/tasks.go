// Package tasks holds the bodies of the background jobs: uploading a video to
// the host, resolving a playlist and recording an external video link. Every
// body returns a closed domain.Outcome and never an error; failures are
// logged and folded into a result code.
package tasks

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/lesson-media/internal/media/domain"
	"github.com/romariotrain/lesson-media/internal/media/models"
	"github.com/romariotrain/lesson-media/internal/media/repository"
	"github.com/romariotrain/lesson-media/internal/youtube"
)

// VideoHost is the subset of the host client the task bodies need.
type VideoHost interface {
	InitiateResumable(ctx context.Context, meta youtube.Metadata, token string) (string, error)
	Transfer(ctx context.Context, sessionURL string, data []byte, size int64) (string, error)
	ResolveOrCreatePlaylist(ctx context.Context, name, token string) (string, error)
	AttachToPlaylist(ctx context.Context, playlistID, videoID, token string) (bool, error)
	WatchURL(videoID string) string
}

type Config struct {
	Host        VideoHost
	Media       repository.MediaRepository
	Lessons     repository.LessonRepository
	CategoryID  string
	HostTimeout time.Duration
	Logger      zerolog.Logger
}

type Tasks struct {
	host        VideoHost
	media       repository.MediaRepository
	lessons     repository.LessonRepository
	categoryID  string
	hostTimeout time.Duration
	clock       func() time.Time
	logger      zerolog.Logger
}

func New(cfg Config) (*Tasks, error) {
	if cfg.Host == nil {
		return nil, errors.New("video host is nil")
	}
	if cfg.Media == nil || cfg.Lessons == nil {
		return nil, errors.New("repositories are required")
	}
	if cfg.CategoryID == "" {
		cfg.CategoryID = youtube.DefaultCategoryID
	}
	return &Tasks{
		host:        cfg.Host,
		media:       cfg.Media,
		lessons:     cfg.Lessons,
		categoryID:  cfg.CategoryID,
		hostTimeout: cfg.HostTimeout,
		clock:       time.Now,
		logger:      cfg.Logger.With().Str("component", "tasks").Logger(),
	}, nil
}

// UploadVideo pushes the payload to the host, records the resulting watch URL
// against the lesson and optionally files the video into a playlist.
func (t *Tasks) UploadVideo(ctx context.Context, taskID uuid.UUID, p models.UploadVideoPayload) domain.Outcome {
	log := t.logger.With().Str("task_id", taskID.String()).Str("kind", string(domain.UploadVideo)).Logger()

	if code, ok := t.checkLesson(ctx, log, p.LessonID); !ok {
		return domain.Outcome{Code: code}
	}

	data, err := base64.StdEncoding.DecodeString(p.FileBase64)
	if err != nil {
		log.Error().Err(err).Msg("decode file payload")
		return domain.Fail()
	}
	size := p.FileSize
	if size == 0 {
		size = int64(len(data))
	}

	hostCtx, cancel := t.hostContext(ctx)
	defer cancel()

	meta := youtube.Metadata{
		Title:       p.Title,
		Description: p.Description,
		CategoryID:  t.categoryID,
		MadeForKids: false,
		Privacy:     "public",
	}
	session, err := t.host.InitiateResumable(hostCtx, meta, p.AccessToken)
	if err != nil {
		logHostError(log, err, "initiate upload session")
		return domain.Fail()
	}

	videoID, err := t.host.Transfer(hostCtx, session, data, size)
	if err != nil {
		logHostError(log, err, "transfer video bytes")
		return domain.Fail()
	}

	videoURL := t.host.WatchURL(videoID)
	log = log.With().Str("video_id", videoID).Logger()

	if err := t.record(ctx, *p.LessonID, videoURL, taskID); err != nil {
		// the video already exists on the host at this point
		log.Error().Err(err).Str("video_url", videoURL).Msg("persist uploaded media")
		return domain.Fail()
	}
	log.Info().Str("video_url", videoURL).Int64("lesson_id", *p.LessonID).Msg("video uploaded")

	name := strings.TrimSpace(p.Playlist)
	if name == "" {
		return domain.Outcome{Code: domain.Success, VideoURL: videoURL}
	}

	playlistID, err := t.host.ResolveOrCreatePlaylist(hostCtx, name, p.AccessToken)
	if err != nil || playlistID == "" {
		if err != nil {
			logHostError(log, err, "resolve playlist")
		}
		log.Warn().Str("playlist", name).Msg("playlist not resolved")
		return domain.Outcome{Code: domain.PlaylistNotFound, VideoURL: videoURL}
	}

	attached, err := t.host.AttachToPlaylist(hostCtx, playlistID, videoID, p.AccessToken)
	if err != nil || !attached {
		if err != nil {
			logHostError(log, err, "attach to playlist")
		}
		return domain.Outcome{Code: domain.PlaylistAttachFailed, VideoURL: videoURL, PlaylistID: playlistID}
	}

	return domain.Outcome{Code: domain.Success, VideoURL: videoURL, PlaylistID: playlistID}
}

// EnsurePlaylist finds or creates a playlist by exact title.
func (t *Tasks) EnsurePlaylist(ctx context.Context, taskID uuid.UUID, p models.EnsurePlaylistPayload) domain.Outcome {
	log := t.logger.With().Str("task_id", taskID.String()).Str("kind", string(domain.EnsurePlaylist)).Logger()

	name := strings.TrimSpace(p.PlaylistName)
	if name == "" {
		log.Warn().Msg("empty playlist name")
		return domain.Fail()
	}

	hostCtx, cancel := t.hostContext(ctx)
	defer cancel()

	id, err := t.host.ResolveOrCreatePlaylist(hostCtx, name, p.AccessToken)
	if err != nil {
		logHostError(log, err, "resolve playlist")
		return domain.Fail()
	}
	if id == "" {
		return domain.Outcome{Code: domain.PlaylistNotFound}
	}

	log.Info().Str("playlist", name).Str("playlist_id", id).Msg("playlist ready")
	return domain.Outcome{Code: domain.Success, PlaylistID: id}
}

// LinkVideo records an already hosted video against a lesson. No host calls.
func (t *Tasks) LinkVideo(ctx context.Context, taskID uuid.UUID, p models.LinkVideoPayload) domain.Outcome {
	log := t.logger.With().Str("task_id", taskID.String()).Str("kind", string(domain.LinkVideo)).Logger()

	if p.LessonID == nil {
		return domain.Outcome{Code: domain.MissingLesson}
	}
	videoURL := strings.TrimSpace(p.VideoURL)
	if !domain.ValidVideoURL(videoURL) {
		log.Warn().Str("video_url", videoURL).Msg("malformed video url")
		return domain.Outcome{Code: domain.MalformedURL}
	}
	if code, ok := t.checkLesson(ctx, log, p.LessonID); !ok {
		return domain.Outcome{Code: code}
	}

	if err := t.record(ctx, *p.LessonID, videoURL, taskID); err != nil {
		log.Error().Err(err).Msg("persist video link")
		return domain.Fail()
	}

	log.Info().Str("video_url", videoURL).Int64("lesson_id", *p.LessonID).Msg("video linked")
	return domain.Outcome{Code: domain.Success, VideoURL: videoURL}
}

func (t *Tasks) checkLesson(ctx context.Context, log zerolog.Logger, lessonID *int64) (domain.ResultCode, bool) {
	if lessonID == nil || *lessonID <= 0 {
		log.Warn().Msg("lesson id missing")
		return domain.MissingLesson, false
	}
	ok, err := t.lessons.Exists(ctx, *lessonID)
	if err != nil {
		log.Error().Err(err).Int64("lesson_id", *lessonID).Msg("lookup lesson")
		return domain.GenericFailure, false
	}
	if !ok {
		log.Warn().Int64("lesson_id", *lessonID).Msg("lesson does not exist")
		return domain.MissingLesson, false
	}
	return "", true
}

// record stores the link. A row already written for this task id means an
// earlier delivery got this far, which counts as success.
func (t *Tasks) record(ctx context.Context, lessonID int64, videoURL string, taskID uuid.UUID) error {
	err := t.media.Create(ctx, models.NewVideoLink(lessonID, videoURL, taskID, t.clock()))
	if errors.Is(err, models.ErrConflict) {
		t.logger.Info().Str("task_id", taskID.String()).Msg("media already recorded for task")
		return nil
	}
	if err != nil {
		return fmt.Errorf("create uploaded media: %w", err)
	}
	return nil
}

func (t *Tasks) hostContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.hostTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.hostTimeout)
}

func logHostError(log zerolog.Logger, err error, msg string) {
	ev := log.Error().Err(err)
	var he *youtube.HostError
	if errors.As(err, &he) {
		ev = ev.Int("status", he.StatusCode).Str("body", he.Body)
	}
	ev.Msg(msg)
}
