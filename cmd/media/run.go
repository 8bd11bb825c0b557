package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/lesson-media/internal/config"
	"github.com/romariotrain/lesson-media/internal/media/httpapi"
	"github.com/romariotrain/lesson-media/internal/media/queue"
	"github.com/romariotrain/lesson-media/internal/media/repository"
	"github.com/romariotrain/lesson-media/internal/media/service"
	"github.com/romariotrain/lesson-media/internal/media/tasks"
	"github.com/romariotrain/lesson-media/internal/metrics"
	pg "github.com/romariotrain/lesson-media/internal/storage/postgres"
	"github.com/romariotrain/lesson-media/internal/youtube"
)

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	m := metrics.New()

	host, err := youtube.NewClient(youtube.Config{
		APIBase:          cfg.YouTubeAPIBase,
		UploadURL:        cfg.YouTubeUploadURL,
		WatchBase:        cfg.YouTubeWatchBase,
		PlaylistPageSize: cfg.PlaylistPageSize,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("youtube client: %w", err)
	}

	var (
		mediaRepo  repository.MediaRepository
		lessonRepo repository.LessonRepository
		taskRepo   repository.TaskRepository
		q          service.Queue
	)

	switch cfg.QueueMode {
	case config.QueueKafka:
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()

		pgTasks := pg.NewTaskRepo(db)
		mediaRepo = pg.NewMediaRepo(db)
		lessonRepo = pg.NewLessonRepo(db)
		taskRepo = pgTasks
		// envelopes reach Kafka through cmd/publish
		q = queue.NewOutboxQueue(pgTasks, pg.NewOutboxRepo(db), pg.NewPayloadRepo(db),
			queue.WithMaxEnvelopeBytes(cfg.KafkaMaxMessageBytes/2),
		)

	case config.QueueMemory:
		memMedia := repository.NewMemoryRepository()
		for _, id := range cfg.MemoryLessonIDs {
			memMedia.AddLesson(id)
		}
		mediaRepo, lessonRepo = memMedia, memMedia
		taskRepo = repository.NewMemoryTaskRepository()
	}

	tk, err := tasks.New(tasks.Config{
		Host:        host,
		Media:       mediaRepo,
		Lessons:     lessonRepo,
		CategoryID:  cfg.YouTubeCategoryID,
		HostTimeout: cfg.HostTimeout,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("tasks: %w", err)
	}
	runner := tasks.NewRunner(tk, m, logger)

	if cfg.QueueMode == config.QueueMemory {
		mq, err := queue.NewMemoryQueue(queue.MemoryConfig{
			Tasks:   taskRepo,
			Worker:  queue.NewWorker(taskRepo, runner, logger),
			Workers: cfg.WorkerConcurrency,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("memory queue: %w", err)
		}
		mq.Start(ctx)
		defer mq.Close()
		q = mq
	}

	svc := service.New(service.Config{
		Queue:    q,
		Executor: runner,
		Tasks:    taskRepo,
		Media:    mediaRepo,
		Metrics:  m,
		Logger:   logger,
	})
	h := httpapi.New(svc,
		httpapi.WithMaxUploadBytes(cfg.MaxUploadBytes),
		httpapi.WithLogger(logger),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, m.Handler(), m),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("queue_mode", cfg.QueueMode).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	}
}
