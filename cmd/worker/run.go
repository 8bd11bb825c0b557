package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/romariotrain/lesson-media/internal/config"
	"github.com/romariotrain/lesson-media/internal/media/kafka"
	"github.com/romariotrain/lesson-media/internal/media/queue"
	"github.com/romariotrain/lesson-media/internal/media/tasks"
	"github.com/romariotrain/lesson-media/internal/metrics"
	pg "github.com/romariotrain/lesson-media/internal/storage/postgres"
	"github.com/romariotrain/lesson-media/internal/youtube"
)

// run consumes the task topic with WORKER_CONCURRENCY readers in one group
// and serves /metrics on HTTP_ADDR.
func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	if cfg.QueueMode != config.QueueKafka {
		return fmt.Errorf("worker requires QUEUE_MODE=%s", config.QueueKafka)
	}

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

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

	tk, err := tasks.New(tasks.Config{
		Host:        host,
		Media:       pg.NewMediaRepo(db),
		Lessons:     pg.NewLessonRepo(db),
		CategoryID:  cfg.YouTubeCategoryID,
		HostTimeout: cfg.HostTimeout,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("tasks: %w", err)
	}
	worker := queue.NewWorker(pg.NewTaskRepo(db), tasks.NewRunner(tk, m, logger), logger,
		queue.WithPayloads(pg.NewPayloadRepo(db)),
	)

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < cfg.WorkerConcurrency; i++ {
		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
			Logger:  logger.With().Int("consumer", i).Logger(),
		}, worker.HandleMessage)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		defer consumer.Close()

		g.Go(func() error {
			if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
