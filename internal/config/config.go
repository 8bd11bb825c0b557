// Package config reads process configuration from the environment, loading a
// local .env file first when one exists.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	QueueKafka  = "kafka"
	QueueMemory = "memory"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string

	QueueMode            string
	KafkaBrokers         []string
	KafkaTopic           string
	KafkaGroupID         string
	KafkaMaxMessageBytes int
	OutboxInterval       time.Duration
	OutboxBatchSize      int
	WorkerConcurrency    int
	MemoryLessonIDs      []int64

	YouTubeAPIBase    string
	YouTubeUploadURL  string
	YouTubeWatchBase  string
	YouTubeCategoryID string
	PlaylistPageSize  int64
	HostTimeout       time.Duration
	MaxUploadBytes    int64

	LogLevel  string
	LogPretty bool
}

// Load reads .env (if present) and the environment. Unparseable values are
// reported together.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (Config, error) {
	r := reader{getenv: getenv}

	cfg := Config{
		HTTPAddr:    r.str("HTTP_ADDR", ":8081"),
		DatabaseURL: r.str("DATABASE_URL", ""),

		QueueMode:            strings.ToLower(r.str("QUEUE_MODE", QueueKafka)),
		KafkaBrokers:         r.list("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:           r.str("KAFKA_TASK_TOPIC", "media.tasks"),
		KafkaGroupID:         r.str("KAFKA_GROUP_ID", "media-worker"),
		KafkaMaxMessageBytes: r.num("KAFKA_MAX_MESSAGE_BYTES", 1<<20),
		OutboxInterval:       r.dur("OUTBOX_INTERVAL", time.Second),
		OutboxBatchSize:      r.num("OUTBOX_BATCH_SIZE", 100),
		WorkerConcurrency:    r.num("WORKER_CONCURRENCY", 4),
		MemoryLessonIDs:      r.ids("MEMORY_LESSON_IDS"),

		YouTubeAPIBase:    r.str("YOUTUBE_API_BASE", "https://youtube.googleapis.com/"),
		YouTubeUploadURL:  r.str("YOUTUBE_UPLOAD_BASE", "https://www.googleapis.com/upload/youtube/v3/videos"),
		YouTubeWatchBase:  r.str("YOUTUBE_WATCH_BASE", "https://www.youtube.com/watch?v="),
		YouTubeCategoryID: r.str("YOUTUBE_CATEGORY_ID", "27"),
		PlaylistPageSize:  int64(r.num("YOUTUBE_PLAYLIST_PAGE_SIZE", 50)),
		HostTimeout:       r.dur("HOST_TIMEOUT", 10*time.Minute),
		MaxUploadBytes:    int64(r.num("MAX_UPLOAD_BYTES", 256<<20)),

		LogLevel:  r.str("LOG_LEVEL", "info"),
		LogPretty: r.flag("LOG_PRETTY", false),
	}

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	switch c.QueueMode {
	case QueueKafka:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is empty"))
		}
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is empty"))
		}
	case QueueMemory:
	default:
		errs = append(errs, fmt.Errorf("QUEUE_MODE must be %q or %q, got %q", QueueKafka, QueueMemory, c.QueueMode))
	}
	if c.KafkaMaxMessageBytes <= 0 {
		errs = append(errs, errors.New("KAFKA_MAX_MESSAGE_BYTES must be positive"))
	}
	if c.OutboxInterval <= 0 {
		errs = append(errs, errors.New("OUTBOX_INTERVAL must be positive"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.WorkerConcurrency <= 0 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be positive"))
	}
	if c.PlaylistPageSize <= 0 || c.PlaylistPageSize > 50 {
		errs = append(errs, errors.New("YOUTUBE_PLAYLIST_PAGE_SIZE must be within 1..50"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) list(key, def string) []string {
	var out []string
	for _, part := range strings.Split(r.str(key, def), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (r *reader) ids(key string) []int64 {
	var out []int64
	for _, part := range r.list(key, "") {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		out = append(out, id)
	}
	return out
}

func (r *reader) num(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *reader) dur(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (r *reader) flag(key string, def bool) bool {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}
