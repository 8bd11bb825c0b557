package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/lesson-media/internal/media/domain"
	"github.com/romariotrain/lesson-media/internal/media/models"
)

// MediaRepository stores UploadedMedia rows. Create returns models.ErrConflict
// when a row for the same task id already exists.
type MediaRepository interface {
	Create(ctx context.Context, m *models.UploadedMedia) error
	ListByLesson(ctx context.Context, lessonID int64) ([]models.UploadedMedia, error)
}

type LessonRepository interface {
	Exists(ctx context.Context, lessonID int64) (bool, error)
}

// TaskRepository is the status store. Complete is a no-op on an already
// completed task and returns the stored record unchanged.
type TaskRepository interface {
	Create(ctx context.Context, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Complete(ctx context.Context, id uuid.UUID, outcome domain.Outcome, at time.Time) (*models.Task, error)
}
