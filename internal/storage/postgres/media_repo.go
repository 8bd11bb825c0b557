package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/lesson-media/internal/media/models"
)

type MediaRepo struct {
	db *sqlx.DB
}

func NewMediaRepo(db *sqlx.DB) *MediaRepo {
	return &MediaRepo{db: db}
}

// Create inserts an uploaded_media row. A second row for the same task id is
// dropped and reported as models.ErrConflict.
func (r *MediaRepo) Create(ctx context.Context, m *models.UploadedMedia) error {
	if m == nil || m.LessonID == 0 || (m.VideoURL == nil) == (m.FileBlob == nil) {
		return models.ErrInvalidArgument
	}

	const q = `
		INSERT INTO uploaded_media (lesson_id, video_url, file_blob, task_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (task_id) DO NOTHING
		RETURNING id
	`
	err := r.db.GetContext(ctx, &m.ID, q,
		m.LessonID, m.VideoURL, m.FileBlob, m.TaskID, m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrConflict
		}
		if pgCode(err) == pgForeignKeyViolation {
			return models.ErrNotFound
		}
		return fmt.Errorf("uploaded media create: %w", err)
	}
	return nil
}

func (r *MediaRepo) ListByLesson(ctx context.Context, lessonID int64) ([]models.UploadedMedia, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, lessonExistsQuery, lessonID); err != nil {
		return nil, fmt.Errorf("uploaded media lesson lookup: %w", err)
	}
	if !exists {
		return nil, models.ErrNotFound
	}

	const q = `
		SELECT id, lesson_id, video_url, file_blob, task_id, created_at
		FROM uploaded_media
		WHERE lesson_id = $1
		ORDER BY id ASC
	`
	items := make([]models.UploadedMedia, 0)
	if err := r.db.SelectContext(ctx, &items, q, lessonID); err != nil {
		return nil, fmt.Errorf("uploaded media list: %w", err)
	}
	return items, nil
}
