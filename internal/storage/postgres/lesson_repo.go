package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const lessonExistsQuery = `SELECT EXISTS (SELECT 1 FROM lessons WHERE lesson_id = $1)`

// LessonRepo reads the lessons table owned by the CRUD layer.
type LessonRepo struct {
	db *sqlx.DB
}

func NewLessonRepo(db *sqlx.DB) *LessonRepo {
	return &LessonRepo{db: db}
}

func (r *LessonRepo) Exists(ctx context.Context, lessonID int64) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, lessonExistsQuery, lessonID); err != nil {
		return false, fmt.Errorf("lesson exists: %w", err)
	}
	return exists, nil
}
