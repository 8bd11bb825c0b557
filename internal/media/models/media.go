package models

import (
	"time"

	"github.com/google/uuid"
)

// Lesson is read-only for the upload pipeline; only its id is attached to media.
type Lesson struct {
	ID          int64  `db:"lesson_id"`
	CourseID    int64  `db:"course_id"`
	Name        string `db:"lesson_name"`
	Description string `db:"lesson_description"`
}

// UploadedMedia links a lesson to either an external video URL or a binary blob.
// Rows are only ever inserted.
type UploadedMedia struct {
	ID        int64         `db:"id"`
	LessonID  int64         `db:"lesson_id"`
	VideoURL  *string       `db:"video_url"`
	FileBlob  []byte        `db:"file_blob"`
	TaskID    uuid.NullUUID `db:"task_id"`
	CreatedAt time.Time     `db:"created_at"`
}

func NewVideoLink(lessonID int64, videoURL string, taskID uuid.UUID, now time.Time) *UploadedMedia {
	m := &UploadedMedia{
		LessonID:  lessonID,
		VideoURL:  &videoURL,
		CreatedAt: now,
	}
	if taskID != uuid.Nil {
		m.TaskID = uuid.NullUUID{UUID: taskID, Valid: true}
	}
	return m
}
