package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/lesson-media/internal/media/domain"
	"github.com/romariotrain/lesson-media/internal/media/models"
)

type UploadResponse struct {
	Message  string            `json:"message"`
	Filename string            `json:"filename"`
	TaskID   uuid.UUID         `json:"task_id"`
	Result   domain.ResultCode `json:"result,omitempty"`
	VideoURL string            `json:"video_url,omitempty"`
}

type LinkResponse struct {
	Message  string            `json:"message"`
	VideoURL string            `json:"video_url"`
	TaskID   uuid.UUID         `json:"task_id"`
	Result   domain.ResultCode `json:"result,omitempty"`
}

type PlaylistResponse struct {
	TaskID     uuid.UUID         `json:"task_id"`
	Result     domain.ResultCode `json:"result,omitempty"`
	PlaylistID string            `json:"playlist_id,omitempty"`
}

// TaskStatusResponse is {"status":"pending"} until the worker finishes, then
// carries the terminal result code and whatever the task produced.
type TaskStatusResponse struct {
	TaskID      uuid.UUID         `json:"task_id"`
	Kind        domain.Kind       `json:"kind"`
	Status      domain.State      `json:"status"`
	Result      domain.ResultCode `json:"result,omitempty"`
	VideoURL    string            `json:"video_url,omitempty"`
	PlaylistID  string            `json:"playlist_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

type MediaResponse struct {
	ID        int64      `json:"id"`
	LessonID  int64      `json:"lesson_id"`
	VideoURL  *string    `json:"video_url"`
	HasBlob   bool       `json:"has_blob"`
	TaskID    *uuid.UUID `json:"task_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func toTaskStatusResponse(t *models.Task) TaskStatusResponse {
	resp := TaskStatusResponse{
		TaskID:      t.ID,
		Kind:        t.Kind,
		Status:      t.State,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
	}
	if t.State == domain.Completed && t.Result != nil {
		resp.Result = t.Result.Code
		resp.VideoURL = t.Result.VideoURL
		resp.PlaylistID = t.Result.PlaylistID
	}
	return resp
}

func toMediaResponse(m models.UploadedMedia) MediaResponse {
	resp := MediaResponse{
		ID:        m.ID,
		LessonID:  m.LessonID,
		VideoURL:  m.VideoURL,
		HasBlob:   len(m.FileBlob) > 0,
		CreatedAt: m.CreatedAt,
	}
	if m.TaskID.Valid {
		id := m.TaskID.UUID
		resp.TaskID = &id
	}
	return resp
}
