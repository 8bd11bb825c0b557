package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/lesson-media/internal/media/domain"
)

// Task is the queue-owned record polled by clients.
type Task struct {
	ID          uuid.UUID
	Kind        domain.Kind
	State       domain.State
	Result      *domain.Outcome
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Envelope is the unit carried by the queue transport.
type Envelope struct {
	TaskID     uuid.UUID       `json:"task_id"`
	Kind       domain.Kind     `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

type UploadVideoPayload struct {
	FileBase64  string `json:"file_base64,omitempty"`
	FileSize    int64  `json:"file_size"`
	Title       string `json:"title"`
	Description string `json:"description"`
	AccessToken string `json:"access_token"`
	LessonID    *int64 `json:"lesson_id"`
	Playlist    string `json:"playlist,omitempty"`

	// FileStaged means the bytes were moved out of the envelope into the
	// payload store, keyed by task id.
	FileStaged bool `json:"file_staged,omitempty"`
}

type EnsurePlaylistPayload struct {
	PlaylistName string `json:"playlist_name"`
	AccessToken  string `json:"access_token"`
}

type LinkVideoPayload struct {
	LessonID *int64 `json:"lesson_id"`
	VideoURL string `json:"video_url"`
}
