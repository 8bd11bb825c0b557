package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/lesson-media/internal/media/domain"
	"github.com/romariotrain/lesson-media/internal/media/models"
)

// MemoryRepository keeps lessons and uploaded media in process. It backs the
// memory queue mode and the tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	lessons map[int64]struct{}
	media   []models.UploadedMedia
	byTask  map[uuid.UUID]struct{}
	nextID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		lessons: make(map[int64]struct{}),
		byTask:  make(map[uuid.UUID]struct{}),
	}
}

func (r *MemoryRepository) AddLesson(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lessons[id] = struct{}{}
}

func (r *MemoryRepository) Exists(ctx context.Context, lessonID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.lessons[lessonID]
	return ok, nil
}

func (r *MemoryRepository) Create(ctx context.Context, m *models.UploadedMedia) error {
	if m == nil || m.LessonID == 0 {
		return models.ErrInvalidArgument
	}
	if (m.VideoURL == nil) == (m.FileBlob == nil) {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lessons[m.LessonID]; !ok {
		return models.ErrNotFound
	}
	if m.TaskID.Valid {
		if _, dup := r.byTask[m.TaskID.UUID]; dup {
			return models.ErrConflict
		}
		r.byTask[m.TaskID.UUID] = struct{}{}
	}

	r.nextID++
	m.ID = r.nextID
	r.media = append(r.media, copyMedia(*m))
	return nil
}

func (r *MemoryRepository) ListByLesson(ctx context.Context, lessonID int64) ([]models.UploadedMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.lessons[lessonID]; !ok {
		return nil, models.ErrNotFound
	}
	out := make([]models.UploadedMedia, 0)
	for _, m := range r.media {
		if m.LessonID == lessonID {
			out = append(out, copyMedia(m))
		}
	}
	return out, nil
}

// Count returns the number of stored media rows across all lessons.
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.media)
}

func copyMedia(m models.UploadedMedia) models.UploadedMedia {
	if m.VideoURL != nil {
		u := *m.VideoURL
		m.VideoURL = &u
	}
	if m.FileBlob != nil {
		m.FileBlob = append([]byte(nil), m.FileBlob...)
	}
	return m
}

type MemoryTaskRepository struct {
	mu   sync.RWMutex
	data map[uuid.UUID]*models.Task
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{
		data: make(map[uuid.UUID]*models.Task),
	}
}

func (r *MemoryTaskRepository) Create(ctx context.Context, t *models.Task) error {
	if t == nil || t.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[t.ID]; exists {
		return models.ErrConflict
	}
	r.data[t.ID] = copyTask(t)
	return nil
}

func (r *MemoryTaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.data[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyTask(t), nil
}

func (r *MemoryTaskRepository) Complete(ctx context.Context, id uuid.UUID, outcome domain.Outcome, at time.Time) (*models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.data[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if t.State == domain.Completed {
		return copyTask(t), nil
	}
	if err := domain.ValidateTransition(t.State, domain.Completed); err != nil {
		return nil, err
	}

	o := outcome
	t.State = domain.Completed
	t.Result = &o
	t.CompletedAt = &at
	return copyTask(t), nil
}

func copyTask(t *models.Task) *models.Task {
	cp := *t
	if t.Result != nil {
		r := *t.Result
		cp.Result = &r
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}
