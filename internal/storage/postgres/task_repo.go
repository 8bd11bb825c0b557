package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/lesson-media/internal/media/domain"
	"github.com/romariotrain/lesson-media/internal/media/models"
)

type TaskRepo struct {
	db *sqlx.DB
}

type taskRow struct {
	ID          uuid.UUID    `db:"id"`
	Kind        string       `db:"kind"`
	State       string       `db:"state"`
	Result      []byte       `db:"result"`
	CreatedAt   time.Time    `db:"created_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
}

func NewTaskRepo(db *sqlx.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

func (r *TaskRepo) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

func (r *TaskRepo) Create(ctx context.Context, t *models.Task) error {
	return r.create(ctx, r.db, t)
}

func (r *TaskRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, t *models.Task) error {
	return r.create(ctx, tx, t)
}

func (r *TaskRepo) create(ctx context.Context, ex sqlx.ExecerContext, t *models.Task) error {
	if t == nil || t.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	const q = `
		INSERT INTO tasks (id, kind, state, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := ex.ExecContext(ctx, q, t.ID, string(t.Kind), string(t.State), t.CreatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return models.ErrConflict
		}
		return fmt.Errorf("task create: %w", err)
	}
	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	const q = `
		SELECT id, kind, state, result, created_at, completed_at
		FROM tasks
		WHERE id = $1
	`
	var row taskRow
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("task get by id: %w", err)
	}
	return row.toModel()
}

// Complete stores the outcome only while the task is still pending, so a
// redelivered task cannot overwrite the first terminal result.
func (r *TaskRepo) Complete(ctx context.Context, id uuid.UUID, outcome domain.Outcome, at time.Time) (*models.Task, error) {
	result, err := json.Marshal(outcome)
	if err != nil {
		return nil, fmt.Errorf("marshal outcome: %w", err)
	}

	const q = `
		UPDATE tasks
		SET state = $2, result = $3, completed_at = $4
		WHERE id = $1 AND state = $5
		RETURNING id, kind, state, result, created_at, completed_at
	`
	var row taskRow
	err = r.db.GetContext(ctx, &row, q, id, string(domain.Completed), result, at, string(domain.Pending))
	if errors.Is(err, sql.ErrNoRows) {
		return r.GetByID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("task complete: %w", err)
	}
	return row.toModel()
}

func (row taskRow) toModel() (*models.Task, error) {
	kind, err := domain.ParseKind(row.Kind)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", row.ID, err)
	}
	state := domain.State(row.State)
	if !state.Valid() {
		return nil, fmt.Errorf("task %s: unknown state %q", row.ID, row.State)
	}

	t := &models.Task{
		ID:        row.ID,
		Kind:      kind,
		State:     state,
		CreatedAt: row.CreatedAt,
	}
	if row.CompletedAt.Valid {
		at := row.CompletedAt.Time
		t.CompletedAt = &at
	}
	if len(row.Result) > 0 {
		var o domain.Outcome
		if err := json.Unmarshal(row.Result, &o); err != nil {
			return nil, fmt.Errorf("decode task result: %w", err)
		}
		t.Result = &o
	}
	return t, nil
}
