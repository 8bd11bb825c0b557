package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/lesson-media/internal/media/models"
)

// PayloadRepo holds upload bytes between enqueue and task completion.
type PayloadRepo struct {
	db *sqlx.DB
}

func NewPayloadRepo(db *sqlx.DB) *PayloadRepo {
	return &PayloadRepo{db: db}
}

func (r *PayloadRepo) PutTx(ctx context.Context, tx *sqlx.Tx, taskID uuid.UUID, data []byte) error {
	if taskID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	const q = `
		INSERT INTO upload_payloads (task_id, data)
		VALUES ($1, $2)
	`
	if data == nil {
		data = []byte{}
	}
	if _, err := tx.ExecContext(ctx, q, taskID, data); err != nil {
		if pgCode(err) == pgUniqueViolation {
			return models.ErrConflict
		}
		return fmt.Errorf("payload put: %w", err)
	}
	return nil
}

func (r *PayloadRepo) Get(ctx context.Context, taskID uuid.UUID) ([]byte, error) {
	const q = `SELECT data FROM upload_payloads WHERE task_id = $1`

	var data []byte
	if err := r.db.GetContext(ctx, &data, q, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("payload get: %w", err)
	}
	return data, nil
}

// Delete is a no-op for a task with no staged bytes.
func (r *PayloadRepo) Delete(ctx context.Context, taskID uuid.UUID) error {
	const q = `DELETE FROM upload_payloads WHERE task_id = $1`

	if _, err := r.db.ExecContext(ctx, q, taskID); err != nil {
		return fmt.Errorf("payload delete: %w", err)
	}
	return nil
}
