package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/lesson-media/internal/media/domain"
	"github.com/romariotrain/lesson-media/internal/media/models"
)

// PayloadWriter stages upload bytes inside the enqueue transaction.
type PayloadWriter interface {
	PutTx(ctx context.Context, tx *sqlx.Tx, taskID uuid.UUID, data []byte) error
}

// PayloadStore is the worker side of the staged upload bytes.
type PayloadStore interface {
	Get(ctx context.Context, taskID uuid.UUID) ([]byte, error)
	Delete(ctx context.Context, taskID uuid.UUID) error
}

var errPayloadMissing = errors.New("staged upload payload missing")

// detachFile moves the file bytes of an upload envelope out of its payload.
// ok is false for other kinds and for envelopes that are already staged.
func detachFile(env models.Envelope) (out models.Envelope, data []byte, ok bool, err error) {
	if env.Kind != domain.UploadVideo {
		return env, nil, false, nil
	}
	var p models.UploadVideoPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return env, nil, false, fmt.Errorf("decode upload payload: %w", err)
	}
	if p.FileStaged {
		return env, nil, false, nil
	}

	data, err = base64.StdEncoding.DecodeString(p.FileBase64)
	if err != nil {
		return env, nil, false, fmt.Errorf("decode file: %w", err)
	}
	p.FileBase64 = ""
	p.FileStaged = true

	raw, err := json.Marshal(p)
	if err != nil {
		return env, nil, false, fmt.Errorf("encode upload payload: %w", err)
	}
	env.Payload = raw
	return env, data, true, nil
}

// stagedUpload reports whether env is an upload whose bytes live in the
// payload store. Undecodable payloads are left for the runner to reject.
func stagedUpload(env models.Envelope) (models.UploadVideoPayload, bool) {
	var p models.UploadVideoPayload
	if env.Kind != domain.UploadVideo {
		return p, false
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return p, false
	}
	return p, p.FileStaged
}

func attachFile(env models.Envelope, p models.UploadVideoPayload, data []byte) (models.Envelope, error) {
	p.FileBase64 = base64.StdEncoding.EncodeToString(data)
	p.FileStaged = false

	raw, err := json.Marshal(p)
	if err != nil {
		return env, fmt.Errorf("encode upload payload: %w", err)
	}
	env.Payload = raw
	return env, nil
}
