package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

// TaskEnqueued is written to the outbox in the same transaction as the pending
// task row. Its JSON form is the queue Envelope.
type TaskEnqueued struct {
	eventID  uuid.UUID
	envelope Envelope
}

func NewTaskEnqueued(env Envelope) *TaskEnqueued {
	return &TaskEnqueued{
		eventID:  uuid.New(),
		envelope: env,
	}
}

func (e *TaskEnqueued) EventID() uuid.UUID     { return e.eventID }
func (e *TaskEnqueued) EventType() string      { return "TaskEnqueued." + string(e.envelope.Kind) }
func (e *TaskEnqueued) AggregateID() uuid.UUID { return e.envelope.TaskID }
func (e *TaskEnqueued) OccurredAt() time.Time  { return e.envelope.EnqueuedAt }

func (e *TaskEnqueued) Envelope() Envelope { return e.envelope }

func (e *TaskEnqueued) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.envelope)
}
