package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/romariotrain/lesson-media/internal/media/domain"
	"github.com/romariotrain/lesson-media/internal/media/models"
)

type QueueMock struct {
	mock.Mock
}

func (m *QueueMock) Enqueue(ctx context.Context, env models.Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

type ExecutorMock struct {
	mock.Mock
}

func (m *ExecutorMock) Execute(ctx context.Context, env models.Envelope) domain.Outcome {
	args := m.Called(ctx, env)
	return args.Get(0).(domain.Outcome)
}

type MetricsMock struct {
	mock.Mock
}

func (m *MetricsMock) Enqueued(kind string) { m.Called(kind) }
func (m *MetricsMock) Fallback(kind string) { m.Called(kind) }
