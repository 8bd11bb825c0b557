package tasks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/romariotrain/lesson-media/internal/youtube"
)

type HostMock struct {
	mock.Mock
}

func (m *HostMock) InitiateResumable(ctx context.Context, meta youtube.Metadata, token string) (string, error) {
	args := m.Called(ctx, meta, token)
	return args.String(0), args.Error(1)
}

func (m *HostMock) Transfer(ctx context.Context, sessionURL string, data []byte, size int64) (string, error) {
	args := m.Called(ctx, sessionURL, data, size)
	return args.String(0), args.Error(1)
}

func (m *HostMock) ResolveOrCreatePlaylist(ctx context.Context, name, token string) (string, error) {
	args := m.Called(ctx, name, token)
	return args.String(0), args.Error(1)
}

func (m *HostMock) AttachToPlaylist(ctx context.Context, playlistID, videoID, token string) (bool, error) {
	args := m.Called(ctx, playlistID, videoID, token)
	return args.Bool(0), args.Error(1)
}

func (m *HostMock) WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

type LessonsMock struct {
	mock.Mock
}

func (m *LessonsMock) Exists(ctx context.Context, lessonID int64) (bool, error) {
	args := m.Called(ctx, lessonID)
	return args.Bool(0), args.Error(1)
}
