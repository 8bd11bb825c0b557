package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/lesson-media/internal/media/domain"
	"github.com/romariotrain/lesson-media/internal/media/queue"
	"github.com/romariotrain/lesson-media/internal/media/repository"
	"github.com/romariotrain/lesson-media/internal/media/service"
	"github.com/romariotrain/lesson-media/internal/media/tasks"
	"github.com/romariotrain/lesson-media/internal/youtube"
)

// stubHost accepts every upload. ResolveOrCreatePlaylist blocks on release
// when it is set, which keeps a task pending for as long as a test needs.
type stubHost struct {
	release chan struct{}
}

func (h *stubHost) InitiateResumable(context.Context, youtube.Metadata, string) (string, error) {
	return "https://upload.example/session/1", nil
}

func (h *stubHost) Transfer(context.Context, string, []byte, int64) (string, error) {
	return "vid123", nil
}

func (h *stubHost) ResolveOrCreatePlaylist(ctx context.Context, name, _ string) (string, error) {
	if h.release != nil {
		select {
		case <-h.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "PL-" + name, nil
}

func (h *stubHost) AttachToPlaylist(context.Context, string, string, string) (bool, error) {
	return true, nil
}

func (h *stubHost) WatchURL(id string) string { return youtube.DefaultWatchBase + id }

type testServer struct {
	router http.Handler
	queue  *queue.MemoryQueue
	media  *repository.MemoryRepository
}

func newTestServer(t *testing.T, host *stubHost) *testServer {
	t.Helper()
	log := zerolog.Nop()

	media := repository.NewMemoryRepository()
	media.AddLesson(42)
	taskRepo := repository.NewMemoryTaskRepository()

	tk, err := tasks.New(tasks.Config{Host: host, Media: media, Lessons: media, Logger: log})
	require.NoError(t, err)
	runner := tasks.NewRunner(tk, nil, log)

	q, err := queue.NewMemoryQueue(queue.MemoryConfig{
		Tasks:   taskRepo,
		Worker:  queue.NewWorker(taskRepo, runner, log),
		Workers: 2,
		Logger:  log,
	})
	require.NoError(t, err)
	q.Start(context.Background())
	t.Cleanup(q.Close)

	svc := service.New(service.Config{
		Queue:    q,
		Executor: runner,
		Tasks:    taskRepo,
		Media:    media,
		Logger:   log,
	})
	return &testServer{
		router: NewRouter(New(svc), nil, nil),
		queue:  q,
		media:  media,
	}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, path string, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", "lesson.mp4")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestStoreLink_RoundTrip(t *testing.T) {
	s := newTestServer(t, &stubHost{})

	rec := s.do(t, multipartRequest(t, "/upload/link/", map[string]string{
		"lesson_id": "42",
		"video_url": "https://www.youtube.com/watch?v=abc123",
	}, nil))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	link := decode[LinkResponse](t, rec)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", link.VideoURL)

	s.queue.Close()

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/lessons/42/media/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]MediaResponse](t, rec)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].VideoURL)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", *rows[0].VideoURL)
	assert.Equal(t, link.TaskID, *rows[0].TaskID)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/upload/status/"+link.TaskID.String()+"/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[TaskStatusResponse](t, rec)
	assert.Equal(t, domain.Completed, status.Status)
	assert.Equal(t, domain.Success, status.Result)
}

func TestStoreLink_MalformedURLCreatesNothing(t *testing.T) {
	s := newTestServer(t, &stubHost{})

	rec := s.do(t, multipartRequest(t, "/upload/link/", map[string]string{
		"lesson_id": "42",
		"video_url": "not-a-url",
	}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, multipartRequest(t, "/upload/link/", map[string]string{
		"video_url": "https://youtu.be/abc",
	}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.queue.Close()
	assert.Zero(t, s.media.Count())
}

func TestUploadVideo_RequestValidation(t *testing.T) {
	s := newTestServer(t, &stubHost{})

	t.Run("method", func(t *testing.T) {
		rec := s.do(t, httptest.NewRequest(http.MethodGet, "/upload/video/", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload/video/", strings.NewReader(`{"title":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := s.do(t, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "multipart/form-data")
	})

	t.Run("missing file", func(t *testing.T) {
		rec := s.do(t, multipartRequest(t, "/upload/video/", map[string]string{
			"lesson_id":   "42",
			"accessToken": "tok",
		}, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "no file provided")
	})

	t.Run("missing lesson", func(t *testing.T) {
		rec := s.do(t, multipartRequest(t, "/upload/video/", map[string]string{
			"accessToken": "tok",
		}, []byte("bytes")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUploadVideo_TooLarge(t *testing.T) {
	s := newTestServer(t, &stubHost{})
	s.router = NewRouter(New(nil, WithMaxUploadBytes(1024)), nil, nil)

	rec := s.do(t, multipartRequest(t, "/upload/video/", map[string]string{"lesson_id": "42"}, bytes.Repeat([]byte("x"), 4096)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadVideo_Accepted(t *testing.T) {
	s := newTestServer(t, &stubHost{})

	rec := s.do(t, multipartRequest(t, "/upload/video/", map[string]string{
		"title":       "Lesson 1",
		"description": "intro",
		"lesson_id":   "42",
		"playlist":    "Course A",
		"accessToken": "tok",
	}, []byte("mp4 bytes")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	up := decode[UploadResponse](t, rec)
	assert.Equal(t, "lesson.mp4", up.Filename)
	assert.Empty(t, up.Result)

	s.queue.Close()

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/upload/status/"+up.TaskID.String()+"/", nil))
	status := decode[TaskStatusResponse](t, rec)
	assert.Equal(t, domain.Completed, status.Status)
	assert.Equal(t, domain.Success, status.Result)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid123", status.VideoURL)
	assert.Equal(t, "PL-Course A", status.PlaylistID)
}

func TestTaskStatus_PendingThenCompleted(t *testing.T) {
	host := &stubHost{release: make(chan struct{})}
	s := newTestServer(t, host)

	rec := s.do(t, multipartRequest(t, "/upload/playlist/", map[string]string{
		"playlist_name": "Course A",
		"access_token":  "tok",
	}, nil))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	id := decode[PlaylistResponse](t, rec).TaskID

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/upload/status/"+id.String()+"/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[TaskStatusResponse](t, rec)
	assert.Equal(t, domain.Pending, pending.Status)
	assert.Empty(t, pending.Result)
	assert.Nil(t, pending.CompletedAt)

	close(host.release)
	s.queue.Close()

	first := s.do(t, httptest.NewRequest(http.MethodGet, "/upload/status/"+id.String()+"/", nil))
	require.Equal(t, http.StatusOK, first.Code)
	done := decode[TaskStatusResponse](t, first)
	assert.Equal(t, domain.Completed, done.Status)
	assert.Equal(t, domain.Success, done.Result)
	assert.Equal(t, "PL-Course A", done.PlaylistID)

	again := s.do(t, httptest.NewRequest(http.MethodGet, "/youtube/status/"+id.String()+"/", nil))
	assert.Equal(t, first.Body.String(), again.Body.String())
}

func TestTaskStatus_BadRequests(t *testing.T) {
	s := newTestServer(t, &stubHost{})

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/upload/status/not-a-uuid/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/upload/status/00000000-0000-0000-0000-000000000001/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodPost, "/upload/status/00000000-0000-0000-0000-000000000001/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLessonMedia_UnknownLesson(t *testing.T) {
	s := newTestServer(t, &stubHost{})

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/lessons/7/media/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/lessons/abc/media/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStoreLink_InlineWhenQueueClosed(t *testing.T) {
	s := newTestServer(t, &stubHost{})
	s.queue.Close()

	rec := s.do(t, multipartRequest(t, "/upload/link/", map[string]string{
		"lesson_id": "42",
		"video_url": "https://youtu.be/abc",
	}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.Success, decode[LinkResponse](t, rec).Result)
	assert.Equal(t, 1, s.media.Count())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &stubHost{})

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
