package httpapi

import (
	"net/http"
)

// RequestRecorder counts finished requests per route.
type RequestRecorder interface {
	Request(route string, code int)
}

func NewRouter(h *Handler, metrics http.Handler, rec RequestRecorder) http.Handler {
	mux := http.NewServeMux()

	handle := func(route string, fn http.HandlerFunc) {
		mux.Handle(route, instrument(route, fn, rec))
	}

	mux.HandleFunc("/health", h.Health)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	handle("/upload/video/", h.UploadVideo)
	handle("/upload/link/", h.StoreLink)
	handle("/upload/playlist/", h.EnsurePlaylist)

	// GET /upload/status/{id}/ and the older /youtube/status/{id}/
	handle("/upload/status/", h.TaskStatus)
	handle("/youtube/status/", h.TaskStatus)

	// GET /lessons/{id}/media/
	handle("/lessons/", h.LessonMedia)

	return mux
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func instrument(route string, next http.Handler, rec RequestRecorder) http.Handler {
	if rec == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		rec.Request(route, sw.code)
	})
}
