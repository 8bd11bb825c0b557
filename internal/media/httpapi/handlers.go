package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/lesson-media/internal/media/domain"
	"github.com/romariotrain/lesson-media/internal/media/models"
	"github.com/romariotrain/lesson-media/internal/media/service"
)

const (
	defaultMaxUploadBytes = 256 << 20
	multipartMemory       = 32 << 20
)

type Handler struct {
	svc            *service.Service
	maxUploadBytes int64
	logger         zerolog.Logger
}

type Option func(*Handler)

func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(h *Handler) { h.logger = l.With().Str("component", "httpapi").Logger() }
}

func New(svc *service.Service, opts ...Option) *Handler {
	h := &Handler{
		svc:            svc,
		maxUploadBytes: defaultMaxUploadBytes,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error().Err(err).Str("filename", header.Filename).Msg("read uploaded file")
		writeErrorJSON(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	lessonID, err := parseLessonID(r.FormValue("lesson_id"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.svc.SubmitUpload(r.Context(), service.UploadInput{
		File:        data,
		Filename:    header.Filename,
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		AccessToken: accessToken(r),
		LessonID:    lessonID,
		Playlist:    r.FormValue("playlist"),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := UploadResponse{
		Message:  "File uploaded successfully",
		Filename: header.Filename,
		TaskID:   sub.TaskID,
	}
	if sub.Inline == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Result = sub.Inline.Code
	resp.VideoURL = sub.Inline.VideoURL
	status := inlineStatus(sub.Inline.Code)
	if status != http.StatusOK {
		resp.Message = "Upload failed"
	}
	writeJSON(w, status, resp)
}

func (h *Handler) StoreLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}

	lessonID, err := parseLessonID(r.FormValue("lesson_id"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	videoURL := strings.TrimSpace(r.FormValue("video_url"))

	sub, err := h.svc.SubmitLink(r.Context(), lessonID, videoURL)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := LinkResponse{
		Message:  "Video link accepted",
		VideoURL: videoURL,
		TaskID:   sub.TaskID,
	}
	if sub.Inline == nil {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	resp.Result = sub.Inline.Code
	status := inlineStatus(sub.Inline.Code)
	if status == http.StatusOK {
		resp.Message = "Video link saved"
	} else {
		resp.Message = "Video link rejected"
	}
	writeJSON(w, status, resp)
}

func (h *Handler) EnsurePlaylist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}

	sub, err := h.svc.SubmitPlaylist(r.Context(), r.FormValue("playlist_name"), accessToken(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if sub.Inline == nil {
		writeJSON(w, http.StatusAccepted, PlaylistResponse{TaskID: sub.TaskID})
		return
	}
	writeJSON(w, inlineStatus(sub.Inline.Code), PlaylistResponse{
		TaskID:     sub.TaskID,
		Result:     sub.Inline.Code,
		PlaylistID: sub.Inline.PlaylistID,
	})
}

// TaskStatus serves /upload/status/{id}/ and /youtube/status/{id}/.
func (h *Handler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	idStr := r.URL.Path
	for _, prefix := range []string{"/upload/status/", "/youtube/status/"} {
		idStr = strings.TrimPrefix(idStr, prefix)
	}
	idStr = strings.Trim(idStr, "/")
	if idStr == "" {
		writeErrorJSON(w, http.StatusBadRequest, "missing task id")
		return
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid task id")
		return
	}

	task, err := h.svc.TaskStatus(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskStatusResponse(task))
}

// LessonMedia serves /lessons/{id}/media/.
func (h *Handler) LessonMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/lessons/")
	idStr, tail, ok := strings.Cut(rest, "/")
	if !ok || strings.Trim(tail, "/") != "media" {
		writeErrorJSON(w, http.StatusNotFound, "not found")
		return
	}
	lessonID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || lessonID <= 0 {
		writeErrorJSON(w, http.StatusBadRequest, "invalid lesson id")
		return
	}

	rows, err := h.svc.LessonMedia(r.Context(), lessonID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]MediaResponse, 0, len(rows))
	for _, m := range rows {
		resp = append(resp, toMediaResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseMultipart enforces the multipart contract and the upload size cap. It
// writes the error response itself and reports whether the handler may go on.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		writeErrorJSON(w, http.StatusBadRequest, "content type must be multipart/form-data")
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorJSON(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeErrorJSON(w, http.StatusBadRequest, "invalid multipart form")
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		writeErrorJSON(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), models.ErrInvalidArgument.Error()+": "))
	case errors.Is(err, models.ErrNotFound):
		writeErrorJSON(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrConflict):
		writeErrorJSON(w, http.StatusConflict, "conflict")
	default:
		h.logger.Error().Err(err).Msg("request failed")
		writeErrorJSON(w, http.StatusInternalServerError, "internal error")
	}
}

func parseLessonID(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, errors.New("lesson_id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid lesson_id %q", raw)
	}
	return &id, nil
}

// accessToken reads the bearer credential from the form, falling back to the
// Authorization header.
func accessToken(r *http.Request) string {
	for _, field := range []string{"accessToken", "access_token"} {
		if v := strings.TrimSpace(r.FormValue(field)); v != "" {
			return v
		}
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// inlineStatus maps a synchronously produced result to an HTTP status.
// Playlist outcomes still mean the upload itself went through.
func inlineStatus(code domain.ResultCode) int {
	switch code {
	case domain.Success, domain.PlaylistNotFound, domain.PlaylistAttachFailed:
		return http.StatusOK
	case domain.MissingLesson:
		return http.StatusNotFound
	case domain.MalformedURL:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
