package youtube

import (
	"errors"
	"fmt"
)

var (
	ErrInitiation = errors.New("youtube: initiate resumable upload")
	ErrTransfer   = errors.New("youtube: transfer")
	ErrPlaylist   = errors.New("youtube: playlist")
)

const maxErrorBody = 2048

// HostError carries a non-success response from the video host. The body is
// kept for diagnostics and never shown to API clients.
type HostError struct {
	Op         error
	StatusCode int
	Body       string
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%v: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *HostError) Unwrap() error { return e.Op }

func newHostError(op error, status int, body []byte) *HostError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &HostError{Op: op, StatusCode: status, Body: string(body)}
}
