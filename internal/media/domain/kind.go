package domain

import "fmt"

// Kind names a task body. It is carried in every queue envelope.
type Kind string

const (
	UploadVideo    Kind = "upload_video"
	EnsurePlaylist Kind = "ensure_playlist"
	LinkVideo      Kind = "link_video"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case UploadVideo, EnsurePlaylist, LinkVideo:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}
