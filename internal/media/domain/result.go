package domain

import (
	"encoding/json"
	"fmt"
)

// ResultCode is the terminal outcome of a task body. The set is closed;
// polling clients branch on these values.
type ResultCode string

const (
	Success              ResultCode = "SUCCESS"
	MissingLesson        ResultCode = "MISSING_LESSON"
	GenericFailure       ResultCode = "GENERIC_FAILURE"
	PlaylistAttachFailed ResultCode = "PLAYLIST_ATTACH_FAILED"
	PlaylistNotFound     ResultCode = "PLAYLIST_NOT_FOUND"
	MalformedURL         ResultCode = "MALFORMED_URL"
)

var resultCodes = map[ResultCode]struct{}{
	Success:              {},
	MissingLesson:        {},
	GenericFailure:       {},
	PlaylistAttachFailed: {},
	PlaylistNotFound:     {},
	MalformedURL:         {},
}

func (c ResultCode) Valid() bool {
	_, ok := resultCodes[c]
	return ok
}

func ParseResultCode(s string) (ResultCode, error) {
	c := ResultCode(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownResult, s)
	}
	return c, nil
}

func (c *ResultCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseResultCode(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Outcome is what a finished task stores for status polling.
type Outcome struct {
	Code       ResultCode `json:"code"`
	VideoURL   string     `json:"video_url,omitempty"`
	PlaylistID string     `json:"playlist_id,omitempty"`
}

func Fail() Outcome { return Outcome{Code: GenericFailure} }
