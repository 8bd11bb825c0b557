package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition(t *testing.T) {
	cases := []struct {
		name    string
		from    State
		to      State
		wantErr bool
	}{
		{name: "pending to completed", from: Pending, to: Completed},
		{name: "same state", from: Completed, to: Completed},
		{name: "completed is terminal", from: Completed, to: Pending, wantErr: true},
		{name: "unknown source", from: State("running"), to: Completed, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTransition(tc.from, tc.to)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestResultCode_UnmarshalRejectsUnknown(t *testing.T) {
	var o Outcome
	err := json.Unmarshal([]byte(`{"code":"SUCCESS","video_url":"https://www.youtube.com/watch?v=x"}`), &o)
	require.NoError(t, err)
	assert.Equal(t, Success, o.Code)

	err = json.Unmarshal([]byte(`{"code":"0"}`), &o)
	require.ErrorIs(t, err, ErrUnknownResult)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("upload_video")
	require.NoError(t, err)
	assert.Equal(t, UploadVideo, k)

	_, err = ParseKind("transcode")
	require.ErrorIs(t, err, ErrUnknownKind)
}
