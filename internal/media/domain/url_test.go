package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidVideoURL(t *testing.T) {
	cases := map[string]bool{
		"https://www.youtube.com/watch?v=abc123":       true,
		"https://youtube.com/watch?v=abc123&t=10":      true,
		"https://youtu.be/abc123":                      true,
		"not-a-url":                                    false,
		"http://www.youtube.com/watch?v=abc123":        false,
		"https://www.youtube.com/watch":                false,
		"https://youtu.be/":                            false,
		"https://vimeo.com/12345":                      false,
		"https://evil.example/?https://youtu.be/abc12": false,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ValidVideoURL(raw), raw)
	}
}
