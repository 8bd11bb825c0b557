package domain

import (
	"net/url"
	"strings"
)

// ValidVideoURL accepts the two public link shapes of the video host:
// https://www.youtube.com/watch?v=<id> and https://youtu.be/<id>.
func ValidVideoURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "https" {
		return false
	}
	switch strings.ToLower(u.Host) {
	case "www.youtube.com", "youtube.com", "m.youtube.com":
		return u.Path == "/watch" && u.Query().Get("v") != ""
	case "youtu.be":
		return len(strings.Trim(u.Path, "/")) > 0
	default:
		return false
	}
}
