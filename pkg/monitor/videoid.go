package monitor

import (
	"net/url"
	"strings"
)

// videoIDLength is the platform's fixed video-id length.
const videoIDLength = 11

// ExtractVideoID resolves a user-supplied broadcast reference to a bare
// video id. Accepted forms:
//
//   - a bare 11-character id ("dQw4w9WgXcQ")
//   - a watch URL ("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
//   - a live URL ("https://www.youtube.com/live/dQw4w9WgXcQ")
//   - a short URL ("https://youtu.be/dQw4w9WgXcQ")
func ExtractVideoID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEmptyVideoID
	}

	if isVideoID(input) {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", ErrInvalidVideoURL
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")

	switch {
	case strings.HasSuffix(host, "youtube.com"):
		if id := u.Query().Get("v"); isVideoID(id) {
			return id, nil
		}
		// /live/<id> and /embed/<id> carry the id as the second path
		// segment.
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 && (parts[0] == "live" || parts[0] == "embed") && isVideoID(parts[1]) {
			return parts[1], nil
		}

	case host == "youtu.be":
		id := strings.Trim(u.Path, "/")
		if isVideoID(id) {
			return id, nil
		}
	}

	return "", ErrInvalidVideoURL
}

// isVideoID reports whether s is a well-formed bare video id.
func isVideoID(s string) bool {
	if len(s) != videoIDLength {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
