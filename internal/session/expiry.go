package session

import (
	"bytes"
	"net/http"
	"strings"

	apperrors "github.com/spec-kit/classroom-client/pkg/util"
)

// ExpiryDetector recognises the backend's "credential expired" signal on a 401.
// Code matches the structured `code` field; Marker is the legacy substring
// match on the detail text. An empty field disables that check.
type ExpiryDetector struct {
	Code   string
	Marker string
}

// Expired reports whether a response means the bearer token is no longer valid.
func (d ExpiryDetector) Expired(status int, body []byte) bool {
	if status != http.StatusUnauthorized || len(body) == 0 {
		return false
	}

	detail, code := apperrors.ParseErrorBody(body)
	if d.Code != "" && code == d.Code {
		return true
	}
	if d.Marker == "" {
		return false
	}
	if detail != "" {
		return strings.Contains(strings.ToLower(detail), strings.ToLower(d.Marker))
	}
	return bytes.Contains(bytes.ToLower(body), []byte(strings.ToLower(d.Marker)))
}
