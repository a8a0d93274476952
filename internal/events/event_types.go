package events

import (
	"time"

	"github.com/spec-kit/classroom-client/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventSessionEnded   EventType = "session_ended"
	EventSessionExpired EventType = "session_expired"
)

// Event represents a session lifecycle change.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SessionStartedPayload payload.
type SessionStartedPayload struct {
	Method string      `json:"method"`
	Role   domain.Role `json:"role,omitempty"`
}

// SessionExpiredPayload payload.
type SessionExpiredPayload struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}
