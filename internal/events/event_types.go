package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventTokenRefreshed EventType = "token_refreshed"
	EventSessionRenewed EventType = "session_renewed"
	EventLoggedOut      EventType = "logged_out"
	EventUserCreated    EventType = "user_created"
)

// AllEventTypes lists every type the services publish.
var AllEventTypes = []EventType{
	EventLoginSucceeded,
	EventLoginFailed,
	EventTokenRefreshed,
	EventSessionRenewed,
	EventLoggedOut,
	EventUserCreated,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New builds an event stamped with a fresh id and the current time.
func New(eventType EventType, userID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// LoginFailedPayload payload. Identifier is the submitted username or email.
type LoginFailedPayload struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
}

// SessionPayload payload for events that touch the session cache.
type SessionPayload struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// UserCreatedPayload payload.
type UserCreatedPayload struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}
