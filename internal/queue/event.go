// Package queue defines the auth event payloads exchanged over RabbitMQ, the
// publisher used by the session service and the audit log consumer.
package queue

import "time"

// AuthEventsQueue is the durable queue auth events are published to.
const AuthEventsQueue = "auth.events"

// Event types.
const (
	EventUserRegistered   = "user.registered"
	EventSessionStarted   = "session.started"
	EventSessionRefreshed = "session.refreshed"
	EventSessionEnded     = "session.ended"
	EventPasswordChanged  = "password.changed"
)

// AuthEvent is published after a successful account or session change.  It
// never carries tokens or password material.
type AuthEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
