// Package messagequeue defines the message queue port (interface).
package messagequeue

import (
	"context"
	"time"
)

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Close shuts down the queue connection.
	Close() error
}

// Subjects for session lifecycle events.
const (
	// SubjectSessionInvalidated fires after any task mutation drops a
	// session's optimization record. Peer instances evict their L1 entry.
	SubjectSessionInvalidated = "sessions.invalidated"

	// SubjectSessionOptimized fires after a new optimization record is
	// persisted for a session.
	SubjectSessionOptimized = "sessions.optimized"
)

// SessionEvent is the payload published on the session subjects.
type SessionEvent struct {
	EventID    string    `json:"event_id"`
	SessionKey string    `json:"session_key"`
	At         time.Time `json:"at"`
}
