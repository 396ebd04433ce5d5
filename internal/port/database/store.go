// Package database defines the persistence port (interface).
package database

import (
	"context"

	"github.com/avesafe/taskpilot/internal/domain/overlay"
	"github.com/avesafe/taskpilot/internal/domain/session"
	"github.com/avesafe/taskpilot/internal/domain/task"
)

// Store is the port interface for session and optimization persistence.
//
// Task collections are stored whole per session, guarded by an optimistic
// version stamp: UpdateSessionTasks with a stale version returns
// domain.ErrConflict and writes nothing, giving callers atomic
// read-modify-write per session key without a lock.
type Store interface {
	// GetSession returns the session for key, or domain.ErrNotFound.
	GetSession(ctx context.Context, key session.Key) (*session.Session, error)

	// CreateSession inserts a new session with version 1 and an empty
	// task collection unless tasks are supplied.
	CreateSession(ctx context.Context, s *session.Session) error

	// UpdateSessionTasks replaces the task collection if version matches
	// the stored stamp, bumping it by one. Returns domain.ErrConflict on
	// a version mismatch.
	UpdateSessionTasks(ctx context.Context, key session.Key, tasks []task.Task, version int) error

	// GetOptimization returns the stored record for key,
	// domain.ErrNotFound when the session was never optimized, or
	// domain.ErrCacheCorrupt when the stored record fails to parse.
	GetOptimization(ctx context.Context, key session.Key) (*overlay.Stored, error)

	// PutOptimization atomically creates or replaces the record for key.
	PutOptimization(ctx context.Context, key session.Key, rec *overlay.Stored) error

	// DeleteOptimization removes the record for key. Deleting a missing
	// record is not an error.
	DeleteOptimization(ctx context.Context, key session.Key) error
}
