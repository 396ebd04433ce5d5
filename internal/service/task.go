// Package service wires the domain logic to the ports: task lifecycle,
// the priority engine, and the reconciled view.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avesafe/taskpilot/internal/domain"
	"github.com/avesafe/taskpilot/internal/domain/session"
	"github.com/avesafe/taskpilot/internal/domain/task"
	"github.com/avesafe/taskpilot/internal/port/database"
	"github.com/avesafe/taskpilot/internal/port/messagequeue"
	"github.com/avesafe/taskpilot/internal/port/oracle"
)

// maxWriteAttempts bounds the optimistic read-modify-write retry loop.
const maxWriteAttempts = 3

// TaskService owns the task collection per session key. Every mutation
// invalidates the session's optimization record and announces itself on
// the queue so peer instances and clients can react.
type TaskService struct {
	store   database.Store
	overlay *OverlayCache
	queue   messagequeue.Queue
	now     func() time.Time
}

// NewTaskService creates a TaskService.
func NewTaskService(store database.Store, overlay *OverlayCache, queue messagequeue.Queue) *TaskService {
	return &TaskService{
		store:   store,
		overlay: overlay,
		queue:   queue,
		now:     time.Now,
	}
}

// List returns the session's ordered task collection. A session that was
// never written is an empty collection, not an error.
func (s *TaskService) List(ctx context.Context, key session.Key) ([]task.Task, error) {
	sess, err := s.store.GetSession(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []task.Task{}, nil
		}
		return nil, err
	}
	return sess.Tasks, nil
}

// Create validates and appends a new task. The id is taken from the
// request when supplied, otherwise derived from the wall clock; either
// way it is bumped past any collision with an existing id.
func (s *TaskService) Create(ctx context.Context, key session.Key, req task.CreateRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var created task.Task
	_, err := s.mutate(ctx, key, func(sess *session.Session) (bool, error) {
		created = task.Task{
			ID:          s.assignID(sess, req.ID),
			Title:       req.Title,
			Description: req.Description,
			Deadline:    req.Deadline,
			Status:      task.StatusActive,
		}
		sess.Tasks = append(sess.Tasks, created)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, key)
	return &created, nil
}

// CreateBatch appends extracted drafts as active, unannotated tasks.
// Drafts without a title are skipped.
func (s *TaskService) CreateBatch(ctx context.Context, key session.Key, drafts []oracle.Draft) ([]task.Task, error) {
	var added []task.Task
	_, err := s.mutate(ctx, key, func(sess *session.Session) (bool, error) {
		added = added[:0]
		for _, d := range drafts {
			if d.Title == "" {
				continue
			}
			t := task.Task{
				ID:          s.assignID(sess, 0),
				Title:       d.Title,
				Description: d.Description,
				Deadline:    d.Deadline,
				Status:      task.StatusActive,
			}
			sess.Tasks = append(sess.Tasks, t)
			added = append(added, t)
		}
		return len(added) > 0, nil
	})
	if err != nil {
		return nil, err
	}

	if len(added) > 0 {
		s.afterMutation(ctx, key)
	}
	return added, nil
}

// Delete removes a task. Deleting an unknown id is a no-op, not a failure.
func (s *TaskService) Delete(ctx context.Context, key session.Key, id int64) error {
	removed := false
	_, err := s.mutate(ctx, key, func(sess *session.Session) (bool, error) {
		before := len(sess.Tasks)
		sess.Remove(id)
		removed = len(sess.Tasks) != before
		return removed, nil
	})
	if err != nil {
		return err
	}

	if removed {
		s.afterMutation(ctx, key)
	}
	return nil
}

// SetStatus toggles a task between active and completed. Completing
// stamps CompletedAt; restoring clears it and leaves every other field,
// including any prior annotation state, untouched.
func (s *TaskService) SetStatus(ctx context.Context, key session.Key, id int64, status task.Status) (*task.Task, error) {
	if !status.Valid() {
		return nil, domain.ErrValidation
	}

	var updated task.Task
	_, err := s.mutate(ctx, key, func(sess *session.Session) (bool, error) {
		t := sess.Find(id)
		if t == nil {
			return false, domain.ErrNotFound
		}
		switch status {
		case task.StatusCompleted:
			t.Complete(s.now().UTC())
		case task.StatusActive:
			t.Restore()
		}
		updated = *t
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, key)
	return &updated, nil
}

// assignID picks a unique wall-clock-derived id. A requested id wins
// unless it collides; collisions bump forward until free.
func (s *TaskService) assignID(sess *session.Session, requested int64) int64 {
	id := requested
	if id <= 0 {
		id = s.now().UnixMilli()
	}
	for sess.Find(id) != nil {
		id++
	}
	return id
}

// mutate runs an optimistic read-modify-write against the session,
// creating it on first use and retrying on version conflicts.
func (s *TaskService) mutate(ctx context.Context, key session.Key, fn func(*session.Session) (bool, error)) (*session.Session, error) {
	var lastErr error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		sess, err := s.store.GetSession(ctx, key)
		if errors.Is(err, domain.ErrNotFound) {
			sess = &session.Session{Key: key, Tasks: []task.Task{}}
			if err := s.store.CreateSession(ctx, sess); err != nil {
				// Likely lost a create race; re-read on the next attempt.
				lastErr = err
				continue
			}
		} else if err != nil {
			return nil, err
		}

		changed, err := fn(sess)
		if err != nil {
			return nil, err
		}
		if !changed {
			return sess, nil
		}

		err = s.store.UpdateSessionTasks(ctx, key, sess.Tasks, sess.Version)
		if errors.Is(err, domain.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		sess.Version++
		return sess, nil
	}

	if lastErr == nil {
		lastErr = domain.ErrConflict
	}
	return nil, lastErr
}

// afterMutation drops the now-invalid optimization record and announces
// the change. The event publish is best-effort.
func (s *TaskService) afterMutation(ctx context.Context, key session.Key) {
	if err := s.overlay.Invalidate(ctx, key); err != nil {
		slog.Error("overlay invalidation failed", "session", key.String(), "error", err)
	}
	s.publishEvent(ctx, messagequeue.SubjectSessionInvalidated, key)
}

func (s *TaskService) publishEvent(ctx context.Context, subject string, key session.Key) {
	publishSessionEvent(ctx, s.queue, subject, key, s.now())
}

// publishSessionEvent emits a session lifecycle event. Publish failures
// are logged, never propagated; the write that triggered them already
// succeeded.
func publishSessionEvent(ctx context.Context, queue messagequeue.Queue, subject string, key session.Key, at time.Time) {
	if queue == nil {
		return
	}
	data, err := json.Marshal(messagequeue.SessionEvent{
		EventID:    uuid.NewString(),
		SessionKey: key.String(),
		At:         at.UTC(),
	})
	if err != nil {
		return
	}
	if err := queue.Publish(ctx, subject, data); err != nil {
		slog.Error("event publish failed", "subject", subject, "session", key.String(), "error", err)
	}
}
