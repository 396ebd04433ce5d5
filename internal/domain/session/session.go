// Package session defines the session partition key and session entity.
package session

import (
	"time"

	"github.com/avesafe/taskpilot/internal/domain/task"
)

// Key pairs a department and sub-department. All task and optimization
// state is partitioned by this key; no two sessions interact.
type Key struct {
	Department    string
	SubDepartment string
}

// String returns the canonical storage form of the key.
func (k Key) String() string {
	return k.Department + "-" + k.SubDepartment
}

// Session holds the ordered task collection for one key.
// Version is an optimistic-concurrency stamp bumped on every write.
type Session struct {
	Key       Key         `json:"-"`
	Tasks     []task.Task `json:"tasks"`
	Version   int         `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Find returns a pointer into Tasks for the given id, nil if absent.
func (s *Session) Find(id int64) *task.Task {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}

// Remove deletes the task with the given id, preserving order.
// Removing an unknown id is a no-op.
func (s *Session) Remove(id int64) {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			s.Tasks = append(s.Tasks[:i], s.Tasks[i+1:]...)
			return
		}
	}
}
