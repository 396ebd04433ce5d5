package service

import (
	"context"
	"errors"
	"time"

	"github.com/avesafe/taskpilot/internal/domain"
	"github.com/avesafe/taskpilot/internal/domain/overlay"
	"github.com/avesafe/taskpilot/internal/domain/query"
	"github.com/avesafe/taskpilot/internal/domain/session"
	"github.com/avesafe/taskpilot/internal/domain/task"
)

// ViewService produces read views of a session: the task collection with
// any current optimization record merged in, optionally filtered and
// sorted.
type ViewService struct {
	tasks   *TaskService
	overlay *OverlayCache
	now     func() time.Time
}

// NewViewService creates a ViewService.
func NewViewService(tasks *TaskService, overlay *OverlayCache) *ViewService {
	return &ViewService{tasks: tasks, overlay: overlay, now: time.Now}
}

// Reconciled returns the session's tasks with the stored optimization
// record applied. When no record exists the tasks come back unannotated.
// Reconciling never mutates stored state; calling it twice yields the
// same result.
func (v *ViewService) Reconciled(ctx context.Context, key session.Key) ([]task.Task, error) {
	tasks, err := v.tasks.List(ctx, key)
	if err != nil {
		return nil, err
	}

	stored, err := v.overlay.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return overlay.Merge(tasks, nil), nil
		}
		return nil, err
	}

	return overlay.Merge(tasks, &stored.Record), nil
}

// View returns the reconciled collection narrowed and ordered by f.
func (v *ViewService) View(ctx context.Context, key session.Key, f query.Filter) ([]task.Task, error) {
	tasks, err := v.Reconciled(ctx, key)
	if err != nil {
		return nil, err
	}
	return query.Apply(tasks, f, v.now().UTC()), nil
}

// StalenessReport describes whether a session's optimization record still
// matches its task collection. Never-optimized and stale are distinct
// states: the first has no record at all, the second has a record whose
// fingerprint no longer matches.
type StalenessReport struct {
	Optimized   bool       `json:"optimized"`
	Stale       bool       `json:"stale"`
	OptimizedAt *time.Time `json:"optimizedAt,omitempty"`
	Summary     string     `json:"summary,omitempty"`
}

// Staleness reports the optimization state for key.
func (v *ViewService) Staleness(ctx context.Context, key session.Key) (*StalenessReport, error) {
	tasks, err := v.tasks.List(ctx, key)
	if err != nil {
		return nil, err
	}

	stored, err := v.overlay.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &StalenessReport{}, nil
		}
		return nil, err
	}

	at := stored.OptimizedAt
	return &StalenessReport{
		Optimized:   true,
		Stale:       stored.Stale(tasks),
		OptimizedAt: &at,
		Summary:     stored.Record.Summary,
	}, nil
}
