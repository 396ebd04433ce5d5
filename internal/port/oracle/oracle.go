// Package oracle defines the external AI oracle port (interface).
//
// The oracle is treated as untrusted and fallible: its output is parsed
// defensively and its priority suggestions are overridden by the
// deterministic urgency rules before anything is persisted.
package oracle

import (
	"context"

	"github.com/avesafe/taskpilot/internal/domain/overlay"
	"github.com/avesafe/taskpilot/internal/domain/risk"
)

// TaskContext is the per-task payload sent for priority classification.
// Title is truncated by the engine; the full description is never sent.
type TaskContext struct {
	ID            int64         `json:"id"`
	Title         string        `json:"title"`
	DaysRemaining *int          `json:"daysRemaining"`
	Urgency       risk.Category `json:"urgencyCategory"`
	Label         string        `json:"cleanDeadlineLabel"`
}

// Judgment is the oracle's raw verdict for a batch of tasks. Entries may
// omit submitted ids or invent unknown ones; the engine repairs both.
type Judgment struct {
	Entries []overlay.Entry
	Summary string
}

// Draft is a task extracted from free text. Drafts start unannotated and
// active; extraction never assigns priority or confidence.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"` // YYYY-MM-DD or empty
}

// Oracle is the port interface for the external AI capability.
type Oracle interface {
	// Classify asks the oracle to judge a batch of active tasks.
	// Fails with domain.ErrConfiguration when no credential is set,
	// domain.ErrUpstream when unreachable or non-success, and
	// domain.ErrParse when the response is not recoverable JSON.
	Classify(ctx context.Context, tasks []TaskContext) (*Judgment, error)

	// Extract pulls actionable tasks out of a text blob. The same error
	// taxonomy as Classify applies.
	Extract(ctx context.Context, text string) ([]Draft, error)
}
