// Package task defines the Task domain entity.
package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/avesafe/taskpilot/internal/domain"
)

// Status represents the current state of a task.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusCompleted
}

// Priority is a rule-derived priority level.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// Rank returns the sort rank of a priority. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Annotation holds the priority overlay assigned to a task by an
// optimization pass. The three fields live and die together: a task either
// carries a full annotation or none at all.
type Annotation struct {
	Priority   Priority `json:"priority"`
	Confidence int      `json:"confidence"`
	Reason     string   `json:"reason"`
}

// Task represents one work item within a session.
type Task struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Deadline    string      `json:"deadline,omitempty"` // YYYY-MM-DD, empty means no deadline
	Status      Status      `json:"status"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Annotation  *Annotation `json:"annotation,omitempty"`
}

// Annotated reports whether the task carries a priority overlay.
func (t *Task) Annotated() bool {
	return t.Annotation != nil
}

// PriorityRank returns the task's priority rank, 0 when unannotated.
func (t *Task) PriorityRank() int {
	if t.Annotation == nil {
		return 0
	}
	return t.Annotation.Priority.Rank()
}

// ConfidenceOrZero returns the annotation confidence, 0 when unannotated.
func (t *Task) ConfidenceOrZero() int {
	if t.Annotation == nil {
		return 0
	}
	return t.Annotation.Confidence
}

// Complete marks the task completed and stamps the completion time.
func (t *Task) Complete(at time.Time) {
	t.Status = StatusCompleted
	t.CompletedAt = &at
}

// Restore marks the task active again and clears the completion time.
// Any existing annotation is left untouched.
func (t *Task) Restore() {
	t.Status = StatusActive
	t.CompletedAt = nil
}

// CreateRequest holds the fields needed to create a new task.
// ID is optional; the store assigns a wall-clock-derived id when absent.
type CreateRequest struct {
	ID          int64  `json:"id,omitempty"`
	Title       string `json:"title" validate:"required,max=500"`
	Description string `json:"description" validate:"max=5000"`
	Deadline    string `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request against its field constraints.
func (r CreateRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "invalid task"
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldName(fe.Field()))
	case "max":
		return fmt.Sprintf("%s is too long", fieldName(fe.Field()))
	case "datetime":
		return fmt.Sprintf("%s must be YYYY-MM-DD", fieldName(fe.Field()))
	default:
		return fmt.Sprintf("%s is invalid", fieldName(fe.Field()))
	}
}

func fieldName(structField string) string {
	switch structField {
	case "Title":
		return "title"
	case "Description":
		return "description"
	case "Deadline":
		return "deadline"
	default:
		return structField
	}
}
