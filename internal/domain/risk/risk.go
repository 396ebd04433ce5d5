// Package risk classifies task deadlines into urgency categories.
//
// Classification is a pure function of (deadline, today). All callers use
// UTC calendar dates so the same deadline never lands in different
// categories depending on which component computed it.
package risk

import (
	"fmt"
	"time"

	"github.com/avesafe/taskpilot/internal/domain/task"
)

// Category is a deadline-derived urgency classification.
type Category string

const (
	CategoryOverdue  Category = "Overdue"
	CategoryDueToday Category = "Due Today"
	CategoryHigh     Category = "High Urgency"
	CategoryModerate Category = "Moderate Urgency"
	CategoryStable   Category = "Stable Timeline"
	CategoryNone     Category = "No deadline"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryOverdue, CategoryDueToday, CategoryHigh, CategoryModerate, CategoryStable, CategoryNone:
		return true
	}
	return false
}

// Assessment is the result of classifying a single deadline.
type Assessment struct {
	Category      Category
	Label         string
	DaysRemaining int  // whole calendar days, negative when overdue
	HasDeadline   bool // false when DaysRemaining is meaningless
}

// Classify maps a deadline (YYYY-MM-DD, empty for none) and a reference
// "today" to an urgency assessment. Day difference is whole calendar days,
// not elapsed hours. An unparseable deadline counts as no deadline.
func Classify(deadline string, today time.Time) Assessment {
	if deadline == "" {
		return Assessment{Category: CategoryNone, Label: "No deadline"}
	}

	due, err := time.ParseInLocation("2006-01-02", deadline, time.UTC)
	if err != nil {
		return Assessment{Category: CategoryNone, Label: "No deadline"}
	}

	days := int(due.Sub(truncateToDay(today)).Hours() / 24)

	a := Assessment{DaysRemaining: days, HasDeadline: true}
	switch {
	case days < 0:
		a.Category = CategoryOverdue
		a.Label = fmt.Sprintf("Overdue by %d days", -days)
	case days == 0:
		a.Category = CategoryDueToday
		a.Label = "Due Today"
	case days <= 2:
		a.Category = CategoryHigh
		a.Label = fmt.Sprintf("%d days remaining", days)
	case days <= 5:
		a.Category = CategoryModerate
		a.Label = fmt.Sprintf("%d days remaining", days)
	default:
		a.Category = CategoryStable
		a.Label = fmt.Sprintf("%d days remaining", days)
	}
	return a
}

// PriorityFor returns the authoritative priority for an urgency category.
// This table always wins over whatever the oracle suggested.
func PriorityFor(c Category) task.Priority {
	switch c {
	case CategoryOverdue:
		return task.PriorityCritical
	case CategoryDueToday, CategoryHigh:
		return task.PriorityHigh
	case CategoryModerate:
		return task.PriorityMedium
	default:
		return task.PriorityLow
	}
}

// FallbackReason returns the canned rationale used when the oracle omitted
// a task and its entry had to be synthesized.
func FallbackReason(c Category) string {
	switch c {
	case CategoryOverdue:
		return "Task is overdue."
	case CategoryDueToday:
		return "Due today."
	case CategoryHigh:
		return "Approaching deadline."
	case CategoryModerate:
		return "Upcoming deadline."
	case CategoryNone:
		return "No deadline set."
	default:
		return "Timeline is stable."
	}
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
