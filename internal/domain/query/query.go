// Package query filters and sorts reconciled task lists.
package query

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/avesafe/taskpilot/internal/domain/risk"
	"github.com/avesafe/taskpilot/internal/domain/task"
)

// Sort keys accepted by Apply.
const (
	SortNewest     = "newest"
	SortDeadline   = "deadline"
	SortPriority   = "priority"
	SortConfidence = "confidence"
)

// All matches every value for the Status, Priority, and Risk filters.
const All = "all"

// Filter is a search/filter/sort specification.
// Zero-value string fields mean "no constraint".
type Filter struct {
	Search   string
	Status   string // "active", "completed", or All
	Priority string // priority label or All
	Risk     string // urgency category or All
	Sort     string // one of the Sort keys; default SortNewest
}

// Apply runs the filter over a reconciled list and returns a new slice.
// The risk filter recomputes urgency from the deadline against today;
// tasks without a deadline never match a specific risk filter. Sorting is
// stable for equal keys.
func Apply(tasks []task.Task, f Filter, today time.Time) []task.Task {
	out := make([]task.Task, 0, len(tasks))
	for i := range tasks {
		if matches(&tasks[i], f, today) {
			out = append(out, tasks[i])
		}
	}

	switch f.Sort {
	case SortDeadline:
		sort.SliceStable(out, func(i, j int) bool {
			return deadlineLess(out[i].Deadline, out[j].Deadline)
		})
	case SortPriority:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].PriorityRank() > out[j].PriorityRank()
		})
	case SortConfidence:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ConfidenceOrZero() > out[j].ConfidenceOrZero()
		})
	default: // SortNewest
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ID > out[j].ID
		})
	}

	return out
}

func matches(t *task.Task, f Filter, today time.Time) bool {
	if s := strings.ToLower(strings.TrimSpace(f.Search)); s != "" && !searchMatch(t, s) {
		return false
	}
	if f.Status != "" && f.Status != All && string(t.Status) != f.Status {
		return false
	}
	if f.Priority != "" && f.Priority != All {
		if t.Annotation == nil || string(t.Annotation.Priority) != f.Priority {
			return false
		}
	}
	if f.Risk != "" && f.Risk != All {
		if t.Deadline == "" {
			return false
		}
		if string(risk.Classify(t.Deadline, today).Category) != f.Risk {
			return false
		}
	}
	return true
}

// searchMatch checks a case-insensitive substring against title,
// description, priority label, and the stringified id.
func searchMatch(t *task.Task, needle string) bool {
	if strings.Contains(strings.ToLower(t.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(t.Description), needle) {
		return true
	}
	if t.Annotation != nil && strings.Contains(strings.ToLower(string(t.Annotation.Priority)), needle) {
		return true
	}
	return strings.Contains(strconv.FormatInt(t.ID, 10), needle)
}

// deadlineLess orders dates ascending with missing deadlines last.
// Deadlines are YYYY-MM-DD, so string order is date order.
func deadlineLess(a, b string) bool {
	if a == "" {
		return false
	}
	if b == "" {
		return true
	}
	return a < b
}
