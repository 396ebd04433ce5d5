package overlay

import "github.com/avesafe/taskpilot/internal/domain/task"

// Merge reconciles a stored record with the live task collection.
//
// Tasks referenced by the record surface first, in record order, carrying
// the record's annotation. Tasks the record does not mention (never
// optimized, or added after the last optimization) follow in their
// original store order, unannotated, so a caller can tell "new" from
// "optimized" without extra state.
//
// The output always contains every input task exactly once: record
// entries for unknown ids are skipped, and an id consumed once cannot be
// emitted again. A nil record returns a copy of the input unchanged.
func Merge(tasks []task.Task, rec *Record) []task.Task {
	out := make([]task.Task, 0, len(tasks))
	if rec == nil {
		return append(out, tasks...)
	}

	remaining := make(map[int64]int, len(tasks))
	for i := range tasks {
		remaining[tasks[i].ID] = i
	}

	for _, e := range rec.ReorderedTasks {
		i, ok := remaining[e.ID]
		if !ok {
			continue
		}
		t := tasks[i]
		t.Annotation = &task.Annotation{
			Priority:   e.Priority,
			Confidence: e.Confidence,
			Reason:     e.Reason,
		}
		out = append(out, t)
		delete(remaining, e.ID)
	}

	for i := range tasks {
		if _, ok := remaining[tasks[i].ID]; ok {
			out = append(out, tasks[i])
		}
	}

	return out
}
