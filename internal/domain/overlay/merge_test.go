package overlay

import (
	"reflect"
	"testing"

	"github.com/avesafe/taskpilot/internal/domain/task"
)

func mergeIDs(tasks []task.Task) []int64 {
	ids := make([]int64, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func threeTasks() []task.Task {
	return []task.Task{
		{ID: 1, Title: "a", Status: task.StatusActive},
		{ID: 2, Title: "b", Status: task.StatusActive},
		{ID: 3, Title: "c", Status: task.StatusActive},
	}
}

func TestMergeRecordOrderWins(t *testing.T) {
	rec := &Record{ReorderedTasks: []Entry{
		{ID: 3, Priority: task.PriorityCritical, Confidence: 90, Reason: "overdue"},
		{ID: 1, Priority: task.PriorityLow, Confidence: 60, Reason: "stable"},
	}}

	got := Merge(threeTasks(), rec)
	if want := []int64{3, 1, 2}; !reflect.DeepEqual(mergeIDs(got), want) {
		t.Fatalf("expected %v, got %v", want, mergeIDs(got))
	}
	if got[0].Annotation == nil || got[0].Annotation.Reason != "overdue" {
		t.Fatalf("annotation missing on reordered task: %+v", got[0])
	}
	if got[2].Annotation != nil {
		t.Fatalf("unmentioned task must stay unannotated: %+v", got[2])
	}
}

func TestMergeNilRecord(t *testing.T) {
	in := threeTasks()
	got := Merge(in, nil)
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("nil record must return the input unchanged, got %v", mergeIDs(got))
	}
	// A copy, not the same backing array.
	got[0].Title = "mutated"
	if in[0].Title == "mutated" {
		t.Fatal("merge must not alias the input slice")
	}
}

func TestMergeSkipsUnknownIDs(t *testing.T) {
	rec := &Record{ReorderedTasks: []Entry{
		{ID: 99, Priority: task.PriorityHigh, Confidence: 80, Reason: "phantom"},
		{ID: 2, Priority: task.PriorityMedium, Confidence: 70, Reason: "real"},
	}}

	got := Merge(threeTasks(), rec)
	if want := []int64{2, 1, 3}; !reflect.DeepEqual(mergeIDs(got), want) {
		t.Fatalf("expected %v, got %v", want, mergeIDs(got))
	}
}

func TestMergeNeverDuplicates(t *testing.T) {
	rec := &Record{ReorderedTasks: []Entry{
		{ID: 2, Priority: task.PriorityHigh, Confidence: 80, Reason: "first"},
		{ID: 2, Priority: task.PriorityLow, Confidence: 10, Reason: "again"},
	}}

	got := Merge(threeTasks(), rec)
	if len(got) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(got))
	}
	seen := make(map[int64]bool)
	for _, tk := range got {
		if seen[tk.ID] {
			t.Fatalf("duplicate id %d in output", tk.ID)
		}
		seen[tk.ID] = true
	}
	if got[0].Annotation.Reason != "first" {
		t.Fatalf("first entry must win, got %q", got[0].Annotation.Reason)
	}
}

func TestMergePreservesLength(t *testing.T) {
	rec := &Record{ReorderedTasks: []Entry{{ID: 1}, {ID: 3}, {ID: 42}, {ID: 1}}}
	got := Merge(threeTasks(), rec)
	if len(got) != 3 {
		t.Fatalf("output length must equal input length, got %d", len(got))
	}
}

func TestMergeEmptyInput(t *testing.T) {
	rec := &Record{ReorderedTasks: []Entry{{ID: 1}}}
	got := Merge(nil, rec)
	if len(got) != 0 {
		t.Fatalf("expected empty output, got %v", mergeIDs(got))
	}
}
