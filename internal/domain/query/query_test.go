package query

import (
	"reflect"
	"testing"
	"time"

	"github.com/avesafe/taskpilot/internal/domain/risk"
	"github.com/avesafe/taskpilot/internal/domain/task"
)

var today = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func annotated(id int64, title string, p task.Priority, confidence int) task.Task {
	return task.Task{
		ID: id, Title: title, Status: task.StatusActive,
		Annotation: &task.Annotation{Priority: p, Confidence: confidence, Reason: "r"},
	}
}

func ids(tasks []task.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestApplySearch(t *testing.T) {
	tasks := []task.Task{
		{ID: 42, Title: "Renew TLS certificate", Status: task.StatusActive},
		{ID: 7, Title: "Pay invoice", Description: "vendor certificate of insurance", Status: task.StatusActive},
		annotated(9, "Clean desk", task.PriorityCritical, 80),
	}

	cases := []struct {
		name   string
		search string
		want   []int64
	}{
		{"title match", "tls", []int64{42}},
		{"description match", "insurance", []int64{7}},
		{"priority label match", "critical", []int64{9}},
		{"id match", "42", []int64{42}},
		{"no match", "zzz", []int64{}},
		{"blank matches all", "  ", []int64{42, 9, 7}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Apply(tasks, Filter{Search: tc.search}, today)
			if !reflect.DeepEqual(ids(got), tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, ids(got))
			}
		})
	}
}

func TestApplyStatusFilter(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, Title: "a", Status: task.StatusActive},
		{ID: 2, Title: "b", Status: task.StatusCompleted},
	}

	got := Apply(tasks, Filter{Status: "completed"}, today)
	if !reflect.DeepEqual(ids(got), []int64{2}) {
		t.Fatalf("expected [2], got %v", ids(got))
	}

	got = Apply(tasks, Filter{Status: All}, today)
	if len(got) != 2 {
		t.Fatalf("all must match everything, got %v", ids(got))
	}
}

func TestApplyPriorityFilter(t *testing.T) {
	tasks := []task.Task{
		annotated(1, "a", task.PriorityHigh, 80),
		annotated(2, "b", task.PriorityLow, 60),
		{ID: 3, Title: "c", Status: task.StatusActive}, // unannotated
	}

	got := Apply(tasks, Filter{Priority: "High"}, today)
	if !reflect.DeepEqual(ids(got), []int64{1}) {
		t.Fatalf("expected [1], got %v", ids(got))
	}
}

func TestApplyRiskFilter(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, Title: "a", Deadline: "2025-06-14", Status: task.StatusActive}, // overdue
		{ID: 2, Title: "b", Deadline: "2025-06-16", Status: task.StatusActive}, // high urgency
		{ID: 3, Title: "c", Status: task.StatusActive},                         // no deadline
	}

	got := Apply(tasks, Filter{Risk: string(risk.CategoryOverdue)}, today)
	if !reflect.DeepEqual(ids(got), []int64{1}) {
		t.Fatalf("expected [1], got %v", ids(got))
	}

	// A task without a deadline never matches a specific risk filter.
	got = Apply(tasks, Filter{Risk: string(risk.CategoryNone)}, today)
	if len(got) != 0 {
		t.Fatalf("no-deadline tasks must not match, got %v", ids(got))
	}
}

func TestApplySortNewest(t *testing.T) {
	tasks := []task.Task{
		{ID: 5, Title: "a", Status: task.StatusActive},
		{ID: 20, Title: "b", Status: task.StatusActive},
		{ID: 11, Title: "c", Status: task.StatusActive},
	}
	got := Apply(tasks, Filter{}, today)
	if want := []int64{20, 11, 5}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
}

func TestApplySortDeadline(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, Title: "a", Status: task.StatusActive}, // no deadline, last
		{ID: 2, Title: "b", Deadline: "2025-07-01", Status: task.StatusActive},
		{ID: 3, Title: "c", Deadline: "2025-06-20", Status: task.StatusActive},
	}
	got := Apply(tasks, Filter{Sort: SortDeadline}, today)
	if want := []int64{3, 2, 1}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
}

func TestApplySortPriority(t *testing.T) {
	tasks := []task.Task{
		annotated(1, "a", task.PriorityLow, 60),
		{ID: 2, Title: "b", Status: task.StatusActive}, // unannotated ranks below Low
		annotated(3, "c", task.PriorityCritical, 90),
		annotated(4, "d", task.PriorityMedium, 70),
	}
	got := Apply(tasks, Filter{Sort: SortPriority}, today)
	if want := []int64{3, 4, 1, 2}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
}

func TestApplySortConfidence(t *testing.T) {
	tasks := []task.Task{
		annotated(1, "a", task.PriorityLow, 55),
		annotated(2, "b", task.PriorityLow, 95),
		{ID: 3, Title: "c", Status: task.StatusActive},
	}
	got := Apply(tasks, Filter{Sort: SortConfidence}, today)
	if want := []int64{2, 1, 3}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
}

func TestApplySortIsStable(t *testing.T) {
	tasks := []task.Task{
		annotated(1, "a", task.PriorityHigh, 80),
		annotated(2, "b", task.PriorityHigh, 80),
		annotated(3, "c", task.PriorityHigh, 80),
	}
	got := Apply(tasks, Filter{Sort: SortPriority}, today)
	if want := []int64{1, 2, 3}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("equal keys must keep input order, got %v", ids(got))
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, Title: "a", Status: task.StatusActive},
		{ID: 2, Title: "b", Status: task.StatusActive},
	}
	_ = Apply(tasks, Filter{Sort: SortNewest}, today)
	if tasks[0].ID != 1 || tasks[1].ID != 2 {
		t.Fatalf("input order mutated: %v", ids(tasks))
	}
}

func TestApplyCombinedFilters(t *testing.T) {
	tasks := []task.Task{
		annotated(1, "deploy service", task.PriorityHigh, 80),
		annotated(2, "deploy docs", task.PriorityLow, 60),
		{ID: 3, Title: "deploy infra", Status: task.StatusCompleted},
	}
	got := Apply(tasks, Filter{Search: "deploy", Status: "active", Priority: "High"}, today)
	if !reflect.DeepEqual(ids(got), []int64{1}) {
		t.Fatalf("expected [1], got %v", ids(got))
	}
}
