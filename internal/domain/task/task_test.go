package task

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/avesafe/taskpilot/internal/domain"
)

func TestStatusValid(t *testing.T) {
	if !StatusActive.Valid() || !StatusCompleted.Valid() {
		t.Fatal("known statuses must be valid")
	}
	if Status("archived").Valid() {
		t.Fatal("unknown status must be invalid")
	}
}

func TestPriorityRank(t *testing.T) {
	cases := []struct {
		p    Priority
		want int
	}{
		{PriorityCritical, 4},
		{PriorityHigh, 3},
		{PriorityMedium, 2},
		{PriorityLow, 1},
		{Priority("Urgent"), 0},
		{Priority(""), 0},
	}
	for _, tc := range cases {
		if got := tc.p.Rank(); got != tc.want {
			t.Fatalf("%q: expected rank %d, got %d", tc.p, tc.want, got)
		}
	}
}

func TestCompleteAndRestore(t *testing.T) {
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	tk := Task{ID: 1, Title: "a", Status: StatusActive,
		Annotation: &Annotation{Priority: PriorityHigh, Confidence: 80, Reason: "soon"}}

	tk.Complete(at)
	if tk.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q", tk.Status)
	}
	if tk.CompletedAt == nil || !tk.CompletedAt.Equal(at) {
		t.Fatalf("expected completion stamp %v, got %v", at, tk.CompletedAt)
	}

	tk.Restore()
	if tk.Status != StatusActive {
		t.Fatalf("expected active, got %q", tk.Status)
	}
	if tk.CompletedAt != nil {
		t.Fatal("restore must clear the completion stamp")
	}
	if tk.Annotation == nil || tk.Annotation.Priority != PriorityHigh {
		t.Fatal("restore must not touch the annotation")
	}
}

func TestAnnotationHelpers(t *testing.T) {
	bare := Task{ID: 1}
	if bare.Annotated() || bare.PriorityRank() != 0 || bare.ConfidenceOrZero() != 0 {
		t.Fatal("unannotated task must report zero values")
	}

	full := Task{ID: 2, Annotation: &Annotation{Priority: PriorityMedium, Confidence: 75}}
	if !full.Annotated() || full.PriorityRank() != 2 || full.ConfidenceOrZero() != 75 {
		t.Fatalf("annotated helpers wrong: %+v", full)
	}
}

func TestCreateRequestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     CreateRequest
		wantErr string
	}{
		{"valid", CreateRequest{Title: "Ship it", Deadline: "2025-07-01"}, ""},
		{"valid without deadline", CreateRequest{Title: "Ship it"}, ""},
		{"missing title", CreateRequest{}, "title is required"},
		{"title too long", CreateRequest{Title: strings.Repeat("x", 501)}, "title is too long"},
		{"description too long", CreateRequest{Title: "ok", Description: strings.Repeat("x", 5001)}, "description is too long"},
		{"bad deadline format", CreateRequest{Title: "ok", Deadline: "01/07/2025"}, "deadline must be YYYY-MM-DD"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected message containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}
