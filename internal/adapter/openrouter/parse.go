package openrouter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/avesafe/taskpilot/internal/domain"
	"github.com/avesafe/taskpilot/internal/domain/overlay"
	"github.com/avesafe/taskpilot/internal/domain/task"
	"github.com/avesafe/taskpilot/internal/port/oracle"
)

// priorityFromLabel passes the oracle's suggestion through untouched; the
// engine's rule enforcement overrides it before anything is persisted.
func priorityFromLabel(s string) task.Priority {
	return task.Priority(strings.TrimSpace(s))
}

// extractJSON strips markdown fences and returns the first-'{' to
// last-'}' span of the content. A missing span is a hard parse failure.
func extractJSON(content string) (string, error) {
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("%w: no JSON object in response", domain.ErrParse)
	}
	return content[start : end+1], nil
}

// flexID tolerates oracle ids arriving as JSON numbers or strings.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Non-numeric id: keep zero so the engine drops the entry as
		// referencing an unknown task.
		*f = 0
		return nil
	}
	*f = flexID(n)
	return nil
}

type wireJudgment struct {
	ReorderedTasks []struct {
		ID         flexID `json:"id"`
		Priority   string `json:"priority"`
		Confidence int    `json:"confidence"`
		Reason     string `json:"reason"`
	} `json:"reorderedTasks"`
	Summary string `json:"summary"`
}

// parseJudgment decodes the classification response. The raw content is
// logged on failure for diagnosis but never surfaced to the caller.
func parseJudgment(content string) (*oracle.Judgment, error) {
	span, err := extractJSON(content)
	if err != nil {
		slog.Error("oracle classification unparsable", "raw", content)
		return nil, err
	}

	var wire wireJudgment
	if err := json.Unmarshal([]byte(span), &wire); err != nil {
		slog.Error("oracle classification unparsable", "raw", content, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	j := &oracle.Judgment{Summary: wire.Summary}
	for _, e := range wire.ReorderedTasks {
		j.Entries = append(j.Entries, overlay.Entry{
			ID:         int64(e.ID),
			Priority:   priorityFromLabel(e.Priority),
			Confidence: e.Confidence,
			Reason:     e.Reason,
		})
	}
	return j, nil
}

type wireDrafts struct {
	Tasks []struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Deadline    *string `json:"deadline"`
	} `json:"tasks"`
}

// parseDrafts decodes the extraction response.
func parseDrafts(content string) ([]oracle.Draft, error) {
	span, err := extractJSON(content)
	if err != nil {
		slog.Error("oracle extraction unparsable", "raw", content)
		return nil, err
	}

	var wire wireDrafts
	if err := json.Unmarshal([]byte(span), &wire); err != nil {
		slog.Error("oracle extraction unparsable", "raw", content, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	drafts := make([]oracle.Draft, 0, len(wire.Tasks))
	for _, t := range wire.Tasks {
		d := oracle.Draft{Title: t.Title, Description: t.Description}
		if t.Deadline != nil {
			d.Deadline = *t.Deadline
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}
