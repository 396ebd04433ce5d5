// Package overlay holds the priority-overlay record, its content
// fingerprint, and the reconciliation merge.
package overlay

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/avesafe/taskpilot/internal/domain/task"
)

// Entry annotates a single task id within a record.
type Entry struct {
	ID         int64         `json:"id"`
	Priority   task.Priority `json:"priority"`
	Confidence int           `json:"confidence"`
	Reason     string        `json:"reason"`
}

// Record is one priority overlay: one entry per submitted task, no
// duplicates, plus an executive summary with markup stripped.
type Record struct {
	ReorderedTasks []Entry `json:"reorderedTasks"`
	Summary        string  `json:"summary"`
}

// Stored is a Record at rest, tied to the fingerprint of the task
// collection it was computed against.
type Stored struct {
	Record      Record    `json:"record"`
	Fingerprint string    `json:"fingerprint"`
	OptimizedAt time.Time `json:"optimized_at"`
}

// Stale reports whether the stored record no longer matches the given
// task collection. Absence of a record is reported separately by callers
// (never-optimized vs. outdated).
func (s *Stored) Stale(tasks []task.Task) bool {
	return s.Fingerprint != Fingerprint(tasks)
}

const fingerprintPrefixLen = 10

// Fingerprint computes a cheap, order-sensitive digest of the task
// collection: serialized length plus an encoded prefix. It is a staleness
// heuristic only. Collisions are possible and acceptable; the digest gives
// a change-detection hint, not an integrity guarantee.
func Fingerprint(tasks []task.Task) string {
	data, err := json.Marshal(tasks)
	if err != nil {
		// Task marshals from plain fields; this cannot fail in practice.
		return ""
	}
	n := fingerprintPrefixLen
	if len(data) < n {
		n = len(data)
	}
	return strconv.Itoa(len(data)) + base64.StdEncoding.EncodeToString(data[:n])
}

// Sanitize strips markup characters from oracle-provided text.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '*' || r == '`' {
			return -1
		}
		return r
	}, s)
}
