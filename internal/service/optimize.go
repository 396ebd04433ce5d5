package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/avesafe/taskpilot/internal/adapter/otel"
	"github.com/avesafe/taskpilot/internal/domain"
	"github.com/avesafe/taskpilot/internal/domain/overlay"
	"github.com/avesafe/taskpilot/internal/domain/risk"
	"github.com/avesafe/taskpilot/internal/domain/session"
	"github.com/avesafe/taskpilot/internal/domain/task"
	"github.com/avesafe/taskpilot/internal/port/database"
	"github.com/avesafe/taskpilot/internal/port/messagequeue"
	"github.com/avesafe/taskpilot/internal/port/oracle"
)

// backfillConfidence is assigned to entries synthesized for tasks the
// oracle omitted. High because the value is rule-derived, not guessed.
const backfillConfidence = 90

// OptimizeService is the priority engine: it turns a set of active tasks
// into a priority overlay by consulting the oracle, then enforcing the
// deterministic urgency rules and repairing any omissions before anything
// is persisted.
type OptimizeService struct {
	oracle     oracle.Oracle
	store      database.Store
	overlay    *OverlayCache
	queue      messagequeue.Queue
	metrics    *otel.Metrics
	maxBatch   int
	titleLimit int
	now        func() time.Time

	mu   sync.Mutex
	busy map[string]struct{}
}

// NewOptimizeService creates an OptimizeService. maxBatch caps the number
// of active tasks submitted per pass; titleLimit truncates titles sent to
// the oracle.
func NewOptimizeService(orc oracle.Oracle, store database.Store, overlay *OverlayCache, queue messagequeue.Queue, maxBatch, titleLimit int) *OptimizeService {
	return &OptimizeService{
		oracle:     orc,
		store:      store,
		overlay:    overlay,
		queue:      queue,
		maxBatch:   maxBatch,
		titleLimit: titleLimit,
		now:        time.Now,
		busy:       make(map[string]struct{}),
	}
}

// SetMetrics attaches metric instruments. Optional.
func (s *OptimizeService) SetMetrics(m *otel.Metrics) {
	s.metrics = m
}

// Run optimizes a session's stored task collection and persists the
// resulting record. Only one pass per session may be in flight; a
// concurrent call gets domain.ErrBusy. Returns the stored record and the
// number of active tasks omitted by the batch cap.
func (s *OptimizeService) Run(ctx context.Context, key session.Key) (*overlay.Stored, int, error) {
	if !s.tryBegin(key) {
		return nil, 0, domain.ErrBusy
	}
	defer s.end(key)

	sess, err := s.store.GetSession(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, 0, fmt.Errorf("%w: no tasks to optimize", domain.ErrValidation)
		}
		return nil, 0, err
	}

	// An explicit re-optimize starts from a clean slate.
	if err := s.overlay.Invalidate(ctx, key); err != nil {
		return nil, 0, err
	}

	rec, omitted, err := s.Optimize(ctx, sess.Tasks)
	if err != nil {
		s.countFailure(ctx)
		return nil, 0, err
	}

	stored := &overlay.Stored{
		Record:      *rec,
		Fingerprint: overlay.Fingerprint(sess.Tasks),
		OptimizedAt: s.now().UTC(),
	}

	// The cache is written only now, after the record is complete and
	// validated; a failure at any earlier step leaves nothing behind.
	if err := s.overlay.Put(ctx, key, stored); err != nil {
		s.countFailure(ctx)
		return nil, 0, err
	}

	s.countSuccess(ctx)
	publishSessionEvent(ctx, s.queue, messagequeue.SubjectSessionOptimized, key, s.now())

	return stored, omitted, nil
}

// Optimize runs one stateless optimization pass over the given tasks.
// Returns the finished record and how many active tasks the batch cap
// excluded from this pass.
func (s *OptimizeService) Optimize(ctx context.Context, tasks []task.Task) (*overlay.Record, int, error) {
	active := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == task.StatusActive {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return nil, 0, fmt.Errorf("%w: no active tasks", domain.ErrValidation)
	}

	omitted := 0
	if len(active) > s.maxBatch {
		omitted = len(active) - s.maxBatch
		active = active[:s.maxBatch]
	}

	today := s.now().UTC()
	contexts := make([]oracle.TaskContext, 0, len(active))
	for _, t := range active {
		a := risk.Classify(t.Deadline, today)
		tc := oracle.TaskContext{
			ID:      t.ID,
			Title:   truncate(t.Title, s.titleLimit),
			Urgency: a.Category,
			Label:   a.Label,
		}
		if a.HasDeadline {
			days := a.DaysRemaining
			tc.DaysRemaining = &days
		}
		contexts = append(contexts, tc)
	}

	start := s.now()
	judgment, err := s.oracle.Classify(ctx, contexts)
	s.observeOracle(ctx, s.now().Sub(start))
	if err != nil {
		return nil, 0, err
	}

	rec := s.buildRecord(ctx, judgment, contexts)
	return rec, omitted, nil
}

// buildRecord applies the post-oracle pipeline: sanitize narrative text,
// override every priority with the rule-derived value, drop entries for
// ids that were never submitted, and backfill entries for ids the oracle
// omitted. The result contains every submitted id exactly once.
func (s *OptimizeService) buildRecord(ctx context.Context, j *oracle.Judgment, contexts []oracle.TaskContext) *overlay.Record {
	categories := make(map[int64]risk.Category, len(contexts))
	for _, c := range contexts {
		categories[c.ID] = c.Urgency
	}

	rec := &overlay.Record{
		ReorderedTasks: make([]overlay.Entry, 0, len(contexts)),
		Summary:        overlay.Sanitize(j.Summary),
	}

	seen := make(map[int64]bool, len(contexts))
	for _, e := range j.Entries {
		cat, ok := categories[e.ID]
		if !ok || seen[e.ID] {
			continue
		}
		rec.ReorderedTasks = append(rec.ReorderedTasks, overlay.Entry{
			ID:         e.ID,
			Priority:   risk.PriorityFor(cat),
			Confidence: e.Confidence,
			Reason:     overlay.Sanitize(e.Reason),
		})
		seen[e.ID] = true
	}

	for _, c := range contexts {
		if seen[c.ID] {
			continue
		}
		rec.ReorderedTasks = append(rec.ReorderedTasks, overlay.Entry{
			ID:         c.ID,
			Priority:   risk.PriorityFor(c.Urgency),
			Confidence: backfillConfidence,
			Reason:     risk.FallbackReason(c.Urgency),
		})
		s.countBackfill(ctx)
	}

	return rec
}

// Extract asks the oracle to pull tasks out of free text.
func (s *OptimizeService) Extract(ctx context.Context, text string) ([]oracle.Draft, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrValidation)
	}
	return s.oracle.Extract(ctx, text)
}

// tryBegin sets the per-session busy flag. Re-entrant optimization is a
// redundant oracle call at worst, never corruption, but rejecting it
// keeps the cost bounded.
func (s *OptimizeService) tryBegin(key session.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key.String()
	if _, inFlight := s.busy[k]; inFlight {
		return false
	}
	s.busy[k] = struct{}{}
	return true
}

func (s *OptimizeService) end(key session.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, key.String())
}

func (s *OptimizeService) countSuccess(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.OptimizationsRun.Add(ctx, 1)
	}
}

func (s *OptimizeService) countFailure(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.OptimizationsFailed.Add(ctx, 1)
	}
}

func (s *OptimizeService) countBackfill(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.EntriesBackfilled.Add(ctx, 1)
	}
}

func (s *OptimizeService) observeOracle(ctx context.Context, d time.Duration) {
	if s.metrics != nil {
		s.metrics.OracleDuration.Record(ctx, d.Seconds())
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
