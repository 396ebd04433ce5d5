package service

import (
	"context"
	"time"

	"github.com/avesafe/taskpilot/internal/domain"
	"github.com/avesafe/taskpilot/internal/domain/overlay"
	"github.com/avesafe/taskpilot/internal/domain/session"
	"github.com/avesafe/taskpilot/internal/domain/task"
	"github.com/avesafe/taskpilot/internal/port/messagequeue"
	"github.com/avesafe/taskpilot/internal/port/oracle"
)

// mockStore implements database.Store in memory for testing.
type mockStore struct {
	sessions map[string]*session.Session
	records  map[string]*overlay.Stored

	conflicts  int  // force this many version conflicts before accepting
	corruptOpt bool // GetOptimization returns domain.ErrCacheCorrupt
	optDeletes int
}

func newMockStore() *mockStore {
	return &mockStore{
		sessions: make(map[string]*session.Session),
		records:  make(map[string]*overlay.Stored),
	}
}

func (m *mockStore) seed(key session.Key, tasks ...task.Task) {
	m.sessions[key.String()] = &session.Session{Key: key, Tasks: tasks, Version: 1}
}

func (m *mockStore) GetSession(_ context.Context, key session.Key) (*session.Session, error) {
	s, ok := m.sessions[key.String()]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	cp.Tasks = append([]task.Task(nil), s.Tasks...)
	return &cp, nil
}

func (m *mockStore) CreateSession(_ context.Context, s *session.Session) error {
	if _, ok := m.sessions[s.Key.String()]; ok {
		return domain.ErrConflict
	}
	cp := *s
	cp.Version = 1
	cp.Tasks = append([]task.Task(nil), s.Tasks...)
	m.sessions[s.Key.String()] = &cp
	s.Version = 1
	return nil
}

func (m *mockStore) UpdateSessionTasks(_ context.Context, key session.Key, tasks []task.Task, version int) error {
	if m.conflicts > 0 {
		m.conflicts--
		return domain.ErrConflict
	}
	s, ok := m.sessions[key.String()]
	if !ok {
		return domain.ErrNotFound
	}
	if s.Version != version {
		return domain.ErrConflict
	}
	s.Tasks = append([]task.Task(nil), tasks...)
	s.Version++
	return nil
}

func (m *mockStore) GetOptimization(_ context.Context, key session.Key) (*overlay.Stored, error) {
	if m.corruptOpt {
		return nil, domain.ErrCacheCorrupt
	}
	rec, ok := m.records[key.String()]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *mockStore) PutOptimization(_ context.Context, key session.Key, rec *overlay.Stored) error {
	cp := *rec
	m.records[key.String()] = &cp
	return nil
}

func (m *mockStore) DeleteOptimization(_ context.Context, key session.Key) error {
	if _, ok := m.records[key.String()]; ok {
		m.optDeletes++
	}
	delete(m.records, key.String())
	return nil
}

// mockQueue implements messagequeue.Queue for testing.
type mockQueue struct {
	published []struct {
		subject string
		data    []byte
	}
	publishErr error
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, struct {
		subject string
		data    []byte
	}{subject, data})
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *mockQueue) Close() error { return nil }

// mockOracle implements oracle.Oracle for testing.
type mockOracle struct {
	judgment    *oracle.Judgment
	classifyErr error
	gotContexts []oracle.TaskContext

	drafts     []oracle.Draft
	extractErr error
	gotText    string
}

func (o *mockOracle) Classify(_ context.Context, tasks []oracle.TaskContext) (*oracle.Judgment, error) {
	o.gotContexts = tasks
	if o.classifyErr != nil {
		return nil, o.classifyErr
	}
	if o.judgment != nil {
		return o.judgment, nil
	}
	// Default: echo every submitted id with a neutral verdict.
	j := &oracle.Judgment{Summary: "ok"}
	for _, t := range tasks {
		j.Entries = append(j.Entries, overlay.Entry{ID: t.ID, Priority: task.PriorityLow, Confidence: 50, Reason: "fine"})
	}
	return j, nil
}

func (o *mockOracle) Extract(_ context.Context, text string) ([]oracle.Draft, error) {
	o.gotText = text
	if o.extractErr != nil {
		return nil, o.extractErr
	}
	return o.drafts, nil
}

// mockCache implements cache.Cache in memory for testing.
type mockCache struct {
	data   map[string][]byte
	getErr error
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func storedRecord(ids ...int64) *overlay.Stored {
	rec := overlay.Record{Summary: "done"}
	for _, id := range ids {
		rec.ReorderedTasks = append(rec.ReorderedTasks, overlay.Entry{ID: id, Priority: task.PriorityLow, Confidence: 50, Reason: "fine"})
	}
	return &overlay.Stored{Record: rec, Fingerprint: "fp", OptimizedAt: fixedTime()}
}

func fixedTime() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func testKey() session.Key {
	return session.Key{Department: "engineering", SubDepartment: "platform"}
}
