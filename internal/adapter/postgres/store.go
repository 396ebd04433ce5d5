package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avesafe/taskpilot/internal/domain"
	"github.com/avesafe/taskpilot/internal/domain/overlay"
	"github.com/avesafe/taskpilot/internal/domain/session"
	"github.com/avesafe/taskpilot/internal/domain/task"
)

// Store implements the database.Store port backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store over the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// GetSession returns the session for key, or domain.ErrNotFound.
func (s *Store) GetSession(ctx context.Context, key session.Key) (*session.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT department, sub_department, tasks, version, created_at, updated_at
		FROM sessions WHERE session_key = $1`, key.String())

	var (
		sess      session.Session
		tasksJSON []byte
	)
	err := row.Scan(&sess.Key.Department, &sess.Key.SubDepartment, &tasksJSON,
		&sess.Version, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", key, err)
	}

	if err := json.Unmarshal(tasksJSON, &sess.Tasks); err != nil {
		return nil, fmt.Errorf("decode tasks for %s: %w", key, err)
	}
	return &sess, nil
}

// CreateSession inserts a new session with version 1.
func (s *Store) CreateSession(ctx context.Context, sess *session.Session) error {
	if sess.Tasks == nil {
		sess.Tasks = []task.Task{}
	}
	tasksJSON, err := json.Marshal(sess.Tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}

	now := time.Now().UTC()
	sess.Version = 1
	sess.CreatedAt = now
	sess.UpdatedAt = now

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (session_key, department, sub_department, tasks, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sess.Key.String(), sess.Key.Department, sess.Key.SubDepartment,
		tasksJSON, sess.Version, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create session %s: %w", sess.Key, err)
	}
	return nil
}

// UpdateSessionTasks replaces the task collection if version matches,
// bumping the stamp. A mismatch returns domain.ErrConflict.
func (s *Store) UpdateSessionTasks(ctx context.Context, key session.Key, tasks []task.Task, version int) error {
	if tasks == nil {
		tasks = []task.Task{}
	}
	tasksJSON, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET tasks = $1, version = version + 1, updated_at = $2
		WHERE session_key = $3 AND version = $4`,
		tasksJSON, time.Now().UTC(), key.String(), version)
	if err != nil {
		return fmt.Errorf("update session %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// GetOptimization returns the stored record for key. A record whose JSON
// no longer parses comes back as domain.ErrCacheCorrupt so callers can
// discard it and continue.
func (s *Store) GetOptimization(ctx context.Context, key session.Key) (*overlay.Stored, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT record, fingerprint, optimized_at
		FROM optimizations WHERE session_key = $1`, key.String())

	var (
		recordJSON []byte
		stored     overlay.Stored
	)
	err := row.Scan(&recordJSON, &stored.Fingerprint, &stored.OptimizedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get optimization %s: %w", key, err)
	}

	if err := json.Unmarshal(recordJSON, &stored.Record); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrCacheCorrupt, key)
	}
	return &stored, nil
}

// PutOptimization atomically creates or replaces the record for key.
func (s *Store) PutOptimization(ctx context.Context, key session.Key, rec *overlay.Stored) error {
	recordJSON, err := json.Marshal(rec.Record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO optimizations (session_key, record, fingerprint, optimized_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_key) DO UPDATE
		SET record = EXCLUDED.record,
		    fingerprint = EXCLUDED.fingerprint,
		    optimized_at = EXCLUDED.optimized_at`,
		key.String(), recordJSON, rec.Fingerprint, rec.OptimizedAt)
	if err != nil {
		return fmt.Errorf("put optimization %s: %w", key, err)
	}
	return nil
}

// DeleteOptimization removes the record for key, if any.
func (s *Store) DeleteOptimization(ctx context.Context, key session.Key) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM optimizations WHERE session_key = $1`, key.String())
	if err != nil {
		return fmt.Errorf("delete optimization %s: %w", key, err)
	}
	return nil
}
