package taskstore

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the in-memory Task Store. It holds no persistence of its own;
// retention is governed purely by RetentionSeconds and MaxRetained, per the
// scheduler's opaque-result-store requirement.
type Store struct {
	mu               sync.Mutex
	tasks            map[string]*Task
	retentionSeconds int
	maxRetained      int
}

// NewStore builds a Store with the given retention policy. A
// retentionSeconds or maxRetained of zero disables that bound.
func NewStore(retentionSeconds, maxRetained int) *Store {
	return &Store{
		tasks:            make(map[string]*Task),
		retentionSeconds: retentionSeconds,
		maxRetained:      maxRetained,
	}
}

// Create assigns a fresh task_id, stores the task in status `queued` and
// returns the populated record.
func (s *Store) Create(principal string, priority Priority, prompt string, params Parameters) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &Task{
		TaskID:     uuid.NewString(),
		Principal:  principal,
		Priority:   priority,
		Prompt:     prompt,
		Parameters: params,
		Status:     StatusQueued,
		CreatedAt:  time.Now(),
	}
	s.tasks[t.TaskID] = t
	s.evictLocked()
	return t
}

// Get returns a copy of the task record for taskID.
func (s *Store) Get(taskID string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return Task{}, ErrNotFound
	}
	return *t, nil
}

// List returns the most recent limit tasks for principal (or all
// principals, if principal is empty), ordered by created_at descending. A
// limit of zero defaults to 100.
func (s *Store) List(principal string, limit int) []Task {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	matched := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if principal != "" && t.Principal != principal {
			continue
		}
		matched = append(matched, *t)
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// Transition moves a task from `from` to `to`, applying patch to the
// in-store record, only if the task's current status equals from. A
// mismatch returns ErrStaleTransition: per the Task Store's invariants this
// is a programmer error, not something a caller should ever see in normal
// operation.
func (s *Store) Transition(taskID string, from, to Status, patch func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	if t.Status != from {
		return ErrStaleTransition
	}
	t.Status = to
	if patch != nil {
		patch(t)
	}
	return nil
}

// Evict removes terminal tasks past their TTL and, if the store exceeds its
// retention cap, the oldest terminal tasks first. Non-terminal tasks are
// never evicted.
func (s *Store) Evict() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
}

func (s *Store) evictLocked() {
	now := time.Now()

	if s.retentionSeconds > 0 {
		cutoff := now.Add(-time.Duration(s.retentionSeconds) * time.Second)
		for id, t := range s.tasks {
			if isTerminal(t.Status) && t.CreatedAt.Before(cutoff) {
				delete(s.tasks, id)
			}
		}
	}

	if s.maxRetained <= 0 || len(s.tasks) <= s.maxRetained {
		return
	}

	terminal := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if isTerminal(t.Status) {
			terminal = append(terminal, t)
		}
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].CreatedAt.Before(terminal[j].CreatedAt)
	})

	excess := len(s.tasks) - s.maxRetained
	for _, t := range terminal {
		if excess <= 0 {
			break
		}
		delete(s.tasks, t.TaskID)
		excess--
	}
}

func isTerminal(status Status) bool {
	return status == StatusCompleted || status == StatusFailed
}
