package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"taskmap-backend/core"
)

// MemoryStore holds task rows in memory with the same conditional-update
// semantics as the Postgres store. The single mutex makes every
// ConditionalUpdate an atomic compare-and-swap, which is what concurrent
// accept attempts race on.
type MemoryStore struct {
	mu     sync.RWMutex
	tasks  map[int64]core.Task
	nextID int64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[int64]core.Task), nextID: 1}
}

// Insert creates a task with status open and no worker.
func (s *MemoryStore) Insert(ctx context.Context, fields NewTask) (core.Task, error) {
	if err := validateNewTask(fields); err != nil {
		return core.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	task := core.Task{
		ID:           s.nextID,
		Title:        fields.Title,
		Description:  fields.Description,
		Reward:       fields.Reward,
		Location:     fields.Location,
		Category:     fields.Category,
		Deadline:     fields.Deadline,
		Contact:      fields.Contact,
		PosterEmail:  fields.PosterEmail,
		Latitude:     fields.Latitude,
		Longitude:    fields.Longitude,
		ImageURL:     fields.ImageURL,
		PosterWallet: core.NormalizeWallet(fields.PosterWallet),
		Status:       core.StatusOpen,
		CreatedAt:    time.Now().UTC(),
	}
	s.nextID++
	s.tasks[task.ID] = task
	return task, nil
}

// Get returns a task by id.
func (s *MemoryStore) Get(ctx context.Context, id int64) (core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return core.Task{}, ErrTaskNotFound
	}
	return t, nil
}

// ConditionalUpdate applies patch only if the stored row still satisfies
// guard, returning the post-update row on match and ErrNoMatch otherwise.
func (s *MemoryStore) ConditionalUpdate(ctx context.Context, id int64, guard TaskGuard, patch TaskPatch) (core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return core.Task{}, ErrTaskNotFound
	}
	if !matchesGuard(t, guard) {
		return core.Task{}, ErrNoMatch
	}
	applyPatch(&t, patch)
	s.tasks[id] = t
	return t, nil
}

// List returns tasks not in the excluded status set, newest first.
func (s *MemoryStore) List(ctx context.Context, excludeStatuses []string) ([]core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	excluded := make(map[string]struct{}, len(excludeStatuses))
	for _, st := range excludeStatuses {
		excluded[st] = struct{}{}
	}

	out := make([]core.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if _, skip := excluded[t.Status]; skip {
			continue
		}
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b core.Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return out, nil
}

// Close implements Store; nothing to close for memory.
func (s *MemoryStore) Close() {}
