package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SanjayB2005/TaskManagement/pkg/models"
	"github.com/pkg/errors"
)

// memoryStore implements Store with an in-process map. A transaction holds
// the store lock from Begin until Commit or Rollback.
type memoryStore struct {
	mu     sync.Mutex
	tasks  map[string]models.Task
	closed bool
}

// memoryTx stages writes until Commit. A nil entry in pending is a delete.
type memoryTx struct {
	store   *memoryStore
	pending map[string]*models.Task
	done    bool
}

func NewMemoryStore() Store {
	return &memoryStore{tasks: make(map[string]models.Task)}
}

func (m *memoryStore) Begin(ctx context.Context) (Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.Wrap(ErrUnavailable, "memory store closed")
	}
	return &memoryTx{store: m, pending: make(map[string]*models.Task)}, nil
}

func (m *memoryStore) Commit() error {
	return errors.New("cannot commit: not a transaction")
}

func (m *memoryStore) Rollback() error {
	return errors.New("cannot rollback: not a transaction")
}

func (m *memoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memoryStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.Wrap(ErrUnavailable, "memory store closed")
	}
	return nil
}

// do runs fn in its own transaction.
func (m *memoryStore) do(ctx context.Context, fn func(tx Store) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (m *memoryStore) SaveTask(ctx context.Context, t models.Task) error {
	return m.do(ctx, func(tx Store) error { return tx.SaveTask(ctx, t) })
}

func (m *memoryStore) GetTask(ctx context.Context, id string) (task models.Task, err error) {
	err = m.do(ctx, func(tx Store) error {
		task, err = tx.GetTask(ctx, id)
		return err
	})
	return task, err
}

func (m *memoryStore) ListTasks(ctx context.Context, filter TaskFilter) (tasks []models.Task, err error) {
	err = m.do(ctx, func(tx Store) error {
		tasks, err = tx.ListTasks(ctx, filter)
		return err
	})
	return tasks, err
}

func (m *memoryStore) UpdateTask(ctx context.Context, t models.Task) error {
	return m.do(ctx, func(tx Store) error { return tx.UpdateTask(ctx, t) })
}

func (m *memoryStore) UpdateTaskProgress(ctx context.Context, id string, duration int, status models.TaskStatus, updatedAt time.Time) error {
	return m.do(ctx, func(tx Store) error { return tx.UpdateTaskProgress(ctx, id, duration, status, updatedAt) })
}

func (m *memoryStore) DeleteTask(ctx context.Context, id string) error {
	return m.do(ctx, func(tx Store) error { return tx.DeleteTask(ctx, id) })
}

func (tx *memoryTx) Begin(ctx context.Context) (Store, error) {
	return nil, errors.New("cannot begin: already in a transaction")
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	for id, t := range tx.pending {
		if t == nil {
			delete(tx.store.tasks, id)
			continue
		}
		tx.store.tasks[id] = *t
	}
	tx.finish()
	return nil
}

func (tx *memoryTx) Rollback() error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	tx.finish()
	return nil
}

func (tx *memoryTx) finish() {
	tx.done = true
	tx.pending = nil
	tx.store.mu.Unlock()
}

// Close is a no-op inside a transaction.
func (tx *memoryTx) Close() error {
	return nil
}

func (tx *memoryTx) Ping(ctx context.Context) error {
	return nil
}

func (tx *memoryTx) lookup(id string) (models.Task, bool) {
	if t, ok := tx.pending[id]; ok {
		if t == nil {
			return models.Task{}, false
		}
		return *t, true
	}
	t, ok := tx.store.tasks[id]
	return t, ok
}

func (tx *memoryTx) stage(t models.Task) {
	c := cloneTask(t)
	tx.pending[t.ID] = &c
}

func (tx *memoryTx) SaveTask(ctx context.Context, t models.Task) error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	if _, exists := tx.lookup(t.ID); exists {
		return errors.Errorf("task %s already exists", t.ID)
	}
	tx.stage(t)
	return nil
}

func (tx *memoryTx) GetTask(ctx context.Context, id string) (models.Task, error) {
	t, ok := tx.lookup(id)
	if !ok {
		return models.Task{}, ErrNotFound
	}
	return cloneTask(t), nil
}

func (tx *memoryTx) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	ids := make(map[string]struct{}, len(tx.store.tasks)+len(tx.pending))
	for id := range tx.store.tasks {
		ids[id] = struct{}{}
	}
	for id := range tx.pending {
		ids[id] = struct{}{}
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	tasks := []models.Task{}
	for id := range ids {
		t, ok := tx.lookup(id)
		if !ok {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(t.Title), query) &&
			!strings.Contains(strings.ToLower(t.Description), query) {
			continue
		}
		tasks = append(tasks, cloneTask(t))
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (tx *memoryTx) UpdateTask(ctx context.Context, t models.Task) error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	if _, ok := tx.lookup(t.ID); !ok {
		return ErrNotFound
	}
	tx.stage(t)
	return nil
}

func (tx *memoryTx) UpdateTaskProgress(ctx context.Context, id string, duration int, status models.TaskStatus, updatedAt time.Time) error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	t, ok := tx.lookup(id)
	if !ok {
		return ErrNotFound
	}
	if t.Status != models.InProgressTaskStatus {
		return ErrStale
	}
	t.Duration = duration
	t.Status = status
	t.UpdatedAt = updatedAt
	tx.stage(t)
	return nil
}

func (tx *memoryTx) DeleteTask(ctx context.Context, id string) error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	tx.pending[id] = nil
	return nil
}

func cloneTask(t models.Task) models.Task {
	if t.StartedAt != nil {
		started := *t.StartedAt
		t.StartedAt = &started
	}
	if t.Deadline != nil {
		deadline := *t.Deadline
		t.Deadline = &deadline
	}
	return t
}
