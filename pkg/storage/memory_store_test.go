package storage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SanjayB2005/TaskManagement/pkg/models"
	"github.com/SanjayB2005/TaskManagement/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(id, title string, status models.TaskStatus, createdAt time.Time) models.Task {
	return models.Task{
		ID:        id,
		Title:     title,
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("SaveAndGet", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.SaveTask(ctx, newTask("1", "Write report", models.ToDoTaskStatus, base)))

		got, err := store.GetTask(ctx, "1")
		assert.NoError(t, err)
		assert.Equal(t, "Write report", got.Title)

		err = store.SaveTask(ctx, newTask("1", "dup", models.ToDoTaskStatus, base))
		assert.Error(t, err)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		store := storage.NewMemoryStore()
		_, err := store.GetTask(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ListOrderAndFilters", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.SaveTask(ctx, newTask("b", "Second", models.InProgressTaskStatus, base.Add(time.Minute))))
		require.NoError(t, store.SaveTask(ctx, newTask("a", "First", models.ToDoTaskStatus, base)))
		third := newTask("c", "Third", models.ToDoTaskStatus, base.Add(2*time.Minute))
		third.Description = "Call the PLUMBER"
		require.NoError(t, store.SaveTask(ctx, third))

		all, err := store.ListTasks(ctx, storage.TaskFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

		inProgress := models.InProgressTaskStatus
		filtered, err := store.ListTasks(ctx, storage.TaskFilter{Status: &inProgress})
		require.NoError(t, err)
		require.Len(t, filtered, 1)
		assert.Equal(t, "b", filtered[0].ID)

		searched, err := store.ListTasks(ctx, storage.TaskFilter{Query: "plumber"})
		require.NoError(t, err)
		require.Len(t, searched, 1)
		assert.Equal(t, "c", searched[0].ID)
	})

	t.Run("EmptyListIsNotNil", func(t *testing.T) {
		store := storage.NewMemoryStore()
		tasks, err := store.ListTasks(ctx, storage.TaskFilter{})
		assert.NoError(t, err)
		assert.NotNil(t, tasks)
		assert.Empty(t, tasks)
	})

	t.Run("TransactionRollbackDiscardsWrites", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.SaveTask(ctx, newTask("1", "Original", models.ToDoTaskStatus, base)))

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		task, err := tx.GetTask(ctx, "1")
		require.NoError(t, err)
		task.Title = "Changed"
		require.NoError(t, tx.UpdateTask(ctx, task))
		require.NoError(t, tx.Rollback())

		got, err := store.GetTask(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "Original", got.Title)
		assert.Error(t, tx.Commit())
	})

	t.Run("TransactionCommitAppliesWrites", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.SaveTask(ctx, newTask("1", "Original", models.ToDoTaskStatus, base)))

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		task, err := tx.GetTask(ctx, "1")
		require.NoError(t, err)
		task.Title = "Changed"
		require.NoError(t, tx.UpdateTask(ctx, task))
		require.NoError(t, tx.Commit())

		got, err := store.GetTask(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "Changed", got.Title)
	})

	t.Run("TransactionsSerializeReadModifyWrite", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.SaveTask(ctx, newTask("1", "Counter", models.ToDoTaskStatus, base)))

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tx, err := store.Begin(ctx)
				if !assert.NoError(t, err) {
					return
				}
				task, _ := tx.GetTask(ctx, "1")
				task.Duration++
				assert.NoError(t, tx.UpdateTask(ctx, task))
				assert.NoError(t, tx.Commit())
			}()
		}
		wg.Wait()

		got, err := store.GetTask(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, 20, got.Duration)
	})

	t.Run("UpdateUnknown", func(t *testing.T) {
		store := storage.NewMemoryStore()
		err := store.UpdateTask(ctx, newTask("nope", "x", models.ToDoTaskStatus, base))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("UpdateTaskProgressOnlyWhileInProgress", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.SaveTask(ctx, newTask("p", "Busy", models.InProgressTaskStatus, base)))
		require.NoError(t, store.SaveTask(ctx, newTask("d", "Finished", models.DoneTaskStatus, base)))

		now := base.Add(time.Hour)
		require.NoError(t, store.UpdateTaskProgress(ctx, "p", 61, models.TimeoutTaskStatus, now))
		got, err := store.GetTask(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, 61, got.Duration)
		assert.Equal(t, models.TimeoutTaskStatus, got.Status)
		assert.Equal(t, now, got.UpdatedAt)

		err = store.UpdateTaskProgress(ctx, "d", 5, models.InProgressTaskStatus, now)
		assert.ErrorIs(t, err, storage.ErrStale)
		err = store.UpdateTaskProgress(ctx, "missing", 5, models.InProgressTaskStatus, now)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.SaveTask(ctx, newTask("1", "Gone soon", models.ToDoTaskStatus, base)))
		assert.NoError(t, store.DeleteTask(ctx, "1"))
		assert.NoError(t, store.DeleteTask(ctx, "1"))
		_, err := store.GetTask(ctx, "1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ReturnedTasksAreCopies", func(t *testing.T) {
		store := storage.NewMemoryStore()
		started := base
		task := newTask("1", "Copy", models.InProgressTaskStatus, base)
		task.StartedAt = &started
		require.NoError(t, store.SaveTask(ctx, task))

		got, err := store.GetTask(ctx, "1")
		require.NoError(t, err)
		*got.StartedAt = base.Add(time.Hour)

		again, err := store.GetTask(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, base, *again.StartedAt)
	})

	t.Run("ClosedStoreIsUnavailable", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.Close())
		assert.ErrorIs(t, store.Ping(ctx), storage.ErrUnavailable)
		_, err := store.ListTasks(ctx, storage.TaskFilter{})
		assert.ErrorIs(t, err, storage.ErrUnavailable)
	})
}
