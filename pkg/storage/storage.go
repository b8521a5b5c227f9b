package storage

import (
	"context"
	"time"

	"github.com/SanjayB2005/TaskManagement/pkg/models"
	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("task not found")
	// ErrUnavailable marks connectivity failures against the backing store.
	ErrUnavailable = errors.New("store unavailable")
	// ErrStale is returned by UpdateTaskProgress when the task left On Progress
	// after it was read.
	ErrStale = errors.New("task is no longer in progress")
)

// TaskFilter narrows ListTasks. The zero value lists everything.
type TaskFilter struct {
	Status *models.TaskStatus
	Query  string // case-insensitive substring of title or description
}

// Store defines the storage operations for tasks.
//
// Begin returns a Store bound to a transaction; GetTask on that Store holds
// the row until Commit or Rollback, which gives callers an atomic
// read-modify-write per task.
type Store interface {
	Begin(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error
	Close() error
	Ping(ctx context.Context) error

	SaveTask(ctx context.Context, t models.Task) error
	GetTask(ctx context.Context, id string) (models.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error)
	UpdateTask(ctx context.Context, t models.Task) error
	// UpdateTaskProgress writes a sweep result, but only while the task is
	// still On Progress.
	UpdateTaskProgress(ctx context.Context, id string, duration int, status models.TaskStatus, updatedAt time.Time) error
	DeleteTask(ctx context.Context, id string) error
}
