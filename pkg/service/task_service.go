package service

import (
	"context"
	"strings"
	"time"

	"github.com/SanjayB2005/TaskManagement/pkg/lifecycle"
	"github.com/SanjayB2005/TaskManagement/pkg/models"
	"github.com/SanjayB2005/TaskManagement/pkg/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TaskService applies the task lifecycle on top of a Store. It is the only
// writer of StartedAt and of engine-derived durations.
type TaskService struct {
	store   storage.Store
	logger  Logger
	pool    *WorkerPool
	now     func() time.Time
	workers int
}

// NewTaskService starts a worker pool bound to ctx; call Close to stop it.
func NewTaskService(ctx context.Context, store storage.Store, logger Logger, opts ...Option) *TaskService {
	s := &TaskService{
		store:  store,
		logger: logger,
		now:    utcNow,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pool = NewWorkerPool(ctx, logger)
	s.pool.Start(s.workers)
	return s
}

// Close stops the worker pool. The store is owned by the caller.
func (s *TaskService) Close() {
	s.pool.Stop()
}

// Filter narrows ListTasks. Status is a wire value and may be empty.
type Filter struct {
	Status string
	Query  string
}

// Stats are the dashboard counters.
type Stats struct {
	Total     int `json:"total" yaml:"total"`
	Active    int `json:"active" yaml:"active"`
	Completed int `json:"completed" yaml:"completed"`
	TimedOut  int `json:"timedOut" yaml:"timedOut"`
	Expired   int `json:"expired" yaml:"expired"` // active with a deadline before today
}

// Health is the store connectivity probe result.
type Health struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (h Health) OK() bool {
	return h.Status == "ok"
}

func (s *TaskService) CreateTask(ctx context.Context, in models.NewTask) (models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Task{}, newValidationError("title", "Title is required")
	}

	status := models.ToDoTaskStatus
	if in.Status != "" {
		parsed, err := models.ParseTaskStatus(in.Status)
		if err != nil {
			return models.Task{}, newValidationError("status", "%v", err)
		}
		if parsed == models.TimeoutTaskStatus {
			return models.Task{}, newValidationError("status", "a new task cannot start in %q", parsed)
		}
		status = parsed
	}

	deadline, err := normalizeDeadline(in.Deadline)
	if err != nil {
		return models.Task{}, err
	}

	now := s.now()
	task := models.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Deadline:    deadline,
		Status:      models.ToDoTaskStatus,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// a task created On Progress is stamped as if it moved there from To Do
	lifecycle.ApplyStatusChange(task, &status, now).Apply(&task)

	if err := s.store.SaveTask(ctx, task); err != nil {
		s.logger.Errorf("Failed to save task %q: %v", title, err)
		return models.Task{}, errors.Wrap(err, "create task")
	}
	s.logger.Infof("Created task '%s' with ID %s", task.Title, task.ID)
	return task, nil
}

func (s *TaskService) ListTasks(ctx context.Context, filter Filter) ([]models.Task, error) {
	f := storage.TaskFilter{Query: filter.Query}
	if filter.Status != "" {
		status, err := models.ParseTaskStatus(filter.Status)
		if err != nil {
			return nil, newValidationError("status", "%v", err)
		}
		f.Status = &status
	}
	tasks, err := s.store.ListTasks(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list tasks")
	}
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (models.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, errors.Wrapf(err, "get task %s", id)
	}
	return task, nil
}

// UpdateTask applies patch to the task with the given id inside a single
// transaction. A status change goes through the lifecycle engine; its
// duration wins over a raw duration sent in the same patch.
func (s *TaskService) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (task models.Task, err error) {
	requested, err := validatePatch(&patch)
	if err != nil {
		return models.Task{}, err
	}

	txStore, err := s.store.Begin(ctx)
	if err != nil {
		s.logger.Errorf("Failed to begin transaction for UpdateTask: %v", err)
		return models.Task{}, errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			task, err = models.Task{}, errors.Wrap(commitErr, "commit")
		}
	}()

	current, err := txStore.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, errors.Wrapf(err, "update task %s", id)
	}

	now := s.now()
	task = current
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Deadline != nil {
		task.Deadline, _ = normalizeDeadline(patch.Deadline)
	}
	if patch.Duration != nil {
		task.Duration = *patch.Duration
	}
	transition := lifecycle.ApplyStatusChange(current, requested, now)
	transition.Apply(&task)
	task.UpdatedAt = now

	if err = txStore.UpdateTask(ctx, task); err != nil {
		s.logger.Errorf("Failed to update task %s: %v", id, err)
		return models.Task{}, errors.Wrapf(err, "update task %s", id)
	}
	if !transition.Empty() && current.Status != task.Status {
		s.logger.Infof("Task %s moved from '%s' to '%s'", id, current.Status, task.Status)
	}
	return task, nil
}

// DeleteTask removes a task. Unknown ids are not an error.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return errors.Wrapf(err, "delete task %s", id)
	}
	s.logger.Infof("Deleted task %s", id)
	return nil
}

type pendingOutcome struct {
	outcome lifecycle.Outcome
	result  <-chan error
}

// RunTimeoutSweep refreshes the duration of every On Progress task and moves
// the ones over thresholdMinutes to Timeout. Each task is persisted on its
// own; a failure is logged and left out of the timed-out count.
func (s *TaskService) RunTimeoutSweep(ctx context.Context, thresholdMinutes int) (lifecycle.Summary, error) {
	if thresholdMinutes < 0 {
		return lifecycle.Summary{}, newValidationError("maxDuration", "must not be negative, got %d", thresholdMinutes)
	}

	inProgress := models.InProgressTaskStatus
	tasks, err := s.store.ListTasks(ctx, storage.TaskFilter{Status: &inProgress})
	if err != nil {
		return lifecycle.Summary{}, errors.Wrap(err, "load tasks in progress")
	}

	now := s.now()
	skip := lifecycle.OnSkip(func(t models.Task) {
		s.logger.Warnf("Skipping task %s: status '%s' without a start time", t.ID, t.Status)
	})

	var pending []pendingOutcome
	for outcome := range lifecycle.SweepTimeouts(tasks, thresholdMinutes, now, skip) {
		o := outcome
		pending = append(pending, pendingOutcome{
			outcome: o,
			result: s.pool.Submit(ctx, func(ctx context.Context) error {
				return s.store.UpdateTaskProgress(ctx, o.ID, o.NewDuration, o.Status(), now)
			}),
		})
	}

	summary := lifecycle.NewSummary()
	var poolErr error
	for _, p := range pending {
		err := <-p.result
		if err != nil {
			if errors.Is(err, ErrPoolClosed) {
				poolErr = err
			} else if errors.Is(err, storage.ErrStale) || errors.Is(err, storage.ErrNotFound) {
				s.logger.Infof("Task %s changed during sweep, skipped: %v", p.outcome.ID, err)
			} else {
				s.logger.Errorf("Failed to persist sweep result for task %s: %v", p.outcome.ID, err)
			}
		} else if p.outcome.TimedOut {
			s.logger.Infof("Task %s timed out after %d minutes", p.outcome.ID, p.outcome.NewDuration)
		}
		summary.Record(p.outcome, err == nil)
	}
	if poolErr != nil {
		return summary, errors.Wrap(poolErr, "sweep interrupted")
	}
	return summary, nil
}

// PreviewTimeoutSweep evaluates On Progress tasks the way RunTimeoutSweep
// does but writes nothing.
func (s *TaskService) PreviewTimeoutSweep(ctx context.Context, thresholdMinutes int) (lifecycle.Summary, error) {
	if thresholdMinutes < 0 {
		return lifecycle.Summary{}, newValidationError("maxDuration", "must not be negative, got %d", thresholdMinutes)
	}
	inProgress := models.InProgressTaskStatus
	tasks, err := s.store.ListTasks(ctx, storage.TaskFilter{Status: &inProgress})
	if err != nil {
		return lifecycle.Summary{}, errors.Wrap(err, "load tasks in progress")
	}
	return lifecycle.Summarize(lifecycle.SweepTimeouts(tasks, thresholdMinutes, s.now())), nil
}

// Stats counts tasks per dashboard bucket as of now.
func (s *TaskService) Stats(ctx context.Context) (Stats, error) {
	tasks, err := s.store.ListTasks(ctx, storage.TaskFilter{})
	if err != nil {
		return Stats{}, errors.Wrap(err, "load tasks")
	}

	today := s.now().Format(models.DeadlineLayout)
	stats := Stats{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case models.DoneTaskStatus:
			stats.Completed++
		case models.TimeoutTaskStatus:
			stats.TimedOut++
		default:
			stats.Active++
			// deadlines are stored as YYYY-MM-DD, so string order is date order
			if t.Deadline != nil && *t.Deadline < today {
				stats.Expired++
			}
		}
	}
	return stats, nil
}

// Health pings the store.
func (s *TaskService) Health(ctx context.Context) Health {
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Errorf("Health check failed: %v", err)
		return Health{Status: "error", Database: "disconnected"}
	}
	return Health{Status: "ok", Database: "connected"}
}

// validatePatch checks every supplied field and returns the parsed status.
// An empty deadline clears it.
func validatePatch(patch *models.TaskPatch) (*models.TaskStatus, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, newValidationError("title", "Title cannot be empty")
		}
		patch.Title = &title
	}
	if patch.Duration != nil && *patch.Duration < 0 {
		return nil, newValidationError("duration", "must not be negative, got %d", *patch.Duration)
	}
	if _, err := normalizeDeadline(patch.Deadline); err != nil {
		return nil, err
	}
	if patch.Status == nil {
		return nil, nil
	}
	status, err := models.ParseTaskStatus(*patch.Status)
	if err != nil {
		return nil, newValidationError("status", "%v", err)
	}
	// only the timeout sweep moves a task to Timeout
	if status == models.TimeoutTaskStatus {
		return nil, newValidationError("status", "%q is set by the timeout sweep and cannot be requested", status)
	}
	return &status, nil
}

func normalizeDeadline(deadline *string) (*string, error) {
	if deadline == nil || strings.TrimSpace(*deadline) == "" {
		return nil, nil
	}
	d, err := models.ParseDeadline(*deadline)
	if err != nil {
		return nil, newValidationError("deadline", "%v", err)
	}
	return &d, nil
}
