// Package lifecycle holds the time and status bookkeeping for tasks. Every
// function here is pure: callers pass the current state and a clock reading
// and persist whatever comes back.
package lifecycle

import (
	"iter"
	"time"

	"github.com/SanjayB2005/TaskManagement/pkg/models"
)

// Transition is the set of fields a status change writes. Nil fields are not
// touched.
type Transition struct {
	Status    *models.TaskStatus
	StartedAt *time.Time
	Duration  *int
}

// Empty reports whether the transition changes nothing.
func (tr Transition) Empty() bool {
	return tr.Status == nil && tr.StartedAt == nil && tr.Duration == nil
}

// Apply writes the transition onto t.
func (tr Transition) Apply(t *models.Task) {
	if tr.Status != nil {
		t.Status = *tr.Status
	}
	if tr.StartedAt != nil {
		started := *tr.StartedAt
		t.StartedAt = &started
	}
	if tr.Duration != nil {
		t.Duration = *tr.Duration
	}
}

// ElapsedMinutes returns the whole minutes between start and now, floored.
// A start in the future counts as zero.
func ElapsedMinutes(start, now time.Time) int {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// ApplyStatusChange computes the fields to persist when task moves to
// requested at now. A nil requested status yields an empty transition.
//
// Entering On Progress stamps StartedAt unless the task is already there.
// Leaving On Progress with a recorded StartedAt finalizes Duration; StartedAt
// itself is kept for history.
func ApplyStatusChange(task models.Task, requested *models.TaskStatus, now time.Time) Transition {
	if requested == nil {
		return Transition{}
	}
	next := *requested
	wasInProgress := task.Status == models.InProgressTaskStatus

	switch next {
	case models.InProgressTaskStatus:
		tr := Transition{Status: &next}
		if !wasInProgress {
			started := now
			tr.StartedAt = &started
		}
		return tr
	case models.ToDoTaskStatus, models.DoneTaskStatus, models.TimeoutTaskStatus:
		tr := Transition{Status: &next}
		if wasInProgress && task.StartedAt != nil {
			d := ElapsedMinutes(*task.StartedAt, now)
			tr.Duration = &d
		}
		return tr
	default:
		// Not a board column: nothing is written, so an unknown value can
		// never reach storage through here.
		return Transition{}
	}
}

// Outcome is the sweep verdict for one task.
type Outcome struct {
	ID          string
	NewDuration int
	TimedOut    bool
}

// Status is the status the outcome persists.
func (o Outcome) Status() models.TaskStatus {
	if o.TimedOut {
		return models.TimeoutTaskStatus
	}
	return models.InProgressTaskStatus
}

// Summary is the result of a sweep as exposed over HTTP.
type Summary struct {
	Checked  int      `json:"checked" yaml:"checked"`
	TimedOut int      `json:"timedOut" yaml:"timedOut"`
	TaskIDs  []string `json:"taskIds" yaml:"taskIds"`
}

func NewSummary() Summary {
	return Summary{TaskIDs: []string{}}
}

// Record counts o as checked, and as timed out only if it was persisted.
func (s *Summary) Record(o Outcome, persisted bool) {
	s.Checked++
	if o.TimedOut && persisted {
		s.TimedOut++
		s.TaskIDs = append(s.TaskIDs, o.ID)
	}
}

// Summarize folds outcomes into a summary assuming every one was persisted.
func Summarize(outcomes iter.Seq[Outcome]) Summary {
	s := NewSummary()
	for o := range outcomes {
		s.Record(o, true)
	}
	return s
}

type sweepConfig struct {
	onSkip func(models.Task)
}

type SweepOption func(*sweepConfig)

// OnSkip registers a callback for On Progress tasks that have no StartedAt
// and therefore cannot be evaluated.
func OnSkip(fn func(models.Task)) SweepOption {
	return func(c *sweepConfig) {
		c.onSkip = fn
	}
}

// SweepTimeouts lazily evaluates every On Progress task in tasks against
// thresholdMinutes. Each outcome refreshes the duration; a task times out
// only when its elapsed minutes are strictly greater than the threshold.
// Tasks in other statuses are ignored.
func SweepTimeouts(tasks []models.Task, thresholdMinutes int, now time.Time, opts ...SweepOption) iter.Seq[Outcome] {
	cfg := sweepConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(yield func(Outcome) bool) {
		for _, t := range tasks {
			if t.Status != models.InProgressTaskStatus {
				continue
			}
			if t.StartedAt == nil {
				if cfg.onSkip != nil {
					cfg.onSkip(t)
				}
				continue
			}
			elapsed := ElapsedMinutes(*t.StartedAt, now)
			if !yield(Outcome{ID: t.ID, NewDuration: elapsed, TimedOut: elapsed > thresholdMinutes}) {
				return
			}
		}
	}
}
