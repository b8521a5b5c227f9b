package models

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

type TaskStatus string

const (
	ToDoTaskStatus       TaskStatus = "To Do"
	InProgressTaskStatus TaskStatus = "On Progress"
	DoneTaskStatus       TaskStatus = "Done"
	TimeoutTaskStatus    TaskStatus = "Timeout"
)

// TaskStatuses lists every board column in display order.
var TaskStatuses = []TaskStatus{ToDoTaskStatus, InProgressTaskStatus, DoneTaskStatus, TimeoutTaskStatus}

// ParseTaskStatus converts a wire value into a TaskStatus, rejecting anything
// outside the four board columns.
func ParseTaskStatus(s string) (TaskStatus, error) {
	for _, status := range TaskStatuses {
		if string(status) == s {
			return status, nil
		}
	}
	return "", errors.Errorf("unknown status %q; must be one of 'To Do', 'On Progress', 'Done', 'Timeout'", s)
}

// DeadlineLayout is the stored form of a task deadline.
const DeadlineLayout = "2006-01-02"

// ParseDeadline accepts a calendar date or an RFC 3339 timestamp and returns
// the normalized calendar date.
func ParseDeadline(s string) (string, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(DeadlineLayout, s); err == nil {
		return d.Format(DeadlineLayout), nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC().Format(DeadlineLayout), nil
	}
	return "", errors.Errorf("invalid deadline %q; expected YYYY-MM-DD", s)
}

// Task is a single card on the board.
type Task struct {
	ID          string     `json:"_id" db:"id" yaml:"id"`
	Title       string     `json:"title" db:"title" yaml:"title"`
	Description string     `json:"description" db:"description" yaml:"description,omitempty"`
	Deadline    *string    `json:"deadline,omitempty" db:"deadline" yaml:"deadline,omitempty"`
	Status      TaskStatus `json:"status" db:"status" yaml:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty" db:"started_at" yaml:"startedAt,omitempty"` // set on entry into On Progress
	Duration    int        `json:"duration" db:"duration" yaml:"duration"`                         // minutes spent On Progress
	CreatedAt   time.Time  `json:"createdAt" db:"created_at" yaml:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at" yaml:"updatedAt"`
}

// NewTask is the body of a create request.
type NewTask struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Deadline    *string `json:"deadline"`
	Status      string  `json:"status"`
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Deadline    *string `json:"deadline"`
	Status      *string `json:"status"`
	Duration    *int    `json:"duration"`
}
