package service

import (
	"time"
)

// Logger defines the logging interface for TaskService
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// DefaultThresholdMinutes is the sweep threshold used when a caller does not
// supply one: one day.
const DefaultThresholdMinutes = 1440

type Option func(*TaskService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) {
		s.now = now
	}
}

// WithWorkers sets how many sweep outcomes are persisted in parallel.
// Zero or less means one per CPU.
func WithWorkers(n int) Option {
	return func(s *TaskService) {
		s.workers = n
	}
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
