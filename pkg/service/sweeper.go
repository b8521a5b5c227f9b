package service

import (
	"context"
	"time"

	"github.com/SanjayB2005/TaskManagement/pkg/lifecycle"
)

// SweepRunner is satisfied by *TaskService.
type SweepRunner interface {
	RunTimeoutSweep(ctx context.Context, thresholdMinutes int) (lifecycle.Summary, error)
}

// Sweeper runs the timeout sweep on a fixed interval so tasks time out even
// when no client is polling.
type Sweeper struct {
	runner    SweepRunner
	interval  time.Duration
	threshold int
	logger    Logger
}

func NewSweeper(runner SweepRunner, interval time.Duration, thresholdMinutes int, logger Logger) *Sweeper {
	return &Sweeper{
		runner:    runner,
		interval:  interval,
		threshold: thresholdMinutes,
		logger:    logger,
	}
}

// Run sweeps once right away, then every interval until ctx is done. A
// non-positive interval disables it.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Infof("Background timeout sweep disabled")
		return
	}
	s.logger.Infof("Running timeout sweep every %s with a threshold of %d minutes", s.interval, s.threshold)

	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	summary, err := s.runner.RunTimeoutSweep(ctx, s.threshold)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Errorf("Timeout sweep failed: %v", err)
		}
		return
	}
	if summary.TimedOut > 0 {
		s.logger.Infof("Timeout sweep checked %d tasks, %d timed out", summary.Checked, summary.TimedOut)
	}
}
