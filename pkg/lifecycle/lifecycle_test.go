package lifecycle_test

import (
	"slices"
	"testing"
	"time"

	"github.com/SanjayB2005/TaskManagement/pkg/lifecycle"
	"github.com/SanjayB2005/TaskManagement/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func status(s models.TaskStatus) *models.TaskStatus {
	return &s
}

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

func TestApplyStatusChange(t *testing.T) {
	started := t0

	t.Run("NoStatusRequested", func(t *testing.T) {
		task := models.Task{Status: models.InProgressTaskStatus, StartedAt: &started, Duration: 4}
		tr := lifecycle.ApplyStatusChange(task, nil, at(30))
		assert.True(t, tr.Empty())
	})

	t.Run("EnterInProgressStampsStartedAt", func(t *testing.T) {
		for _, from := range []models.TaskStatus{models.ToDoTaskStatus, models.DoneTaskStatus, models.TimeoutTaskStatus} {
			task := models.Task{Status: from}
			tr := lifecycle.ApplyStatusChange(task, status(models.InProgressTaskStatus), at(5))
			require.NotNil(t, tr.StartedAt, "from %s", from)
			assert.Equal(t, at(5), *tr.StartedAt)
			assert.Equal(t, models.InProgressTaskStatus, *tr.Status)
			assert.Nil(t, tr.Duration)
		}
	})

	t.Run("ReEnterInProgressKeepsStartedAt", func(t *testing.T) {
		task := models.Task{Status: models.InProgressTaskStatus, StartedAt: &started}
		tr := lifecycle.ApplyStatusChange(task, status(models.InProgressTaskStatus), at(90))
		assert.Nil(t, tr.StartedAt)
		assert.Nil(t, tr.Duration)

		tr.Apply(&task)
		assert.Equal(t, t0, *task.StartedAt)
	})

	t.Run("DoneFinalizesDuration", func(t *testing.T) {
		task := models.Task{Status: models.InProgressTaskStatus, StartedAt: &started}
		now := t0.Add(125*time.Minute + 59*time.Second)
		tr := lifecycle.ApplyStatusChange(task, status(models.DoneTaskStatus), now)
		require.NotNil(t, tr.Duration)
		assert.Equal(t, 125, *tr.Duration)
		assert.Nil(t, tr.StartedAt)

		tr.Apply(&task)
		assert.Equal(t, models.DoneTaskStatus, task.Status)
		assert.Equal(t, t0, *task.StartedAt, "startedAt is retained")
	})

	t.Run("LeavingInProgressToToDoFinalizesDuration", func(t *testing.T) {
		task := models.Task{Status: models.InProgressTaskStatus, StartedAt: &started}
		tr := lifecycle.ApplyStatusChange(task, status(models.ToDoTaskStatus), at(12))
		require.NotNil(t, tr.Duration)
		assert.Equal(t, 12, *tr.Duration)
	})

	t.Run("LeavingInProgressWithoutStartedAtKeepsDuration", func(t *testing.T) {
		task := models.Task{Status: models.InProgressTaskStatus, Duration: 7}
		tr := lifecycle.ApplyStatusChange(task, status(models.DoneTaskStatus), at(60))
		assert.Nil(t, tr.Duration)
		tr.Apply(&task)
		assert.Equal(t, 7, task.Duration)
	})

	t.Run("DoneFromToDoKeepsDuration", func(t *testing.T) {
		task := models.Task{Status: models.ToDoTaskStatus, StartedAt: &started, Duration: 3}
		tr := lifecycle.ApplyStatusChange(task, status(models.DoneTaskStatus), at(60))
		assert.Nil(t, tr.Duration)
	})

	t.Run("UnknownStatusWritesNothing", func(t *testing.T) {
		task := models.Task{Status: models.ToDoTaskStatus}
		tr := lifecycle.ApplyStatusChange(task, status("Archived"), at(1))
		assert.True(t, tr.Empty())
	})

	t.Run("ClockSkewClampsToZero", func(t *testing.T) {
		future := at(10)
		task := models.Task{Status: models.InProgressTaskStatus, StartedAt: &future}
		tr := lifecycle.ApplyStatusChange(task, status(models.DoneTaskStatus), t0)
		require.NotNil(t, tr.Duration)
		assert.Equal(t, 0, *tr.Duration)
	})
}

func TestSweepTimeouts(t *testing.T) {
	started := t0
	legacy := models.Task{ID: "legacy", Status: models.InProgressTaskStatus}
	tasks := []models.Task{
		{ID: "a", Status: models.InProgressTaskStatus, StartedAt: &started},
		{ID: "done", Status: models.DoneTaskStatus, StartedAt: &started},
		legacy,
	}

	t.Run("ThresholdIsStrict", func(t *testing.T) {
		outcomes := slices.Collect(lifecycle.SweepTimeouts(tasks, 1440, at(1440)))
		require.Len(t, outcomes, 1)
		assert.Equal(t, lifecycle.Outcome{ID: "a", NewDuration: 1440, TimedOut: false}, outcomes[0])

		outcomes = slices.Collect(lifecycle.SweepTimeouts(tasks, 1440, at(1441)))
		require.Len(t, outcomes, 1)
		assert.Equal(t, lifecycle.Outcome{ID: "a", NewDuration: 1441, TimedOut: true}, outcomes[0])
		assert.Equal(t, models.TimeoutTaskStatus, outcomes[0].Status())
	})

	t.Run("LegacyRecordIsSkipped", func(t *testing.T) {
		var skipped []string
		outcomes := slices.Collect(lifecycle.SweepTimeouts(tasks, 0, at(5), lifecycle.OnSkip(func(task models.Task) {
			skipped = append(skipped, task.ID)
		})))
		assert.Equal(t, []string{"legacy"}, skipped)
		require.Len(t, outcomes, 1)
		assert.Equal(t, "a", outcomes[0].ID)
	})

	t.Run("Idempotent", func(t *testing.T) {
		first := slices.Collect(lifecycle.SweepTimeouts(tasks, 60, at(61)))
		second := slices.Collect(lifecycle.SweepTimeouts(tasks, 60, at(61)))
		assert.Equal(t, first, second)
	})

	t.Run("DurationIsMonotonicAcrossSweeps", func(t *testing.T) {
		last := -1
		for _, minute := range []int{0, 1, 30, 59, 600} {
			outcomes := slices.Collect(lifecycle.SweepTimeouts(tasks[:1], 1440, at(minute)))
			require.Len(t, outcomes, 1)
			assert.GreaterOrEqual(t, outcomes[0].NewDuration, last)
			last = outcomes[0].NewDuration
		}
	})

	t.Run("StopsWhenConsumerStops", func(t *testing.T) {
		many := []models.Task{
			{ID: "1", Status: models.InProgressTaskStatus, StartedAt: &started},
			{ID: "2", Status: models.InProgressTaskStatus, StartedAt: &started},
		}
		var seen []string
		for o := range lifecycle.SweepTimeouts(many, 0, at(1)) {
			seen = append(seen, o.ID)
			break
		}
		assert.Equal(t, []string{"1"}, seen)
	})
}

func TestSummary(t *testing.T) {
	s := lifecycle.NewSummary()
	s.Record(lifecycle.Outcome{ID: "a", TimedOut: true}, true)
	s.Record(lifecycle.Outcome{ID: "b", TimedOut: true}, false)
	s.Record(lifecycle.Outcome{ID: "c"}, true)

	assert.Equal(t, 3, s.Checked)
	assert.Equal(t, 1, s.TimedOut)
	assert.Equal(t, []string{"a"}, s.TaskIDs)

	empty := lifecycle.Summarize(lifecycle.SweepTimeouts(nil, 10, t0))
	assert.NotNil(t, empty.TaskIDs)
	assert.Equal(t, 0, empty.Checked)
}
