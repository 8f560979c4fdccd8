package daemon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
)

func TestSchedulerRunsJob(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)

	var runs atomic.Int32
	id, err := s.ScheduleEvery("tick", 20*time.Millisecond, func(context.Context) { runs.Add(1) })
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestSchedulerRejectsNonPositiveInterval(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	for _, interval := range []time.Duration{0, -time.Second} {
		_, err := s.ScheduleEvery("bad", interval, func(context.Context) {})
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
	}
	assert.Empty(t, s.JobNames())
}

func TestSchedulerJobNames(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	_, err = s.ScheduleEvery(jobPruneEvents, time.Hour, func(context.Context) {})
	require.NoError(t, err)
	_, err = s.ScheduleEvery(jobRefreshPending, time.Minute, func(context.Context) {})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{jobPruneEvents, jobRefreshPending}, s.JobNames())
}

func TestSchedulerStopCancelsRunningJob(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)

	started := make(chan struct{})
	cancelled := make(chan struct{})
	var once atomic.Bool
	_, err = s.ScheduleEvery("blocking", 10*time.Millisecond, func(ctx context.Context) {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-ctx.Done()
		select {
		case <-cancelled:
		default:
			close(cancelled)
		}
	})
	require.NoError(t, err)

	s.Start()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}
	require.NoError(t, s.Stop())

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("job context was not cancelled")
	}
}
