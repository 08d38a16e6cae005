package scheduler

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func noopJob(ctx context.Context) error { return nil }

func TestSchedulerLifecycle(t *testing.T) {
	s := NewScheduler(testLogger())

	require.NoError(t, s.ScheduleRefresh("0 7 * * SAT,SUN", "weekend-refresh", noopJob))
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.False(t, s.GetNextRun().IsZero())

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestSchedulerRejectsStartWithoutJobs(t *testing.T) {
	s := NewScheduler(testLogger())
	assert.Error(t, s.Start())
}

func TestSchedulerRejectsScheduleWhileRunning(t *testing.T) {
	s := NewScheduler(testLogger())
	require.NoError(t, s.ScheduleRefresh("@every 1h", "a", noopJob))
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Error(t, s.ScheduleRefresh("@every 1h", "b", noopJob))
}

func TestSchedulerRejectsBadCron(t *testing.T) {
	s := NewScheduler(testLogger())
	assert.Error(t, s.ScheduleRefresh("not a cron", "bad", noopJob))
}

func TestSchedulerStopTwice(t *testing.T) {
	s := NewScheduler(testLogger())
	require.NoError(t, s.ScheduleRefresh("@every 1h", "a", noopJob))
	require.NoError(t, s.Start())

	require.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
}
