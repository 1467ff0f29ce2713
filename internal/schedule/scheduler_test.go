package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
)

func noop(context.Context) error { return nil }

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestScheduler_ScheduleCron(t *testing.T) {
	t.Run("returns job id for valid cron", func(t *testing.T) {
		s := newScheduler(t)
		id, err := s.ScheduleCron(context.Background(), "docs", "0 */4 * * *", noop)
		require.NoError(t, err)
		require.NotEmpty(t, id)
	})

	t.Run("rejects invalid cron", func(t *testing.T) {
		s := newScheduler(t)
		_, err := s.ScheduleCron(context.Background(), "docs", "this is not a cron", noop)
		require.Error(t, err)
	})
}

func TestScheduler_ScheduleEvery(t *testing.T) {
	t.Run("returns job id for valid interval", func(t *testing.T) {
		s := newScheduler(t)
		id, err := s.ScheduleEvery(context.Background(), "docs", 10*time.Second, noop)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		s.Start()
		next, err := s.NextRun(id)
		require.NoError(t, err)
		require.True(t, next.After(time.Now()))
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		s := newScheduler(t)
		_, err := s.ScheduleEvery(context.Background(), "docs", 0, noop)
		require.Error(t, err)
		require.True(t, errors.HasCategory(err, errors.CategoryValidation))
	})
}

func TestScheduler_Schedule(t *testing.T) {
	s := newScheduler(t)
	_, err := s.Schedule(context.Background(), "docs", config.ScheduleConfig{}, noop)
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))

	_, err = s.Schedule(context.Background(), "docs", config.ScheduleConfig{Cron: "*/5 * * * *"}, noop)
	require.NoError(t, err)
}

func TestScheduler_RunsTask(t *testing.T) {
	s := newScheduler(t)
	var runs atomic.Int32
	_, err := s.ScheduleEvery(context.Background(), "docs", 20*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return errors.BuildError("fails but keeps scheduling").Build()
	})
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_NextRunUnknownJob(t *testing.T) {
	s := newScheduler(t)
	_, err := s.NextRun("not-a-uuid")
	require.Error(t, err)
	_, err = s.NextRun("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	require.Error(t, err)
}
