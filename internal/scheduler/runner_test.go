package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/repo-monitor/internal/domain"
	"github.com/naka-gawa/repo-monitor/internal/store"
	"github.com/naka-gawa/repo-monitor/internal/usecase"
)

type cyclerFunc func(ctx context.Context, state *domain.MonitorState) (*usecase.CycleResult, error)

func (f cyclerFunc) Run(ctx context.Context, state *domain.MonitorState) (*usecase.CycleResult, error) {
	return f(ctx, state)
}

var errFetch = errors.New("fetch_data: repository data source unavailable")

func newTestStore(t *testing.T) *store.Database {
	t.Helper()
	database, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func freshState() *domain.MonitorState {
	return &domain.MonitorState{Owner: "octo", Name: "hello", ThresholdDays: 7, Recipients: []string{"ops@example.com"}}
}

// alertingCycler appends one issue alert per cycle, like a cycle that always finds stale issues.
func alertingCycler(calls *[]*domain.MonitorState, now time.Time) cyclerFunc {
	return func(_ context.Context, state *domain.MonitorState) (*usecase.CycleResult, error) {
		*calls = append(*calls, state.Clone())
		next := state.Clone()
		at := now.Add(time.Duration(len(*calls)) * time.Hour)
		next.SentNotifications = append(next.SentNotifications, domain.NotificationID(domain.NotificationIssueAlert, at))
		next.LastNotifiedAt = &at
		return &usecase.CycleResult{State: next, IssuesFetched: 2, StaleIssues: 1, NotificationsSent: 1}, nil
	}
}

func TestRunner_RunOnce_PersistsMemoryBetweenCycles(t *testing.T) {
	database := newTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var calls []*domain.MonitorState
	runner := NewRunner(alertingCycler(&calls, now), database, freshState, time.Hour, log.New(io.Discard, "", 0))

	res, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Cycle.NotificationsSent)

	_, err = runner.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].SentNotifications)
	assert.Equal(t, []string{"issue_alert_2025-06-01T13:00:00Z"}, calls[1].SentNotifications)
	require.NotNil(t, calls[1].LastNotifiedAt)

	stored := freshState()
	require.NoError(t, database.LoadState(stored))
	assert.Len(t, stored.SentNotifications, 2)

	last, err := database.GetLastRun("octo", "hello")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 2, last.IssuesFound)
	assert.Equal(t, 1, last.NotificationsSent)
	assert.False(t, last.ErrorMessage.Valid)
}

func TestRunner_RunOnce_FailureEntersBackoff(t *testing.T) {
	database := newTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var attempts int
	failing := cyclerFunc(func(context.Context, *domain.MonitorState) (*usecase.CycleResult, error) {
		attempts++
		return nil, errFetch
	})
	runner := NewRunner(failing, database, freshState, time.Hour, log.New(io.Discard, "", 0))
	runner.now = func() time.Time { return now }

	_, err := runner.RunOnce(context.Background())
	require.ErrorIs(t, err, errFetch)

	backoff, err := database.GetBackoffState()
	require.NoError(t, err)
	assert.Equal(t, 1, backoff.ConsecutiveFailures)

	last, err := database.GetLastRun("octo", "hello")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, errFetch.Error(), last.ErrorMessage.String)

	res, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Contains(t, res.SkipReason, "in backoff")
	assert.Equal(t, 1, attempts)

	// Once the window has passed the next cycle runs, and a success resets the counter.
	var calls []*domain.MonitorState
	runner.cycler = alertingCycler(&calls, now)
	runner.now = func() time.Time { return now.Add(2 * time.Hour) }

	res, err = runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Len(t, calls, 1)

	backoff, err = database.GetBackoffState()
	require.NoError(t, err)
	assert.Equal(t, 0, backoff.ConsecutiveFailures)
}

func TestRunner_RunOnce_FailureLeavesMemoryUntouched(t *testing.T) {
	database := newTestStore(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seed := freshState()
	seed.SentNotifications = []string{domain.NotificationID(domain.NotificationPRUpdate, at)}
	require.NoError(t, database.SaveState(seed))

	failing := cyclerFunc(func(context.Context, *domain.MonitorState) (*usecase.CycleResult, error) {
		return nil, errFetch
	})
	runner := NewRunner(failing, database, freshState, time.Hour, log.New(io.Discard, "", 0))

	_, err := runner.RunOnce(context.Background())
	require.Error(t, err)

	stored := freshState()
	require.NoError(t, database.LoadState(stored))
	assert.Equal(t, seed.SentNotifications, stored.SentNotifications)
}

func TestRunner_Run_StopsOnCancel(t *testing.T) {
	database := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var count atomic.Int32
	cycler := cyclerFunc(func(_ context.Context, state *domain.MonitorState) (*usecase.CycleResult, error) {
		if count.Add(1) == 3 {
			cancel()
		}
		return &usecase.CycleResult{State: state.Clone()}, nil
	})
	runner := NewRunner(cycler, database, freshState, 10*time.Millisecond, log.New(io.Discard, "", 0))

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
	assert.GreaterOrEqual(t, count.Load(), int32(3))
}

func TestRunner_RunNow_IgnoresBackoffWindow(t *testing.T) {
	database := newTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, database.SaveBackoffState(&store.BackoffState{
		ConsecutiveFailures: 3,
		LastFailureTime:     sql.NullTime{Time: now, Valid: true},
	}))

	var calls []*domain.MonitorState
	runner := NewRunner(alertingCycler(&calls, now), database, freshState, time.Hour, log.New(io.Discard, "", 0))
	runner.now = func() time.Time { return now.Add(time.Second) }

	res, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, calls)

	res, err = runner.RunNow(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	require.NotNil(t, res.Cycle)
	assert.Len(t, calls, 1)

	backoff, err := database.GetBackoffState()
	require.NoError(t, err)
	assert.Equal(t, 0, backoff.ConsecutiveFailures)
}

func TestRunner_RunNow_FailureStillRecorded(t *testing.T) {
	database := newTestStore(t)
	failing := cyclerFunc(func(context.Context, *domain.MonitorState) (*usecase.CycleResult, error) {
		return nil, errFetch
	})
	runner := NewRunner(failing, database, freshState, time.Hour, log.New(io.Discard, "", 0))

	for i := 0; i < 2; i++ {
		_, err := runner.RunNow(context.Background())
		require.ErrorIs(t, err, errFetch)
	}

	backoff, err := database.GetBackoffState()
	require.NoError(t, err)
	assert.Equal(t, 2, backoff.ConsecutiveFailures)
}
