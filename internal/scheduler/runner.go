// Package scheduler runs monitoring cycles on a fixed interval, carrying the
// cross-cycle memory and a failure backoff through the store between cycles.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/naka-gawa/repo-monitor/internal/domain"
	"github.com/naka-gawa/repo-monitor/internal/store"
	"github.com/naka-gawa/repo-monitor/internal/usecase"
)

// Cycler runs one monitoring cycle. *usecase.Monitor satisfies it.
type Cycler interface {
	Run(ctx context.Context, state *domain.MonitorState) (*usecase.CycleResult, error)
}

// Store is the persistence the runner needs. *store.Database satisfies it.
type Store interface {
	LoadState(state *domain.MonitorState) error
	SaveState(state *domain.MonitorState) error
	LogRun(entry store.RunEntry) error
	GetBackoffState() (*store.BackoffState, error)
	SaveBackoffState(state *store.BackoffState) error
}

// Result describes one tick of the runner.
type Result struct {
	Cycle      *usecase.CycleResult
	Skipped    bool
	SkipReason string
}

type Runner struct {
	cycler   Cycler
	store    Store
	newState func() *domain.MonitorState
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time

	mu sync.Mutex
}

// NewRunner creates a Runner. newState must return a fresh state with configuration
// fields set; the stored memory is loaded into it before every cycle.
func NewRunner(cycler Cycler, s Store, newState func() *domain.MonitorState, interval time.Duration, logger *log.Logger) *Runner {
	return &Runner{
		cycler:   cycler,
		store:    s,
		newState: newState,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// RunOnce executes a single cycle unless the runner is inside a backoff window.
// Concurrent calls are serialized.
func (r *Runner) RunOnce(ctx context.Context) (*Result, error) {
	return r.runCycle(ctx, true)
}

// RunNow executes a single cycle regardless of the backoff window. Its outcome
// still updates the backoff state and the run log.
func (r *Runner) RunNow(ctx context.Context) (*Result, error) {
	return r.runCycle(ctx, false)
}

func (r *Runner) runCycle(ctx context.Context, honourBackoff bool) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	backoff, err := loadBackoffState(r.store)
	if err != nil {
		return nil, fmt.Errorf("loading backoff state: %w", err)
	}
	if remaining := backoff.Remaining(r.now()); honourBackoff && remaining > 0 {
		reason := fmt.Sprintf("in backoff, retry in %s", remaining.Round(time.Second))
		r.logger.Printf("Scheduler: skipping cycle, %s", reason)
		return &Result{Skipped: true, SkipReason: reason}, nil
	}

	state := r.newState()
	if err := r.store.LoadState(state); err != nil {
		return nil, fmt.Errorf("loading monitor state: %w", err)
	}

	start := r.now()
	cycle, cycleErr := r.cycler.Run(ctx, state)
	duration := r.now().Sub(start)

	if cycleErr != nil {
		backoff.RecordFailure(r.now())
		if err := saveBackoffState(r.store, backoff); err != nil {
			r.logger.Printf("Scheduler: failed to save backoff state: %v", err)
		}
		if err := r.store.LogRun(store.RunEntry{Owner: state.Owner, Name: state.Name, Err: cycleErr, Duration: duration}); err != nil {
			r.logger.Printf("Scheduler: failed to log run: %v", err)
		}
		return nil, cycleErr
	}

	if err := r.store.SaveState(cycle.State); err != nil {
		return nil, fmt.Errorf("saving monitor state: %w", err)
	}
	backoff.RecordSuccess()
	if err := saveBackoffState(r.store, backoff); err != nil {
		r.logger.Printf("Scheduler: failed to save backoff state: %v", err)
	}
	if err := r.store.LogRun(store.RunEntry{
		Owner:             state.Owner,
		Name:              state.Name,
		IssuesFound:       cycle.IssuesFetched,
		PRsFound:          cycle.PRsFetched,
		NotificationsSent: cycle.NotificationsSent,
		Duration:          duration,
	}); err != nil {
		r.logger.Printf("Scheduler: failed to log run: %v", err)
	}

	return &Result{Cycle: cycle}, nil
}

// Run executes a cycle immediately and then once per interval until ctx is done.
// Cycle errors are logged and do not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Printf("Scheduler: starting, interval %s", r.interval)
	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Println("Scheduler: stopped")
			return nil
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	res, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.Printf("Scheduler: cycle failed: %v", err)
		return
	}
	if res.Skipped {
		return
	}
	r.logger.Printf("Scheduler: cycle complete, %d stale issue(s), %d reportable pull request(s), %d notification(s) sent",
		res.Cycle.StaleIssues, res.Cycle.ReportablePRs, res.Cycle.NotificationsSent)
}
