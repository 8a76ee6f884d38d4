package scheduler

import (
	"database/sql"
	"math/rand"
	"time"

	"github.com/naka-gawa/repo-monitor/internal/store"
)

const (
	baseDelay = time.Minute
	maxDelay  = time.Hour
)

type BackoffState struct {
	ConsecutiveFailures int
	LastFailureTime     sql.NullTime
}

// GetDelay is the wait after the last failure: the base delay doubled per
// consecutive failure, capped, then scaled by up to +/-10%. The jitter is
// derived from the failure time, so it is stable for one failure.
func (b *BackoffState) GetDelay() time.Duration {
	if b.ConsecutiveFailures == 0 {
		return 0
	}

	delay := maxDelay
	if shift := b.ConsecutiveFailures - 1; shift < 7 {
		delay = min(baseDelay<<shift, maxDelay)
	}

	var seed int64
	if b.LastFailureTime.Valid {
		seed = b.LastFailureTime.Time.Unix()
	}
	factor := 1 + 0.1*(2*rand.New(rand.NewSource(seed)).Float64()-1)
	return time.Duration(float64(delay) * factor)
}

// Remaining reports how long the caller must still wait at now, or zero.
func (b *BackoffState) Remaining(now time.Time) time.Duration {
	if b.ConsecutiveFailures == 0 || !b.LastFailureTime.Valid {
		return 0
	}
	return max(b.GetDelay()-now.Sub(b.LastFailureTime.Time), 0)
}

func (b *BackoffState) RecordSuccess() {
	*b = BackoffState{}
}

// RecordFailure counts a failure at the given time. The time is kept at the
// second precision the store persists.
func (b *BackoffState) RecordFailure(at time.Time) {
	b.ConsecutiveFailures++
	b.LastFailureTime = sql.NullTime{Time: at.Truncate(time.Second), Valid: true}
}

func loadBackoffState(s Store) (*BackoffState, error) {
	dbState, err := s.GetBackoffState()
	if err != nil {
		return nil, err
	}
	return &BackoffState{
		ConsecutiveFailures: dbState.ConsecutiveFailures,
		LastFailureTime:     dbState.LastFailureTime,
	}, nil
}

func saveBackoffState(s Store, state *BackoffState) error {
	return s.SaveBackoffState(&store.BackoffState{
		ConsecutiveFailures: state.ConsecutiveFailures,
		LastFailureTime:     state.LastFailureTime,
	})
}
