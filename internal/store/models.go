package store

import (
	"database/sql"
	"time"
)

// RunLog is one recorded monitoring cycle.
type RunLog struct {
	ID                int64
	RunAt             time.Time
	Owner             string
	Name              string
	IssuesFound       int
	PRsFound          int
	NotificationsSent int
	ErrorMessage      sql.NullString
	DurationMs        sql.NullInt64
}

// RunEntry is what the caller records after a cycle.
type RunEntry struct {
	Owner             string
	Name              string
	IssuesFound       int
	PRsFound          int
	NotificationsSent int
	Err               error
	Duration          time.Duration
}

type BackoffState struct {
	ConsecutiveFailures int
	LastFailureTime     sql.NullTime
}
