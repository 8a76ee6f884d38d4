// Package store persists the monitor's cross-cycle memory, run history and
// backoff state in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/naka-gawa/repo-monitor/internal/domain"
)

type Database struct {
	conn *sql.DB
	path string
}

func Open(path string) (*Database, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &Database{
		conn: conn,
		path: path,
	}

	if err := InitSchema(db); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

func (db *Database) Close() error {
	return db.conn.Close()
}

// LoadState copies the stored cross-cycle memory for state's repository into state.
// A repository with no stored memory leaves state untouched.
func (db *Database) LoadState(state *domain.MonitorState) error {
	var lastNotifiedAt sql.NullString
	err := db.conn.QueryRow(`
		SELECT last_notified_at FROM monitor_state WHERE owner = ? AND name = ?`,
		state.Owner, state.Name).Scan(&lastNotifiedAt)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("loading monitor state: %w", err)
	}
	if lastNotifiedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastNotifiedAt.String)
		if err != nil {
			return fmt.Errorf("parsing last_notified_at: %w", err)
		}
		state.LastNotifiedAt = &t
	}

	rows, err := db.conn.Query(`
		SELECT notification_id FROM sent_notifications
		WHERE owner = ? AND name = ? ORDER BY id`, state.Owner, state.Name)
	if err != nil {
		return fmt.Errorf("querying sent notifications: %w", err)
	}
	defer rows.Close()

	var sent []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scanning sent notification: %w", err)
		}
		sent = append(sent, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating sent notifications: %w", err)
	}
	state.SentNotifications = sent
	return nil
}

// SaveState stores LastNotifiedAt and appends notification ids not yet stored.
func (db *Database) SaveState(state *domain.MonitorState) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var lastNotifiedAt sql.NullString
	if state.LastNotifiedAt != nil {
		lastNotifiedAt = sql.NullString{String: state.LastNotifiedAt.Format(time.RFC3339Nano), Valid: true}
	}
	_, err = tx.Exec(`
		INSERT INTO monitor_state (owner, name, last_notified_at)
		VALUES (?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET
		    last_notified_at = excluded.last_notified_at`,
		state.Owner, state.Name, lastNotifiedAt)
	if err != nil {
		return fmt.Errorf("upserting monitor state: %w", err)
	}

	recordedAt := time.Now().Format(time.RFC3339)
	for _, id := range state.SentNotifications {
		_, err := tx.Exec(`
			INSERT INTO sent_notifications (owner, name, notification_id, recorded_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(owner, name, notification_id) DO NOTHING`,
			state.Owner, state.Name, id, recordedAt)
		if err != nil {
			return fmt.Errorf("recording notification %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing monitor state: %w", err)
	}
	return nil
}

func (db *Database) LogRun(entry RunEntry) error {
	var errMsg sql.NullString
	if entry.Err != nil {
		errMsg = sql.NullString{String: entry.Err.Error(), Valid: true}
	}

	_, err := db.conn.Exec(`
		INSERT INTO run_log (run_at, owner, name, issues_found, prs_found, notifications_sent, error_message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().Format(time.RFC3339), entry.Owner, entry.Name, entry.IssuesFound, entry.PRsFound,
		entry.NotificationsSent, errMsg, entry.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("logging run: %w", err)
	}
	return nil
}

// GetLastRun returns the most recent run for a repository, or nil when none exists.
func (db *Database) GetLastRun(owner, name string) (*RunLog, error) {
	row := db.conn.QueryRow(`
		SELECT id, run_at, owner, name, issues_found, prs_found, notifications_sent, error_message, duration_ms
		FROM run_log WHERE owner = ? AND name = ? ORDER BY id DESC LIMIT 1`, owner, name)

	var log RunLog
	var runAt string

	err := row.Scan(
		&log.ID, &runAt, &log.Owner, &log.Name, &log.IssuesFound, &log.PRsFound,
		&log.NotificationsSent, &log.ErrorMessage, &log.DurationMs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run log: %w", err)
	}

	log.RunAt, _ = time.Parse(time.RFC3339, runAt)
	return &log, nil
}

func (db *Database) GetBackoffState() (*BackoffState, error) {
	row := db.conn.QueryRow(`
		SELECT consecutive_failures, last_failure_time
		FROM backoff_state WHERE id = 1`)

	var state BackoffState
	var lastFailureTime sql.NullString

	err := row.Scan(&state.ConsecutiveFailures, &lastFailureTime)
	if err == sql.ErrNoRows {
		return &BackoffState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading backoff state: %w", err)
	}

	if lastFailureTime.Valid {
		t, _ := time.Parse(time.RFC3339, lastFailureTime.String)
		state.LastFailureTime = sql.NullTime{Time: t, Valid: true}
	}

	return &state, nil
}

func (db *Database) SaveBackoffState(state *BackoffState) error {
	var lastFailureTime sql.NullString
	if state.LastFailureTime.Valid {
		lastFailureTime = sql.NullString{
			String: state.LastFailureTime.Time.Format(time.RFC3339),
			Valid:  true,
		}
	}

	_, err := db.conn.Exec(`
		INSERT INTO backoff_state (id, consecutive_failures, last_failure_time)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    consecutive_failures = excluded.consecutive_failures,
		    last_failure_time = excluded.last_failure_time`,
		state.ConsecutiveFailures, lastFailureTime)
	if err != nil {
		return fmt.Errorf("saving backoff state: %w", err)
	}

	return nil
}
