package store

const Schema = `
CREATE TABLE IF NOT EXISTS monitor_state (
    owner TEXT NOT NULL,
    name TEXT NOT NULL,
    last_notified_at TEXT,
    PRIMARY KEY (owner, name)
);

CREATE TABLE IF NOT EXISTS sent_notifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner TEXT NOT NULL,
    name TEXT NOT NULL,
    notification_id TEXT NOT NULL,
    recorded_at TEXT NOT NULL,
    UNIQUE (owner, name, notification_id)
);

CREATE TABLE IF NOT EXISTS run_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_at TEXT NOT NULL,
    owner TEXT NOT NULL,
    name TEXT NOT NULL,
    issues_found INTEGER NOT NULL,
    prs_found INTEGER NOT NULL,
    notifications_sent INTEGER NOT NULL,
    error_message TEXT,
    duration_ms INTEGER
);

CREATE TABLE IF NOT EXISTS backoff_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    consecutive_failures INTEGER DEFAULT 0,
    last_failure_time TEXT
);
`

func InitSchema(db *Database) error {
	_, err := db.conn.Exec(Schema)
	return err
}
