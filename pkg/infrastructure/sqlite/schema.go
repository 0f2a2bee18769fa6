package sqlite

// schemaSQL is the single source of truth for the database layout. Tests run
// against the same statements as production opens, so any column drift fails
// immediately with "no such column".
const schemaSQL = `
CREATE TABLE IF NOT EXISTS activities (
	id TEXT PRIMARY KEY,
	athlete_id TEXT NOT NULL,
	source TEXT NOT NULL,
	external_id TEXT,
	type TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	duration_s REAL NOT NULL,
	distance_m REAL NOT NULL,
	stream_ref TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(source, external_id)
);

CREATE INDEX IF NOT EXISTS idx_activities_athlete_started
	ON activities(athlete_id, started_at);

CREATE TABLE IF NOT EXISTS streams (
	ref TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	samples TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS enrichment_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	activity_id TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL CHECK(status IN ('pending', 'in_progress', 'done', 'failed')) DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 3,
	next_retry_at DATETIME,
	last_error TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_queue_status_retry
	ON enrichment_queue(status, next_retry_at);

CREATE TABLE IF NOT EXISTS segment_features (
	activity_id TEXT NOT NULL,
	segment_id TEXT NOT NULL,
	minetti_cost REAL,
	grade_variability REAL,
	efficiency_factor REAL,
	cardiac_drift REAL,
	cadence_decay REAL,
	PRIMARY KEY(activity_id, segment_id)
);

CREATE TABLE IF NOT EXISTS training_loads (
	athlete_id TEXT NOT NULL,
	date TEXT NOT NULL,
	trimp REAL NOT NULL,
	ctl REAL NOT NULL,
	atl REAL NOT NULL,
	tsb REAL NOT NULL,
	rhr_delta_7d REAL,
	PRIMARY KEY(athlete_id, date)
);
`
