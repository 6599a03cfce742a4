package sqlite

// Schema defines the SQLite database schema
const Schema = `
-- Append-only readings log
CREATE TABLE IF NOT EXISTS readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TIMESTAMP NOT NULL,
	tds_ppm REAL NOT NULL,
	temperature_c REAL NOT NULL,
	safe BOOLEAN NOT NULL,
	reason TEXT NOT NULL DEFAULT 'none',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON readings(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_readings_safe ON readings(safe);

-- Append-only analyses log, at most one per reading
CREATE TABLE IF NOT EXISTS analyses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	reading_id INTEGER NOT NULL,
	impact TEXT NOT NULL,
	root_cause TEXT NOT NULL,
	actions_json TEXT NOT NULL,
	response_ms INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	FOREIGN KEY (reading_id) REFERENCES readings(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_analyses_reading_id ON analyses(reading_id);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC);
`
