package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the archive tables. Filterable columns are stored
// alongside the full record encoded as JSON.
const Schema = `
CREATE TABLE IF NOT EXISTS traffic_records (
    id TEXT PRIMARY KEY,
    timestamp TEXT NOT NULL,
    service TEXT NOT NULL,
    proto TEXT NOT NULL,
    state TEXT NOT NULL,
    srcip TEXT,
    dstip TEXT,
    record TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_traffic_records_timestamp ON traffic_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_traffic_records_service ON traffic_records(service);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion reads the newest schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const insertRecord = `
INSERT OR IGNORE INTO traffic_records (id, timestamp, service, proto, state, srcip, dstip, record)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`

const deleteOldest = `
DELETE FROM traffic_records WHERE id IN (
    SELECT id FROM traffic_records ORDER BY timestamp ASC, id ASC LIMIT ?
);
`
