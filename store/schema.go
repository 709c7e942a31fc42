package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS session_slots (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS session_slots (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
