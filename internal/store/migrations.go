package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id          TEXT PRIMARY KEY,
	remote_id   INTEGER,
	title       TEXT NOT NULL,
	payload     TEXT NOT NULL DEFAULT '',
	fire_at     INTEGER NOT NULL, -- epoch milliseconds (UTC)
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_notifications_remote_id
	ON notifications(remote_id) WHERE remote_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_notifications_fire_at ON notifications(fire_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS remote_tombstones (
	remote_id INTEGER PRIMARY KEY,
	fired_at  DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
