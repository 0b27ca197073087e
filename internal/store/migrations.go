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

CREATE TABLE IF NOT EXISTS recommendations (
	list_key      TEXT NOT NULL,
	position      INTEGER NOT NULL,
	id            TEXT NOT NULL,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	type          TEXT NOT NULL,
	priority      TEXT NOT NULL,
	actions       TEXT NOT NULL DEFAULT '[]',
	related_crop  TEXT NOT NULL DEFAULT '',
	related_alert TEXT NOT NULL DEFAULT '',
	is_read       INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL,
	valid_until   DATETIME,
	PRIMARY KEY (list_key, position)
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_recommendations_valid_until
	ON recommendations(list_key, valid_until);

CREATE TABLE IF NOT EXISTS saves (
	list_key    TEXT PRIMARY KEY,
	entry_count INTEGER NOT NULL,
	saved_at    DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
