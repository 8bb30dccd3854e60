package database

// Migration represents a database migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// migrations contains all database migrations in order
var migrations = []Migration{
	{
		Version: "001_init",
		Up: `
-- Operator-visible history of manager operations
CREATE TABLE activity_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp DATETIME NOT NULL,
    activity_type TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    metadata TEXT,
    success BOOLEAN NOT NULL DEFAULT 1,
    error_message TEXT
);

CREATE INDEX idx_activity_log_timestamp ON activity_log(timestamp);
CREATE INDEX idx_activity_log_type ON activity_log(activity_type);

-- Plugin install jobs and their outcomes
CREATE TABLE plugin_installs (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    file_name TEXT NOT NULL DEFAULT '',
    file_size INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    error TEXT,
    created_at DATETIME NOT NULL,
    finished_at DATETIME
);

CREATE INDEX idx_plugin_installs_created ON plugin_installs(created_at);
`,
		Down: `
DROP TABLE plugin_installs;
DROP TABLE activity_log;
`,
	},
}
