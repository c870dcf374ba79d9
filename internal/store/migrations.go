package store

import "database/sql"

var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE sites (
					id TEXT PRIMARY KEY,
					display_name TEXT NOT NULL,
					status_page TEXT NOT NULL,
					feed_url TEXT NOT NULL DEFAULT '',
					parser TEXT NOT NULL DEFAULT 'auto',
					poll_frequency_seconds INTEGER NOT NULL DEFAULT 300,
					is_active INTEGER NOT NULL DEFAULT 1,
					last_notified_at TEXT,
					last_notified_status TEXT,
					created_at TEXT NOT NULL DEFAULT (datetime('now')),
					updated_at TEXT NOT NULL DEFAULT (datetime('now'))
				);

				CREATE TABLE readings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					site_id TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
					status TEXT NOT NULL,
					summary TEXT NOT NULL DEFAULT '',
					source_type TEXT NOT NULL DEFAULT '',
					raw_snapshot TEXT,
					last_changed_at TEXT,
					error_message TEXT,
					created_at TEXT NOT NULL DEFAULT (datetime('now'))
				);
				CREATE INDEX idx_readings_site_created ON readings(site_id, created_at);
				CREATE INDEX idx_readings_status ON readings(status);

				CREATE TABLE advisories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					site_id TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
					title TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					severity TEXT NOT NULL DEFAULT 'low',
					criticality TEXT NOT NULL DEFAULT 'low',
					affects_us INTEGER NOT NULL DEFAULT 0,
					affected_modules TEXT NOT NULL DEFAULT '[]',
					relevance_reason TEXT NOT NULL DEFAULT '',
					source_url TEXT NOT NULL DEFAULT '',
					published_at TEXT,
					created_at TEXT NOT NULL DEFAULT (datetime('now')),
					UNIQUE(site_id, title)
				);
				CREATE INDEX idx_advisories_site ON advisories(site_id, created_at);

				CREATE TABLE site_modules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					site_id TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
					module_name TEXT NOT NULL,
					enabled INTEGER NOT NULL DEFAULT 1,
					UNIQUE(site_id, module_name)
				);
			`)
			return err
		},
	},
}
