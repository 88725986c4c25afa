package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store wraps the sqlite handle and is the only mutation path for pipeline
// state. Its methods are safe for concurrent use across users.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore returns a Store over an already-migrated database.
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// DB exposes the underlying handle for lifecycle management.
func (s *Store) DB() *sql.DB { return s.db }

// Open creates and opens the sqlite database under the given directory,
// running migrations. The directory is created if missing.
func Open(dir string) (*sql.DB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dir, "applypilot.db")

	// Open with DSN options for SQLite pragmas
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// RunMigrations creates all necessary tables
func RunMigrations(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT,
		skills TEXT NOT NULL DEFAULT '[]',
		education TEXT NOT NULL DEFAULT '[]',
		work_history TEXT NOT NULL DEFAULT '[]',
		desired_roles TEXT NOT NULL DEFAULT '[]',
		desired_locations TEXT NOT NULL DEFAULT '[]',
		target_companies TEXT NOT NULL DEFAULT '[]',
		salary_floor INTEGER,
		salary_ceiling INTEGER,
		employment_type TEXT DEFAULT 'full-time',
		letter_quota INTEGER NOT NULL DEFAULT 20,
		letters_used INTEGER NOT NULL DEFAULT 0,
		quota_resets_at DATETIME NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		CHECK(employment_type IN ('internship', 'part-time', 'full-time'))
	);

	CREATE TABLE IF NOT EXISTS listings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		external_id TEXT NOT NULL,
		title TEXT NOT NULL,
		company TEXT NOT NULL,
		location TEXT,
		remote_type TEXT DEFAULT 'onsite',
		salary_min INTEGER,
		salary_max INTEGER,
		employment_type TEXT DEFAULT 'full-time',
		description TEXT,
		requirements TEXT,
		url TEXT,
		posted_at DATETIME,
		active BOOLEAN NOT NULL DEFAULT 1,
		first_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source, external_id),
		CHECK(remote_type IN ('remote', 'hybrid', 'onsite'))
	);

	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		profile_id INTEGER NOT NULL,
		listing_id INTEGER NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		skills_score REAL NOT NULL DEFAULT 0,
		location_score REAL NOT NULL DEFAULT 0,
		salary_score REAL NOT NULL DEFAULT 0,
		company_score REAL NOT NULL DEFAULT 0,
		role_score REAL NOT NULL DEFAULT 0,
		reasons TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'new',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE CASCADE,
		FOREIGN KEY (listing_id) REFERENCES listings(id) ON DELETE CASCADE,
		CHECK(status IN ('new', 'viewed', 'saved', 'dismissed', 'applied'))
	);

	CREATE TABLE IF NOT EXISTS applications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id INTEGER NOT NULL,
		profile_id INTEGER NOT NULL,
		listing_id INTEGER NOT NULL,
		cover_letter TEXT NOT NULL,
		letter_source TEXT NOT NULL DEFAULT 'template',
		answers TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'prepared',
		prepared_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		submitted_at DATETIME,
		dismissed_at DATETIME,
		FOREIGN KEY (match_id) REFERENCES matches(id) ON DELETE CASCADE,
		FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE CASCADE,
		FOREIGN KEY (listing_id) REFERENCES listings(id) ON DELETE CASCADE,
		CHECK(status IN ('prepared', 'submitted', 'dismissed')),
		CHECK(letter_source IN ('generated', 'template'))
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id TEXT PRIMARY KEY,
		profile_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		trigger_source TEXT NOT NULL DEFAULT 'scheduled',
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME,
		found INTEGER NOT NULL DEFAULT 0,
		new_count INTEGER NOT NULL DEFAULT 0,
		updated_count INTEGER NOT NULL DEFAULT 0,
		errored INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running',
		error TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE CASCADE,
		CHECK(kind IN ('discovery', 'preparation')),
		CHECK(trigger_source IN ('scheduled', 'manual')),
		CHECK(status IN ('running', 'completed', 'failed'))
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_profile_listing
		ON matches(profile_id, listing_id) WHERE status != 'dismissed';
	CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_profile_listing
		ON applications(profile_id, listing_id) WHERE status != 'dismissed';
	CREATE INDEX IF NOT EXISTS idx_listings_source ON listings(source);
	CREATE INDEX IF NOT EXISTS idx_matches_profile_status ON matches(profile_id, status);
	CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(status);
	CREATE INDEX IF NOT EXISTS idx_scrape_runs_profile ON scrape_runs(profile_id, kind);
	`

	_, err := db.Exec(schema)
	return err
}
