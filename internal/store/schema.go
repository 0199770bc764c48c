// Package store provides durable SQLite-backed storage for stride's object
// graph: goals, per-day sessions, and the append-only history of completed
// runs. This is the collaborator side of the timer engine; the engine only
// needs fetch-by-id, insert, and best-effort save.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrations embed.FS

// RecordSource tags the provenance of a history record.
type RecordSource string

const (
	// RecordSourceTimer marks records created by the timer engine.
	RecordSourceTimer RecordSource = "timer"
	// RecordSourceExternal marks records merged in from the external
	// metric sink.
	RecordSourceExternal RecordSource = "external"
)

// HistoryRecord is one immutable (start, end) interval of completed work.
// Records are append-only: created once, never mutated afterwards except
// for the one-shot external-id tag set when a sink write succeeds, and only
// ever deleted by the user.
type HistoryRecord struct {
	ID              string       `json:"id"`
	GoalID          string       `json:"goal_id"`
	Title           string       `json:"title"`
	Start           time.Time    `json:"start"`
	End             time.Time    `json:"end"`
	DurationSeconds float64      `json:"duration_seconds"`
	Source          RecordSource `json:"source"`
	ExternalID      string       `json:"external_id,omitempty"` // sink identifier, set once
	NeedsSync       bool         `json:"needs_sync"`            // still waiting for a sink write
	CreatedAt       time.Time    `json:"created_at"`
}

// GetMigrationFiles returns a sorted list of migration file names.
func GetMigrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// ReadMigration reads the content of a migration file.
func ReadMigration(filename string) (string, error) {
	data, err := migrations.ReadFile(filepath.Join("migrations", filename))
	if err != nil {
		return "", fmt.Errorf("read migration %s: %w", filename, err)
	}
	return string(data), nil
}

// ApplyMigrations applies all pending migrations to the database.
func ApplyMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS _migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	files, err := GetMigrationFiles()
	if err != nil {
		return err
	}

	rows, err := db.Query("SELECT version FROM _migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("query applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate migrations: %w", err)
	}

	for _, filename := range files {
		// Parse version from filename (e.g., "001_initial.sql" -> 1)
		var version int
		n, _ := fmt.Sscanf(filename, "%03d_", &version)
		if n != 1 {
			return fmt.Errorf("parse migration version from %s: invalid format", filename)
		}

		if applied[version] {
			continue
		}

		content, err := ReadMigration(filename)
		if err != nil {
			return err
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %s: %w", filename, err)
		}

		if _, err := tx.Exec(content); err != nil {
			_ = tx.Rollback() // best-effort rollback; we're returning the exec error
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO _migrations (version, name) VALUES (?, ?)",
			version, filename,
		); err != nil {
			_ = tx.Rollback() // best-effort rollback; we're returning the insert error
			return fmt.Errorf("record migration %s: %w", filename, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", filename, err)
		}
	}

	return nil
}
