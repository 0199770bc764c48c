package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/momoosa/stride/internal/goals"
	"github.com/momoosa/stride/internal/util"
)

// ErrNotFound is returned when a goal, session, or record id does not
// resolve. Callers in the timer engine treat this as "state is stale", not
// as a failure.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite database holding the object graph.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the database at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate() error {
	return ApplyMigrations(s.db)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// ======================
// Goals
// ======================

// UpsertGoal inserts or replaces a goal definition.
func (s *Store) UpsertGoal(g *goals.Goal) error {
	if g.ID == "" {
		g.ID = goals.NewID()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO goals (id, title, notes, metric, daily_target, primary_color, secondary_color, accent_color, created_at, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			notes = excluded.notes,
			metric = excluded.metric,
			daily_target = excluded.daily_target,
			primary_color = excluded.primary_color,
			secondary_color = excluded.secondary_color,
			accent_color = excluded.accent_color,
			archived = excluded.archived`,
		g.ID, g.Title, g.Notes, string(g.Metric), g.DailyTarget,
		g.Theme.Primary, g.Theme.Secondary, g.Theme.Accent, g.CreatedAt, g.Archived,
	)
	if err != nil {
		return fmt.Errorf("upsert goal %s: %w", g.ID, err)
	}
	return nil
}

// GoalByID fetches a goal by id. Returns ErrNotFound if absent.
func (s *Store) GoalByID(id string) (*goals.Goal, error) {
	row := s.db.QueryRow(`
		SELECT id, title, notes, metric, daily_target, primary_color, secondary_color, accent_color, created_at, archived
		FROM goals WHERE id = ?`, id)
	return scanGoal(row)
}

// ListGoals returns all goals, optionally including archived ones.
func (s *Store) ListGoals(includeArchived bool) ([]*goals.Goal, error) {
	query := `
		SELECT id, title, notes, metric, daily_target, primary_color, secondary_color, accent_color, created_at, archived
		FROM goals`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*goals.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteGoal removes a goal and (via cascade) its sessions. History records
// are kept; they are the user's to delete.
func (s *Store) DeleteGoal(id string) error {
	res, err := s.db.Exec(`DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (*goals.Goal, error) {
	var g goals.Goal
	var metric string
	err := row.Scan(&g.ID, &g.Title, &g.Notes, &metric, &g.DailyTarget,
		&g.Theme.Primary, &g.Theme.Secondary, &g.Theme.Accent, &g.CreatedAt, &g.Archived)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan goal: %w", err)
	}
	g.Metric = goals.Metric(metric)
	return &g, nil
}

// ======================
// Sessions
// ======================

// SessionByID fetches a session by id. Returns ErrNotFound if absent.
func (s *Store) SessionByID(id string) (*goals.Session, error) {
	row := s.db.QueryRow(`
		SELECT id, goal_id, day, title, elapsed, daily_target, created_at
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// SessionForGoalDay returns the session for a goal on a given day, creating
// it from the goal's current target if it does not exist yet.
func (s *Store) SessionForGoalDay(goalID, day string) (*goals.Session, error) {
	row := s.db.QueryRow(`
		SELECT id, goal_id, day, title, elapsed, daily_target, created_at
		FROM sessions WHERE goal_id = ? AND day = ?`, goalID, day)
	sess, err := scanSession(row)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	g, err := s.GoalByID(goalID)
	if err != nil {
		return nil, err
	}
	sess = &goals.Session{
		ID:          goals.NewID(),
		GoalID:      goalID,
		Day:         day,
		Title:       g.Title,
		DailyTarget: g.DailyTarget,
		CreatedAt:   time.Now().UTC(),
	}
	_, err = s.db.Exec(`
		INSERT INTO sessions (id, goal_id, day, title, elapsed, daily_target, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.GoalID, sess.Day, sess.Title, sess.Elapsed, sess.DailyTarget, sess.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert session for goal %s: %w", goalID, err)
	}
	return sess, nil
}

// SaveSessionElapsed updates the cumulative elapsed seconds for a session.
func (s *Store) SaveSessionElapsed(id string, elapsed float64) error {
	res, err := s.db.Exec(`UPDATE sessions SET elapsed = ? WHERE id = ?`, elapsed, id)
	if err != nil {
		return fmt.Errorf("save session elapsed %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSession(row rowScanner) (*goals.Session, error) {
	var sess goals.Session
	err := row.Scan(&sess.ID, &sess.GoalID, &sess.Day, &sess.Title, &sess.Elapsed, &sess.DailyTarget, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &sess, nil
}

// ======================
// History records
// ======================

// InsertHistoryRecord appends one immutable history record.
func (s *Store) InsertHistoryRecord(r *HistoryRecord) error {
	if r.ID == "" {
		r.ID = goals.NewID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.DurationSeconds == 0 {
		r.DurationSeconds = r.End.Sub(r.Start).Seconds()
	}
	_, err := s.db.Exec(`
		INSERT INTO history_records (id, goal_id, title, start_at, end_at, duration_seconds, source, external_id, needs_sync, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.GoalID, r.Title, r.Start, r.End, r.DurationSeconds,
		string(r.Source), r.ExternalID, r.NeedsSync, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}
	return nil
}

// HistoryBetween returns records whose end falls in [from, to), newest first.
func (s *Store) HistoryBetween(from, to time.Time) ([]*HistoryRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, goal_id, title, start_at, end_at, duration_seconds, source, external_id, needs_sync, created_at
		FROM history_records WHERE end_at >= ? AND end_at < ? ORDER BY end_at DESC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

// UnsyncedRecords returns records still waiting for a successful sink write.
func (s *Store) UnsyncedRecords() ([]*HistoryRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, goal_id, title, start_at, end_at, duration_seconds, source, external_id, needs_sync, created_at
		FROM history_records WHERE needs_sync = 1 ORDER BY end_at`)
	if err != nil {
		return nil, fmt.Errorf("query unsynced records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

// ExternalIDsBetween returns the set of sink identifiers already recorded
// for intervals ending in [from, to). Used by the sync pass to de-duplicate
// sink-originated intervals.
func (s *Store) ExternalIDsBetween(from, to time.Time) (map[string]bool, error) {
	rows, err := s.db.Query(`
		SELECT external_id FROM history_records
		WHERE external_id != '' AND end_at >= ? AND end_at < ?`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query external ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan external id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// MarkRecordSynced sets the one-shot external-id tag and clears the
// needs-sync flag.
func (s *Store) MarkRecordSynced(id, externalID string) error {
	res, err := s.db.Exec(`
		UPDATE history_records SET external_id = ?, needs_sync = 0 WHERE id = ?`,
		externalID, id)
	if err != nil {
		return fmt.Errorf("mark record synced %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteHistoryRecord removes one record (user-initiated only).
func (s *Store) DeleteHistoryRecord(id string) error {
	res, err := s.db.Exec(`DELETE FROM history_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete history record %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]*HistoryRecord, error) {
	var out []*HistoryRecord
	for rows.Next() {
		var r HistoryRecord
		var source string
		if err := rows.Scan(&r.ID, &r.GoalID, &r.Title, &r.Start, &r.End,
			&r.DurationSeconds, &source, &r.ExternalID, &r.NeedsSync, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		r.Source = RecordSource(source)
		out = append(out, &r)
	}
	return out, rows.Err()
}
