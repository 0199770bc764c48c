package sharedstate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/momoosa/stride/internal/util"
)

// RecordFileName is the well-known name of the shared timer record inside
// the shared directory. Every stride process derives the same path from the
// same directory; the name is part of the wire contract.
const RecordFileName = "timer_state.json"

// Store reads and writes the shared timer record. Writes are atomic
// (temp file + fsync + rename), so another process never observes a torn
// record; the last writer wins. Reads are defensive: any malformed or
// missing file decodes to the zero Record.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store for the record file inside dir. The directory is
// created if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := util.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create shared dir: %w", err)
	}
	return &Store{path: filepath.Join(dir, RecordFileName), logger: logger}, nil
}

// Path returns the record file path (for watchers and diagnostics).
func (s *Store) Path() string { return s.path }

// Load reads the current record. A missing or unreadable file is not an
// error: the other side may never have written, or may have cleared state.
// Load never fails; it returns the zero record and logs when the file is
// present but unparseable.
func (s *Store) Load() Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("read shared timer record", "path", s.path, "error", err)
		}
		return Record{}
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A half-written or corrupt record is treated as "not running";
		// reconciliation will settle on a consistent state from here.
		s.logger.Warn("parse shared timer record", "path", s.path, "error", err)
		return Record{}
	}
	return rec
}

// Save replaces the whole record atomically and flushes it to disk, so a
// write issued just before process suspension is observable by another
// process immediately after.
func (s *Store) Save(rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal shared timer record: %w", err)
	}
	if err := util.AtomicWriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write shared timer record: %w", err)
	}
	return nil
}

// Mutate applies fn to the current record and saves the result. This is
// read-modify-write within one process only; across processes the store is
// last-write-wins and reconciliation compensates.
func (s *Store) Mutate(fn func(*Record)) error {
	rec := s.Load()
	fn(&rec)
	return s.Save(rec)
}

// Clear removes every slot.
func (s *Store) Clear() error {
	return s.Save(Record{})
}
