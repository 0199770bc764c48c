// Package sharedstate persists the cross-process timer record: the small
// key-value surface every stride process (main CLI, widget writers) reads
// and writes to agree on which session is running. The record file is the
// only state that survives process death and the only channel between
// processes; there is no notification across processes, so consumers poll
// it on lifecycle triggers (or watch it, see Watcher).
package sharedstate

// Record mirrors the five shared slots. Every field is independently
// optional: a missing file, a partially cleared record, or a record written
// by an older binary all decode to absent fields, and absence always means
// "unknown / not running". Multiple slots can legitimately coexist
// mid-transition; readers resolve precedence, not this type.
type Record struct {
	ActiveSessionID  *string  `json:"active_session_id,omitempty"`
	PausedSessionID  *string  `json:"paused_session_id,omitempty"`
	StoppedSessionID *string  `json:"stopped_session_id,omitempty"`
	StartDate        *int64   `json:"start_date,omitempty"` // epoch seconds
	ElapsedSeconds   *float64 `json:"elapsed_seconds,omitempty"`
}

// Active returns the active session id, if set.
func (r Record) Active() (string, bool) {
	if r.ActiveSessionID == nil || *r.ActiveSessionID == "" {
		return "", false
	}
	return *r.ActiveSessionID, true
}

// Paused returns the paused session id, if set.
func (r Record) Paused() (string, bool) {
	if r.PausedSessionID == nil || *r.PausedSessionID == "" {
		return "", false
	}
	return *r.PausedSessionID, true
}

// Stopped returns the pending stopped session id, if set.
func (r Record) Stopped() (string, bool) {
	if r.StoppedSessionID == nil || *r.StoppedSessionID == "" {
		return "", false
	}
	return *r.StoppedSessionID, true
}

// Start returns the persisted run start as epoch seconds, defaulting to 0.
func (r Record) Start() int64 {
	if r.StartDate == nil {
		return 0
	}
	return *r.StartDate
}

// Elapsed returns the persisted elapsed seconds, defaulting to 0.
func (r Record) Elapsed() float64 {
	if r.ElapsedSeconds == nil {
		return 0
	}
	return *r.ElapsedSeconds
}

// IsZero reports whether no slot carries a value.
func (r Record) IsZero() bool {
	_, active := r.Active()
	_, paused := r.Paused()
	_, stopped := r.Stopped()
	return !active && !paused && !stopped && r.StartDate == nil && r.ElapsedSeconds == nil
}

// StringPtr is a convenience for building records in writers and tests.
func StringPtr(s string) *string { return &s }

// Int64Ptr is a convenience for building records in writers and tests.
func Int64Ptr(v int64) *int64 { return &v }

// Float64Ptr is a convenience for building records in writers and tests.
func Float64Ptr(v float64) *float64 { return &v }
