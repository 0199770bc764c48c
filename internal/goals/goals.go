// Package goals defines the core domain types for stride: goals, their
// per-day timed sessions, and the metric kinds that decide whether completed
// work can be mirrored to an external metric sink.
package goals

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Metric identifies the kind of activity a goal tracks.
type Metric string

const (
	MetricNone        Metric = "none"
	MetricMindfulness Metric = "mindfulness"
	MetricExercise    Metric = "exercise"
	MetricReading     Metric = "reading"
	MetricDeepWork    Metric = "deep_work"
)

// ValidMetrics returns all known metric kinds.
func ValidMetrics() []Metric {
	return []Metric{MetricNone, MetricMindfulness, MetricExercise, MetricReading, MetricDeepWork}
}

// IsValid returns true if the metric is a known kind.
func (m Metric) IsValid() bool {
	for _, v := range ValidMetrics() {
		if m == v {
			return true
		}
	}
	return false
}

// SupportsExternalWrite reports whether completed sessions for this metric
// can be written to the external metric sink. Only metrics the sink has a
// native representation for are writable; everything else stays local.
func (m Metric) SupportsExternalWrite() bool {
	switch m {
	case MetricMindfulness, MetricExercise:
		return true
	default:
		return false
	}
}

// Theme holds the three hex colors a goal carries into the live status
// surface attributes.
type Theme struct {
	Primary   string `yaml:"primary" json:"primary"`
	Secondary string `yaml:"secondary" json:"secondary"`
	Accent    string `yaml:"accent" json:"accent"`
}

// DefaultTheme returns the fallback theme for goals without explicit colors.
func DefaultTheme() Theme {
	return Theme{Primary: "#7c3aed", Secondary: "#a78bfa", Accent: "#f59e0b"}
}

// Goal is a trackable habit or objective. Goals own sessions; a goal is the
// unit the user edits, a session is the unit the timer runs against.
type Goal struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Notes       string    `json:"notes,omitempty"`
	Metric      Metric    `json:"metric"`
	DailyTarget float64   `json:"daily_target"` // seconds per day
	Theme       Theme     `json:"theme"`
	CreatedAt   time.Time `json:"created_at"`
	Archived    bool      `json:"archived"`
}

// Session is one day's timed work for a goal. Elapsed accumulates across
// runs within the day; the timer engine reads it at run start and writes it
// back (best effort) at run end.
type Session struct {
	ID          string    `json:"id"`
	GoalID      string    `json:"goal_id"`
	Day         string    `json:"day"` // YYYY-MM-DD, local time
	Title       string    `json:"title"`
	Elapsed     float64   `json:"elapsed"`      // cumulative seconds prior to any current run
	DailyTarget float64   `json:"daily_target"` // seconds; copied from the goal at creation
	CreatedAt   time.Time `json:"created_at"`
}

// DayKey formats a time as the session day key.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// NewID generates a unique, sortable identifier: millisecond timestamp plus
// a random suffix.
func NewID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}
