// Package metricsink abstracts the external health/activity data source
// that completed sessions are optionally mirrored to. The sink is a
// best-effort collaborator: authorization denial and write failure are
// logged and never block local timer functionality, because the locally
// durable history record is authoritative regardless.
package metricsink

import (
	"context"
	"errors"
	"time"

	"github.com/momoosa/stride/internal/goals"
)

// ErrUnauthorized indicates the sink refused access for the requested
// metrics. Surfaced once to the caller that requested authorization.
var ErrUnauthorized = errors.New("metric sink authorization denied")

// ExternalSession is an interval of activity the sink already holds,
// identified by the sink's own id. The sync pass merges these against local
// history by external id.
type ExternalSession struct {
	ExternalID string       `json:"external_id"`
	Metric     goals.Metric `json:"metric"`
	Start      time.Time    `json:"start"`
	End        time.Time    `json:"end"`
}

// Sink is the external metric data source.
type Sink interface {
	// RequestAuthorization asks for read/write access to the given
	// metrics. Denial returns ErrUnauthorized.
	RequestAuthorization(ctx context.Context, metrics []goals.Metric) error

	// WriteSession stores a completed interval and returns the sink's
	// identifier for it.
	WriteSession(ctx context.Context, metric goals.Metric, start, end time.Time) (string, error)

	// ReadSessions returns the sink's sessions for a metric whose end
	// falls in [from, to).
	ReadSessions(ctx context.Context, metric goals.Metric, from, to time.Time) ([]ExternalSession, error)
}

// Disabled is a Sink for configurations without an external sink. Writes
// and reads succeed vacuously so callers need no special casing.
type Disabled struct{}

// RequestAuthorization always denies: there is nothing to authorize.
func (Disabled) RequestAuthorization(ctx context.Context, metrics []goals.Metric) error {
	return ErrUnauthorized
}

// WriteSession reports the sink as unavailable.
func (Disabled) WriteSession(ctx context.Context, metric goals.Metric, start, end time.Time) (string, error) {
	return "", errors.New("metric sink disabled")
}

// ReadSessions returns no sessions.
func (Disabled) ReadSessions(ctx context.Context, metric goals.Metric, from, to time.Time) ([]ExternalSession, error) {
	return nil, nil
}
