// Package history turns completed (start, end) intervals of goal work into
// durable, provenance-tagged records. Records are append-only; this package
// never mutates one after creation beyond the one-shot external-id tag set
// when a sink write succeeds.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/momoosa/stride/internal/goals"
	"github.com/momoosa/stride/internal/metricsink"
	"github.com/momoosa/stride/internal/store"
)

// Recorder creates history records and mirrors them to the external metric
// sink when the originating goal's metric supports it.
type Recorder struct {
	store       *store.Store
	sink        metricsink.Sink
	syncEnabled bool
	logger      *slog.Logger
}

// NewRecorder creates a recorder. sink may be nil when external sync is
// disabled.
func NewRecorder(st *store.Store, sink metricsink.Sink, syncEnabled bool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = metricsink.Disabled{}
		syncEnabled = false
	}
	return &Recorder{store: st, sink: sink, syncEnabled: syncEnabled, logger: logger}
}

// Record appends one record for the interval and, if the goal's metric is
// sink-writable and sync is enabled, attempts the external write. The local
// record is durable before the sink is touched: a failed write returns the
// record alongside the error, marked as still needing sync. It is retried
// only on the next explicit sync pass.
func (r *Recorder) Record(ctx context.Context, title string, start, end time.Time, goalID string) (*store.HistoryRecord, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("record interval end %v not after start %v", end, start)
	}

	g, err := r.store.GoalByID(goalID)
	if err != nil {
		return nil, fmt.Errorf("resolve goal for record: %w", err)
	}

	wantSink := r.syncEnabled && g.Metric.SupportsExternalWrite()
	rec := &store.HistoryRecord{
		GoalID:    goalID,
		Title:     title,
		Start:     start,
		End:       end,
		Source:    store.RecordSourceTimer,
		NeedsSync: wantSink,
	}
	if err := r.store.InsertHistoryRecord(rec); err != nil {
		return nil, err
	}

	if !wantSink {
		return rec, nil
	}

	externalID, err := r.sink.WriteSession(ctx, g.Metric, start, end)
	if err != nil {
		r.logger.Warn("metric sink write failed; record kept locally",
			"goal", goalID, "record", rec.ID, "error", err)
		return rec, fmt.Errorf("metric sink write: %w", err)
	}
	if err := r.store.MarkRecordSynced(rec.ID, externalID); err != nil {
		r.logger.Warn("tag record with sink id", "record", rec.ID, "error", err)
		return rec, nil
	}
	rec.ExternalID = externalID
	rec.NeedsSync = false
	return rec, nil
}

// SyncResult summarizes one sync pass.
type SyncResult struct {
	Pushed int // local records written to the sink
	Pulled int // sink sessions merged into local history
	Failed int // push attempts that failed (left for the next pass)
}

// Sync runs one explicit sync pass against the sink for intervals ending in
// [from, to): pushes records still flagged as needing the external write,
// then pulls sink-originated sessions and merges them against already
// recorded external ids so each sink interval is recorded at most once.
func (r *Recorder) Sync(ctx context.Context, from, to time.Time) (SyncResult, error) {
	var res SyncResult
	if !r.syncEnabled {
		return res, errors.New("external sync disabled")
	}

	// Push leg: best effort per record.
	unsynced, err := r.store.UnsyncedRecords()
	if err != nil {
		return res, err
	}
	for _, rec := range unsynced {
		g, err := r.store.GoalByID(rec.GoalID)
		if err != nil {
			// Goal deleted since the record was made; nothing to push.
			r.logger.Debug("skip push for record with missing goal", "record", rec.ID)
			continue
		}
		externalID, err := r.sink.WriteSession(ctx, g.Metric, rec.Start, rec.End)
		if err != nil {
			r.logger.Warn("push record to sink", "record", rec.ID, "error", err)
			res.Failed++
			continue
		}
		if err := r.store.MarkRecordSynced(rec.ID, externalID); err != nil {
			r.logger.Warn("tag pushed record", "record", rec.ID, "error", err)
			continue
		}
		res.Pushed++
	}

	// Pull leg: merge-then-diff against external ids already recorded.
	known, err := r.store.ExternalIDsBetween(from, to)
	if err != nil {
		return res, err
	}

	all, err := r.store.ListGoals(false)
	if err != nil {
		return res, err
	}
	byMetric := make(map[goals.Metric]*goals.Goal)
	for _, g := range all {
		if g.Metric.SupportsExternalWrite() {
			if _, taken := byMetric[g.Metric]; !taken {
				byMetric[g.Metric] = g
			}
		}
	}

	for metric, g := range byMetric {
		sessions, err := r.sink.ReadSessions(ctx, metric, from, to)
		if err != nil {
			r.logger.Warn("read sink sessions", "metric", metric, "error", err)
			continue
		}
		for _, es := range sessions {
			if es.ExternalID == "" || known[es.ExternalID] {
				continue
			}
			rec := &store.HistoryRecord{
				GoalID:     g.ID,
				Title:      g.Title,
				Start:      es.Start,
				End:        es.End,
				Source:     store.RecordSourceExternal,
				ExternalID: es.ExternalID,
			}
			if err := r.store.InsertHistoryRecord(rec); err != nil {
				r.logger.Warn("merge sink session", "external_id", es.ExternalID, "error", err)
				continue
			}
			known[es.ExternalID] = true
			res.Pulled++
		}
	}

	return res, nil
}
