package timer

import (
	"context"
	"time"

	"github.com/momoosa/stride/internal/sharedstate"
)

// Reconcile re-derives correct local state from the shared cross-process
// record. It is the compensation for the store having no push channel: the
// caller invokes it on every activation trigger (app foreground, watch
// event, relaunch). Reconcile is idempotent, never returns an error, and
// always terminates in a consistent local state; every pass ends by
// invoking the external-change callback so presentation layers refresh.
//
// Precedence is deterministic: the pending stop flag is consumed first,
// then local state is compared against the paused/active slots.
func (m *Manager) Reconcile(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consumeStopFlagLocked(ctx)

	rec := m.shared.Load()
	activeID, activeOK := rec.Active()
	pausedID, pausedOK := rec.Paused()

	if m.state != nil {
		local := m.state.SessionID
		switch {
		case activeOK && activeID == local:
			if m.state.Paused {
				// Resumed elsewhere: pick the clock back up from the
				// other writer's start.
				m.state.Resume(time.Unix(rec.Start(), 0))
				m.state.StartUITimer(m.tickInterval, m.tickFor(m.state))
				m.live.Update(m.contentLocked(true))
				m.logger.Info("run resumed externally", "session", local)
			}

		case activeOK && activeID != local:
			// A different session took over elsewhere. Destroy local
			// state for ours; the other process owns our session's stop
			// bookkeeping via the stop flag.
			m.logger.Info("run superseded externally", "session", local, "by", activeID)
			m.destroyLocked(true)

		case pausedOK && pausedID == local:
			if !m.state.Paused {
				// Paused elsewhere: stop ticking, keep the session
				// visible. The live status must not disappear.
				m.state.StopUITimer()
				m.state.Pause()
				// The other writer's fold is authoritative for the run's
				// accumulated seconds.
				m.state.ElapsedAtStart = m.state.runBase + rec.Elapsed()
				m.live.Update(m.contentLocked(false))
				m.logger.Info("run paused externally", "session", local)
			}

		default:
			// No slot mentions our session: fully stopped elsewhere. Any
			// pending interval was already consumed from the stop flag.
			m.logger.Info("run stopped externally", "session", local)
			m.destroyLocked(true)
		}
	}

	if m.state == nil && (activeOK || pausedOK) {
		m.adoptLocked(rec)
	}

	m.changedLocked()
}

// consumeStopFlagLocked handles a run ended by a process that could not
// create a history record itself (it only had the shared store, not the
// object graph). The elapsed seconds it left behind become one record; a
// stop flag whose session or goal no longer resolves is cleared silently,
// fabricating nothing for data that no longer exists.
func (m *Manager) consumeStopFlagLocked(ctx context.Context) {
	rec := m.shared.Load()
	stoppedID, ok := rec.Stopped()
	if !ok {
		return
	}

	elapsed := rec.Elapsed()
	sess, err := m.graph.SessionByID(stoppedID)
	switch {
	case err != nil:
		m.logger.Debug("stop flag for unresolvable session; clearing", "session", stoppedID, "error", err)
	case elapsed <= 0:
		m.logger.Debug("stop flag with no elapsed time; clearing", "session", stoppedID)
	default:
		end := m.now()
		start := end.Add(-time.Duration(elapsed * float64(time.Second)))
		if _, err := m.recorder.Record(ctx, sess.Title, start, end, sess.GoalID); err != nil {
			// Best effort: the sink leg may fail, the local record is in.
			// A missing goal means the record was skipped, which is the
			// required outcome for deleted data.
			m.logger.Warn("record externally stopped run", "session", stoppedID, "error", err)
		}
		if err := m.graph.SaveSessionElapsed(sess.ID, sess.Elapsed+elapsed); err != nil {
			m.logger.Warn("save session elapsed", "session", sess.ID, "error", err)
		}
	}

	// Consume the transient flag without clobbering slots another process
	// may have set since (e.g. a new active session).
	if err := m.shared.Mutate(func(r *sharedstate.Record) {
		r.StoppedSessionID = nil
		if _, stillActive := r.Active(); !stillActive {
			r.ElapsedSeconds = nil
			if _, stillPaused := r.Paused(); !stillPaused {
				r.StartDate = nil
			}
		}
	}); err != nil {
		m.logger.Warn("clear stop flag", "session", stoppedID, "error", err)
	}

	if m.state != nil && m.state.SessionID == stoppedID {
		m.destroyLocked(true)
	}
}

// adoptLocked reconstructs local state for a run another process started
// or left behind. Only the main process may own the live status object, so
// adoption is also where the surface gets created for runs that did not
// start here.
func (m *Manager) adoptLocked(rec sharedstate.Record) {
	id, running := rec.Active()
	if !running {
		id, _ = rec.Paused()
	}

	sess, err := m.graph.SessionByID(id)
	if err != nil {
		// The session is gone; the record is stale. Clear it rather than
		// keep re-adopting a ghost on every pass.
		m.logger.Warn("shared record references unknown session; clearing", "session", id, "error", err)
		if err := m.shared.Clear(); err != nil {
			m.logger.Warn("clear stale shared record", "error", err)
		}
		return
	}

	start := time.Unix(rec.Start(), 0)
	if rec.Start() == 0 {
		start = m.now()
	}
	m.state = Adopt(id, start, sess.Elapsed, rec.Elapsed(), sess.DailyTarget, !running)
	m.state.now = m.now
	m.installHooksLocked(sess)

	if running {
		m.state.StartUITimer(m.tickInterval, m.tickFor(m.state))
	}
	if err := m.live.Start(m.attrsLocked(sess), m.contentLocked(running)); err != nil {
		m.logger.Warn("start live status for adopted run", "session", id, "error", err)
	}
	m.logger.Info("adopted externally started run", "session", id, "running", running)
}
