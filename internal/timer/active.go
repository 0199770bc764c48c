// Package timer implements the session timer engine: the active-run state
// object, the manager that orchestrates start/stop/pause/resume, and the
// reconciliation algorithm that keeps independent stride processes agreeing
// on a single timeline of work.
package timer

import (
	"time"
)

// ActiveSessionState is the in-memory state of the one (at most) running or
// paused session in this process. It is owned exclusively by the Manager
// and confined to it: the type has no internal locking, and all access
// must happen on the owner's execution context. The UI timer goroutine
// never reads the state itself; it drives the callback handed to
// StartUITimer, which the owner uses to re-enter its own lock.
//
// Invariant: while Paused is false, Elapsed is monotonically non-decreasing
// for the lifetime of this object.
type ActiveSessionState struct {
	SessionID      string
	StartDate      time.Time // wall-clock start of the current ticking interval
	ElapsedAtStart float64   // seconds accumulated before StartDate (prior runs + paused portions of this run)
	DailyTarget    float64   // seconds; crossing it fires OnTargetReached once per run
	Paused         bool

	// OnTick receives the current cumulative elapsed seconds once per UI
	// timer interval while not paused.
	OnTick func(elapsed float64)
	// OnTargetReached fires exactly once per run when elapsed first
	// crosses DailyTarget.
	OnTargetReached func()

	runBase     float64 // cumulative seconds at the moment this run began
	targetFired bool

	now    func() time.Time
	ticker *time.Ticker
	done   chan struct{}
}

// NewRun creates the state for a run starting now with no accumulated run
// time. priorElapsed is the session's cumulative elapsed before this run.
func NewRun(sessionID string, start time.Time, priorElapsed, dailyTarget float64) *ActiveSessionState {
	return &ActiveSessionState{
		SessionID:      sessionID,
		StartDate:      start,
		ElapsedAtStart: priorElapsed,
		DailyTarget:    dailyTarget,
		runBase:        priorElapsed,
		now:            time.Now,
	}
}

// Adopt reconstructs the state for a run started by another process:
// start and runElapsed come from the persisted record, priorElapsed from
// the object graph.
func Adopt(sessionID string, start time.Time, priorElapsed, runElapsed, dailyTarget float64, paused bool) *ActiveSessionState {
	return &ActiveSessionState{
		SessionID:      sessionID,
		StartDate:      start,
		ElapsedAtStart: priorElapsed + runElapsed,
		DailyTarget:    dailyTarget,
		Paused:         paused,
		runBase:        priorElapsed,
		now:            time.Now,
	}
}

// Elapsed returns the cumulative elapsed seconds for the session's day:
// a pure function of wall-clock time while not paused.
func (s *ActiveSessionState) Elapsed() float64 {
	if s.Paused {
		return s.ElapsedAtStart
	}
	return s.ElapsedAtStart + s.clock().Sub(s.StartDate).Seconds()
}

// RunElapsed returns the seconds accumulated by the current run only,
// excluding time from earlier runs of the same day. This is what crosses
// the process boundary in the shared record and what a history record's
// duration is derived from.
func (s *ActiveSessionState) RunElapsed() float64 {
	return s.Elapsed() - s.runBase
}

// Pause suspends ticking without ending the run, folding the running
// interval into ElapsedAtStart.
func (s *ActiveSessionState) Pause() {
	if s.Paused {
		return
	}
	s.ElapsedAtStart = s.Elapsed()
	s.Paused = true
}

// Resume restarts the clock from now. No-op if not paused.
func (s *ActiveSessionState) Resume(at time.Time) {
	if !s.Paused {
		return
	}
	s.StartDate = at
	s.Paused = false
}

// Tick computes the current elapsed time, fires OnTick, and raises the
// one-shot OnTargetReached if the daily target was just crossed. Callers
// drive this either from the UI timer or directly (tests, manual refresh).
// Paused state ignores ticks.
func (s *ActiveSessionState) Tick() {
	if s.Paused {
		return
	}
	elapsed := s.Elapsed()
	if s.OnTick != nil {
		s.OnTick(elapsed)
	}
	if !s.targetFired && s.DailyTarget > 0 && elapsed >= s.DailyTarget {
		s.targetFired = true
		if s.OnTargetReached != nil {
			s.OnTargetReached()
		}
	}
}

// TargetReached reports whether the one-shot target event fired this run.
func (s *ActiveSessionState) TargetReached() bool {
	return s.targetFired
}

// StartUITimer begins the cooperative 1-second tick, invoking tick on the
// timer goroutine once per interval. The callback owns synchronization: it
// must take whatever lock guards this state before calling Tick. A nil tick
// calls Tick directly, which is only safe when nothing else touches the
// state concurrently. Contract: the caller is responsible for stopping any
// prior timer first; starting twice without an intervening StopUITimer
// leaks a ticker.
func (s *ActiveSessionState) StartUITimer(interval time.Duration, tick func()) {
	if interval <= 0 {
		interval = time.Second
	}
	if tick == nil {
		tick = s.Tick
	}
	s.ticker = time.NewTicker(interval)
	s.done = make(chan struct{})
	go func(t *time.Ticker, done chan struct{}) {
		for {
			select {
			case <-done:
				return
			case <-t.C:
				tick()
			}
		}
	}(s.ticker, s.done)
}

// StopUITimer stops the cooperative tick. Safe to call when no timer runs.
func (s *ActiveSessionState) StopUITimer() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
}

func (s *ActiveSessionState) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
