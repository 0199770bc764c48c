package timer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/momoosa/stride/internal/goals"
	"github.com/momoosa/stride/internal/livestatus"
	"github.com/momoosa/stride/internal/sharedstate"
	"github.com/momoosa/stride/internal/store"
)

// Graph is the slice of the object graph store the timer engine needs:
// fetch-by-id and best-effort save.
type Graph interface {
	SessionByID(id string) (*goals.Session, error)
	GoalByID(id string) (*goals.Goal, error)
	SaveSessionElapsed(id string, elapsed float64) error
}

// Recorder converts a completed (start, end) interval into a durable
// history record.
type Recorder interface {
	Record(ctx context.Context, title string, start, end time.Time, goalID string) (*store.HistoryRecord, error)
}

// Live is the live status surface lifecycle.
type Live interface {
	Start(attrs livestatus.Attributes, initial livestatus.Content) error
	Update(content livestatus.Content)
	End()
}

// Notifier is an optional collaborator told about run lifecycle moments
// (e.g. a notification scheduler). All methods are fire-and-forget.
type Notifier interface {
	RunStarted(session *goals.Session)
	TargetReached(session *goals.Session)
}

// Status is the manager's view of the (at most one) local run.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
)

// Deps wires a Manager. Shared, Graph, Recorder, and Live are required;
// Notifier, Logger, OnChange, Now, and TickInterval are optional.
type Deps struct {
	Shared   *sharedstate.Store
	Graph    Graph
	Recorder Recorder
	Live     Live
	Notifier Notifier
	Logger   *slog.Logger

	// OnChange is invoked after any state transition, local or discovered
	// during reconciliation, so presentation layers can refresh.
	OnChange func()

	// TickInterval overrides the 1-second UI tick (tests).
	TickInterval time.Duration

	// Now overrides the wall clock (tests).
	Now func() time.Time
}

// Manager owns the single ActiveSessionState of this process and drives
// every transition. All state is confined behind one mutex; the only
// concurrency inside a process is the UI tick calling back in. Concurrency
// across processes is resolved by Reconcile, never by locking: the shared
// store is last-write-wins and local state is always re-derived from it.
type Manager struct {
	mu sync.Mutex

	shared   *sharedstate.Store
	graph    Graph
	recorder Recorder
	live     Live
	notifier Notifier
	logger   *slog.Logger
	onChange func()

	tickInterval time.Duration
	now          func() time.Time

	state *ActiveSessionState
}

// NewManager creates a manager from deps.
func NewManager(d Deps) *Manager {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	tick := d.TickInterval
	if tick <= 0 {
		tick = time.Second
	}
	return &Manager{
		shared:       d.Shared,
		graph:        d.Graph,
		recorder:     d.Recorder,
		live:         d.Live,
		notifier:     d.Notifier,
		logger:       logger,
		onChange:     d.OnChange,
		tickInterval: tick,
		now:          now,
	}
}

// Status returns the current local run status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	switch {
	case m.state == nil:
		return StatusIdle
	case m.state.Paused:
		return StatusPaused
	default:
		return StatusRunning
	}
}

// Active returns a snapshot of the current state, or nil when idle. The
// returned value is a copy; mutating it has no effect.
func (m *Manager) Active() *ActiveSessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil
	}
	cp := *m.state
	cp.OnTick = nil
	cp.OnTargetReached = nil
	cp.ticker = nil
	cp.done = nil
	return &cp
}

// Start begins timing a session. If a different session is running it is
// ended locally first, without a history record: a local start always
// supersedes. Starting the session that is already running is a no-op.
func (m *Manager) Start(ctx context.Context, session *goals.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(ctx, session)
}

func (m *Manager) startLocked(ctx context.Context, session *goals.Session) error {
	if m.state != nil {
		if m.state.SessionID == session.ID && !m.state.Paused {
			return nil
		}
		// Local start supersedes whatever was running or paused.
		m.destroyLocked(true)
	}

	now := m.now()
	m.state = NewRun(session.ID, now, session.Elapsed, session.DailyTarget)
	m.state.now = m.now
	m.installHooksLocked(session)

	m.persistRunningLocked()
	m.state.StartUITimer(m.tickInterval, m.tickFor(m.state))

	if err := m.live.Start(m.attrsLocked(session), m.contentLocked(true)); err != nil {
		m.logger.Warn("start live status", "session", session.ID, "error", err)
	}
	if m.notifier != nil {
		m.notifier.RunStarted(session)
	}
	m.logger.Info("timer started", "session", session.ID, "goal", session.GoalID)
	m.changedLocked()
	return nil
}

// Stop ends the run for session, records the interval, clears the shared
// record, and ends the live status. A stop for a session that is not the
// current one is a no-op. The returned error, if any, is from the external
// sink write only; the local history record is durable regardless.
func (m *Manager) Stop(ctx context.Context, session *goals.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx, session)
}

func (m *Manager) stopLocked(ctx context.Context, session *goals.Session) error {
	if m.state == nil || m.state.SessionID != session.ID {
		return nil
	}

	m.state.StopUITimer()
	end := m.now()
	duration := m.state.RunElapsed()
	total := m.state.Elapsed()
	start := end.Add(-time.Duration(duration * float64(time.Second)))

	var sinkErr error
	if duration > 0 {
		_, err := m.recorder.Record(ctx, session.Title, start, end, session.GoalID)
		if err != nil {
			// The recorder only returns an error alongside a durable
			// record for sink failures; anything else is logged and the
			// stop proceeds.
			m.logger.Warn("record stopped run", "session", session.ID, "error", err)
			sinkErr = fmt.Errorf("external write for stopped run: %w", err)
		}
	}

	if err := m.graph.SaveSessionElapsed(session.ID, total); err != nil {
		m.logger.Warn("save session elapsed", "session", session.ID, "error", err)
	}

	if err := m.shared.Clear(); err != nil {
		m.logger.Warn("clear shared record", "error", err)
	}
	m.live.End()
	m.state = nil
	m.logger.Info("timer stopped", "session", session.ID, "duration_s", int(duration))
	m.changedLocked()
	return sinkErr
}

// Pause suspends the run without ending it. The live status stays visible,
// flagged inactive. Only valid while running.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseLocked()
}

func (m *Manager) pauseLocked() {
	if m.state == nil || m.state.Paused {
		return
	}

	m.state.StopUITimer()
	m.state.Pause()

	// The run's seconds live only in the shared record while paused; they
	// fold into the session row once, at stop. Writing the total here too
	// would count the interval twice on the next adoption or stop flag.
	id := m.state.SessionID
	if err := m.shared.Save(sharedstate.Record{
		PausedSessionID: sharedstate.StringPtr(id),
		ElapsedSeconds:  sharedstate.Float64Ptr(m.state.RunElapsed()),
	}); err != nil {
		m.logger.Warn("persist paused record", "session", id, "error", err)
	}

	// Pause must not make the surface disappear.
	m.live.Update(m.contentLocked(false))
	m.logger.Info("timer paused", "session", id)
	m.changedLocked()
}

// Resume restarts a paused run. Ticking and the persisted active id come
// back; the live status object is resumed, not recreated. Only valid while
// paused.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumeLocked()
}

func (m *Manager) resumeLocked() {
	if m.state == nil || !m.state.Paused {
		return
	}

	m.state.Resume(m.now())
	m.persistRunningLocked()
	m.state.StartUITimer(m.tickInterval, m.tickFor(m.state))
	m.live.Update(m.contentLocked(true))
	m.logger.Info("timer resumed", "session", m.state.SessionID)
	m.changedLocked()
}

// Toggle routes to Stop, Resume, or Start depending on the current state
// relative to session. The decision and the transition happen in one
// critical section, so a tick or a watcher-driven reconcile cannot slip in
// between reading the status and acting on it.
func (m *Manager) Toggle(ctx context.Context, session *goals.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sameID := m.state != nil && m.state.SessionID == session.ID
	switch {
	case sameID && !m.state.Paused:
		return m.stopLocked(ctx, session)
	case sameID && m.state.Paused:
		m.resumeLocked()
		return nil
	default:
		return m.startLocked(ctx, session)
	}
}

// LoadState recovers local state from the shared record at process launch.
// It is exactly one reconciliation pass.
func (m *Manager) LoadState(ctx context.Context) {
	m.Reconcile(ctx)
}

// Close stops ticking without touching persisted state; the shared record
// stays behind for the next process, which is how runs survive relaunch.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		m.state.StopUITimer()
	}
}

// ---- internal helpers (callers hold m.mu) ----

// destroyLocked tears down local state without recording anything.
// endLive controls whether the status surface is released too.
func (m *Manager) destroyLocked(endLive bool) {
	if m.state == nil {
		return
	}
	m.state.StopUITimer()
	m.state = nil
	if endLive {
		m.live.End()
	}
}

// persistRunningLocked mirrors the running state into the shared record:
// active id, start of the current interval, and run seconds accumulated
// before it. Failures are logged; persistence is fire-and-forget with the
// atomic write providing the flush.
func (m *Manager) persistRunningLocked() {
	rec := sharedstate.Record{
		ActiveSessionID: sharedstate.StringPtr(m.state.SessionID),
		StartDate:       sharedstate.Int64Ptr(m.state.StartDate.Unix()),
		ElapsedSeconds:  sharedstate.Float64Ptr(m.state.ElapsedAtStart - m.state.runBase),
	}
	if err := m.shared.Save(rec); err != nil {
		m.logger.Warn("persist running record", "session", m.state.SessionID, "error", err)
	}
}

// tickFor returns the callback the UI timer goroutine drives for s. It
// re-enters the manager lock before touching any state, and drops ticks
// aimed at a state that was destroyed or superseded while they were in
// flight.
func (m *Manager) tickFor(s *ActiveSessionState) func() {
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.state != s {
			return
		}
		s.Tick()
	}
}

// installHooksLocked wires the state callbacks. Both run with m.mu already
// held: Tick is only ever invoked through tickFor or by a caller holding
// the lock.
func (m *Manager) installHooksLocked(session *goals.Session) {
	sess := *session
	m.state.OnTick = func(elapsed float64) {
		m.live.Update(m.contentLocked(true))
	}
	m.state.OnTargetReached = func() {
		m.logger.Info("daily target reached", "session", sess.ID, "goal", sess.GoalID)
		if m.notifier != nil {
			m.notifier.TargetReached(&sess)
		}
	}
}

func (m *Manager) attrsLocked(session *goals.Session) livestatus.Attributes {
	theme := goals.DefaultTheme()
	title := session.Title
	if g, err := m.graph.GoalByID(session.GoalID); err == nil {
		if g.Theme.Primary != "" {
			theme = g.Theme
		}
		if title == "" {
			title = g.Title
		}
	}
	return livestatus.Attributes{
		SessionID:      session.ID,
		Title:          title,
		TargetSeconds:  session.DailyTarget,
		PrimaryColor:   theme.Primary,
		SecondaryColor: theme.Secondary,
		AccentColor:    theme.Accent,
	}
}

func (m *Manager) contentLocked(active bool) livestatus.Content {
	return livestatus.Content{
		ElapsedSeconds: m.state.Elapsed(),
		StartDate:      m.state.StartDate.Unix(),
		Active:         active,
	}
}

func (m *Manager) changedLocked() {
	if m.onChange != nil {
		m.onChange()
	}
}
