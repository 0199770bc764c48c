package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/momoosa/stride/internal/goals"
	"github.com/momoosa/stride/internal/livestatus"
	"github.com/momoosa/stride/internal/sharedstate"
	"github.com/momoosa/stride/internal/store"
	"github.com/momoosa/stride/internal/timer"
)

// fakeData doubles as the watch view's data source and the manager's graph.
type fakeData struct {
	goals    []*goals.Goal
	sessions map[string]*goals.Session
}

func (f *fakeData) ListGoals(includeArchived bool) ([]*goals.Goal, error) {
	return f.goals, nil
}

func (f *fakeData) SessionForGoalDay(goalID, day string) (*goals.Session, error) {
	for _, s := range f.sessions {
		if s.GoalID == goalID && s.Day == day {
			return s, nil
		}
	}
	sess := &goals.Session{ID: "sess-" + goalID, GoalID: goalID, Day: day}
	for _, g := range f.goals {
		if g.ID == goalID {
			sess.Title = g.Title
			sess.DailyTarget = g.DailyTarget
		}
	}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeData) SessionByID(id string) (*goals.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeData) GoalByID(id string) (*goals.Goal, error) {
	for _, g := range f.goals {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeData) SaveSessionElapsed(id string, elapsed float64) error {
	if s, ok := f.sessions[id]; ok {
		s.Elapsed = elapsed
	}
	return nil
}

type nopRecorder struct{}

func (nopRecorder) Record(ctx context.Context, title string, start, end time.Time, goalID string) (*store.HistoryRecord, error) {
	return &store.HistoryRecord{}, nil
}

func testModel(t *testing.T) (Model, *fakeData, *sharedstate.Store) {
	t.Helper()

	dir := t.TempDir()
	shared, err := sharedstate.NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	data := &fakeData{
		goals: []*goals.Goal{
			{ID: "g1", Title: "Meditate", DailyTarget: 600, Theme: goals.DefaultTheme()},
			{ID: "g2", Title: "Read", DailyTarget: 1800, Theme: goals.DefaultTheme()},
		},
		sessions: make(map[string]*goals.Session),
	}
	mgr := timer.NewManager(timer.Deps{
		Shared:       shared,
		Graph:        data,
		Recorder:     nopRecorder{},
		Live:         livestatus.NewController(dir, 0, nil),
		TickInterval: time.Hour,
	})
	t.Cleanup(mgr.Close)

	return NewModel(mgr, data, goals.DefaultTheme()), data, shared
}

func TestModelLoadsGoals(t *testing.T) {
	t.Parallel()

	m, _, _ := testModel(t)
	view := m.View()
	if !strings.Contains(view, "Meditate") || !strings.Contains(view, "Read") {
		t.Errorf("view missing goals:\n%s", view)
	}
}

func TestCursorMovement(t *testing.T) {
	t.Parallel()

	m, _, _ := testModel(t)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.cursor != 1 {
		t.Errorf("cursor = %d after down, want 1", m.cursor)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.cursor != 1 {
		t.Errorf("cursor = %d at bottom, want clamped to 1", m.cursor)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	if m.cursor != 0 {
		t.Errorf("cursor = %d after up, want 0", m.cursor)
	}
}

func TestSpaceTogglesSelectedGoal(t *testing.T) {
	t.Parallel()

	m, _, _ := testModel(t)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = next.(Model)

	if got := m.mgr.Status(); got != timer.StatusRunning {
		t.Fatalf("Status() = %v after space, want running", got)
	}
	if !strings.Contains(m.View(), "▶") {
		t.Errorf("view missing running badge:\n%s", m.View())
	}

	// Space again on the running goal stops it.
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = next.(Model)
	if got := m.mgr.Status(); got != timer.StatusIdle {
		t.Errorf("Status() = %v after second space, want idle", got)
	}
}

func TestRefreshMsgReconciles(t *testing.T) {
	t.Parallel()

	m, data, shared := testModel(t)

	// Another process started a run; only the shared record knows.
	sess, err := data.SessionForGoalDay("g1", goals.DayKey(time.Now()))
	if err != nil {
		t.Fatalf("SessionForGoalDay() error: %v", err)
	}
	rec := sharedstate.Record{
		ActiveSessionID: sharedstate.StringPtr(sess.ID),
		StartDate:       sharedstate.Int64Ptr(time.Now().Unix()),
	}
	if err := shared.Save(rec); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	next, _ := m.Update(RefreshMsg{})
	m = next.(Model)
	if got := m.mgr.Status(); got != timer.StatusRunning {
		t.Errorf("Status() = %v after refresh, want running (adopted)", got)
	}
}
