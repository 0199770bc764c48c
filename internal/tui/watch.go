// Package tui implements the interactive watch view: every goal for the
// day with its progress toward the daily target, live elapsed time for the
// running session, and key bindings to drive the timer without leaving the
// screen.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"

	"github.com/momoosa/stride/internal/goals"
	"github.com/momoosa/stride/internal/timer"
	"github.com/momoosa/stride/internal/util"
)

// Data is the slice of the goal store the watch view reads.
type Data interface {
	ListGoals(includeArchived bool) ([]*goals.Goal, error)
	SessionForGoalDay(goalID, day string) (*goals.Session, error)
}

// RefreshMsg asks the model to reconcile and reload. The CLI sends it when
// the shared record changes on disk.
type RefreshMsg struct{}

type tickMsg time.Time

type row struct {
	goal    *goals.Goal
	session *goals.Session
	bar     progress.Model
}

// Model is the bubbletea model for `stride watch`.
type Model struct {
	mgr    *timer.Manager
	data   Data
	styles Styles
	now    func() time.Time

	rows   []row
	cursor int
	width  int
	err    error
}

// NewModel builds the watch model and performs the initial load.
func NewModel(mgr *timer.Manager, data Data, theme goals.Theme) Model {
	m := Model{
		mgr:    mgr,
		data:   data,
		styles: NewStyles(theme),
		now:    time.Now,
		width:  80,
	}
	m.err = m.reload()
	return m
}

func (m *Model) reload() error {
	list, err := m.data.ListGoals(false)
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}
	day := goals.DayKey(m.now())
	rows := make([]row, 0, len(list))
	for _, g := range list {
		sess, err := m.data.SessionForGoalDay(g.ID, day)
		if err != nil {
			return fmt.Errorf("session for %s: %w", g.ID, err)
		}
		bar := progress.New(
			progress.WithGradient(g.Theme.Secondary, g.Theme.Primary),
			progress.WithoutPercentage(),
		)
		bar.Width = m.barWidth()
		rows = append(rows, row{goal: g, session: sess, bar: bar})
	}
	m.rows = rows
	if m.cursor >= len(m.rows) {
		m.cursor = max(0, len(m.rows)-1)
	}
	return nil
}

func (m Model) barWidth() int {
	w := m.width - 44
	if w < 10 {
		w = 10
	}
	if w > 40 {
		w = 40
	}
	return w
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the per-second refresh.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles key, tick, resize, and external-change messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		case " ", "enter":
			if m.cursor < len(m.rows) {
				sess := m.rows[m.cursor].session
				if err := m.mgr.Toggle(context.Background(), sess); err != nil {
					m.err = err
				}
				m.err = m.reload()
			}
		case "p":
			switch m.mgr.Status() {
			case timer.StatusRunning:
				m.mgr.Pause()
			case timer.StatusPaused:
				m.mgr.Resume()
			}
		}
		return m, nil

	case tickMsg:
		return m, tick()

	case RefreshMsg:
		m.mgr.Reconcile(context.Background())
		m.err = m.reload()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		for i := range m.rows {
			m.rows[i].bar.Width = m.barWidth()
		}
		return m, nil
	}
	return m, nil
}

// View renders the goal list.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("stride"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(m.styles.Badge.Render("! " + m.err.Error()))
		b.WriteString("\n\n")
	}
	if len(m.rows) == 0 {
		b.WriteString(m.styles.Dimmed.Render("  no goals yet; add one with `stride goals add`"))
		b.WriteString("\n")
	}

	active := m.mgr.Active()
	status := m.mgr.Status()

	for i, r := range m.rows {
		elapsed := r.session.Elapsed
		badge := "  "
		if active != nil && active.SessionID == r.session.ID {
			elapsed = active.Elapsed()
			if status == timer.StatusPaused {
				badge = m.styles.Badge.Render("⏸ ")
			} else {
				badge = m.styles.Badge.Render("▶ ")
			}
		}

		title := r.goal.Title
		if i == m.cursor {
			title = m.styles.Selected.Render("› " + title)
		} else {
			title = m.styles.Dimmed.Render("  " + title)
		}

		var pct float64
		if r.session.DailyTarget > 0 {
			pct = elapsed / r.session.DailyTarget
			if pct > 1 {
				pct = 1
			}
		}

		line := fmt.Sprintf("%s%-24s %s %s", badge, title, r.bar.ViewAs(pct),
			m.styles.Elapsed.Render(util.FormatElapsed(elapsed)))
		if r.session.DailyTarget > 0 {
			line += m.styles.Target.Render(" / " + util.FormatElapsed(r.session.DailyTarget))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.cursor < len(m.rows) {
		if notes := m.rows[m.cursor].goal.Notes; notes != "" {
			b.WriteString("\n")
			wrapped := wordwrap.String(notes, min(m.width-4, 76))
			for _, line := range strings.Split(wrapped, "\n") {
				b.WriteString(m.styles.Dimmed.Render("  " + line))
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("  ↑/↓ select · space toggle · p pause/resume · q quit"))
	b.WriteString("\n")
	return b.String()
}
