package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/momoosa/stride/internal/config"
	"github.com/momoosa/stride/internal/goals"
	"github.com/momoosa/stride/internal/history"
	"github.com/momoosa/stride/internal/livestatus"
	"github.com/momoosa/stride/internal/metricsink"
	"github.com/momoosa/stride/internal/sharedstate"
	"github.com/momoosa/stride/internal/store"
	"github.com/momoosa/stride/internal/timer"
	"github.com/momoosa/stride/internal/util"
)

// nowFunc is swapped in tests.
var nowFunc = time.Now

// App wires the full engine for one command invocation.
type App struct {
	Cfg      *config.Config
	Store    *store.Store
	Shared   *sharedstate.Store
	Live     *livestatus.Controller
	Sink     metricsink.Sink
	Recorder *history.Recorder
	Manager  *timer.Manager
	Logger   *slog.Logger
}

// newApp opens the database and shared store and assembles the timer
// engine from the loaded config.
func newApp() (*App, error) {
	logger := slog.Default()

	if err := util.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	sharedDir := cfg.ResolvedSharedDir()
	shared, err := sharedstate.NewStore(sharedDir, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open shared store: %w", err)
	}

	var sink metricsink.Sink = metricsink.Disabled{}
	if cfg.Sync.Enabled && cfg.Sync.BaseURL != "" {
		sink = metricsink.NewHTTPSink(cfg.Sync.BaseURL, cfg.Sync.Token)
	}
	recorder := history.NewRecorder(st, sink, cfg.Sync.Enabled, logger)
	live := livestatus.NewController(sharedDir, cfg.StatusHorizon(), logger)

	mgr := timer.NewManager(timer.Deps{
		Shared:       shared,
		Graph:        st,
		Recorder:     recorder,
		Live:         live,
		Logger:       logger,
		TickInterval: cfg.TickInterval(),
	})

	return &App{
		Cfg:      cfg,
		Store:    st,
		Shared:   shared,
		Live:     live,
		Sink:     sink,
		Recorder: recorder,
		Manager:  mgr,
		Logger:   logger,
	}, nil
}

// Close releases the app's resources.
func (a *App) Close() {
	a.Manager.Close()
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("close store", "error", err)
	}
}

// resolveGoal finds a goal by id, exact title, or unique title prefix,
// case-insensitively.
func resolveGoal(st *store.Store, arg string) (*goals.Goal, error) {
	if g, err := st.GoalByID(arg); err == nil {
		return g, nil
	}

	list, err := st.ListGoals(false)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(arg)
	var prefix []*goals.Goal
	for _, g := range list {
		title := strings.ToLower(g.Title)
		if title == needle {
			return g, nil
		}
		if strings.HasPrefix(title, needle) {
			prefix = append(prefix, g)
		}
	}
	switch len(prefix) {
	case 1:
		return prefix[0], nil
	case 0:
		return nil, fmt.Errorf("no goal matches %q", arg)
	default:
		names := make([]string, len(prefix))
		for i, g := range prefix {
			names[i] = g.Title
		}
		return nil, fmt.Errorf("goal %q is ambiguous: %s", arg, strings.Join(names, ", "))
	}
}

// todaySession returns the goal's session row for today, creating it on
// first use.
func todaySession(a *App, g *goals.Goal) (*goals.Session, error) {
	return a.Store.SessionForGoalDay(g.ID, goals.DayKey(nowFunc()))
}
