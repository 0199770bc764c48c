package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/momoosa/stride/internal/sharedstate"
	"github.com/momoosa/stride/internal/tui"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live view of today's goals",
		Long: `Open an interactive view of every goal's progress for today. The
view tracks timer changes made by other processes as they land in the
shared record.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			app.Manager.LoadState(cmd.Context())

			model := tui.NewModel(app.Manager, app.Store, cfg.GoalTheme())
			program := tea.NewProgram(model, tea.WithAltScreen())

			// Push external timer changes into the running program.
			watcher, err := sharedstate.NewWatcher(app.Shared, cfg.WatchDebounce(), func() {
				program.Send(tui.RefreshMsg{})
			}, app.Logger)
			if err != nil {
				return fmt.Errorf("watch shared record: %w", err)
			}
			watcher.Start()
			defer watcher.Close()

			_, err = program.Run()
			return err
		},
	}
}
