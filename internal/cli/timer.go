package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/momoosa/stride/internal/output"
	"github.com/momoosa/stride/internal/timer"
	"github.com/momoosa/stride/internal/util"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <goal>",
		Short: "Start timing a goal",
		Long: `Start the timer for a goal's session today. If another session is
running it ends first; a start always supersedes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			app.Manager.LoadState(ctx)

			goal, err := resolveGoal(app.Store, args[0])
			if err != nil {
				return err
			}
			sess, err := todaySession(app, goal)
			if err != nil {
				return err
			}
			if err := app.Manager.Start(ctx, sess); err != nil {
				return err
			}
			fmt.Printf("Started %s (%s today)\n", goal.Title, util.FormatElapsed(sess.Elapsed))
			return nil
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			app.Manager.LoadState(ctx)

			state := app.Manager.Active()
			if state == nil {
				fmt.Println("Nothing is running")
				return nil
			}
			sess, err := app.Store.SessionByID(state.SessionID)
			if err != nil {
				return err
			}
			elapsed := state.Elapsed()
			if err := app.Manager.Stop(ctx, sess); err != nil {
				// The session is recorded locally; only the external write
				// failed. Surface it without failing the stop.
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
			fmt.Printf("Stopped %s at %s today\n", sess.Title, util.FormatElapsed(elapsed))
			return nil
		},
	}
}

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the running session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			app.Manager.LoadState(cmd.Context())
			if app.Manager.Status() != timer.StatusRunning {
				fmt.Println("Nothing is running")
				return nil
			}
			app.Manager.Pause()
			state := app.Manager.Active()
			fmt.Printf("Paused at %s\n", util.FormatElapsed(state.Elapsed()))
			return nil
		},
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume the paused session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			app.Manager.LoadState(cmd.Context())
			if app.Manager.Status() != timer.StatusPaused {
				fmt.Println("Nothing is paused")
				return nil
			}
			app.Manager.Resume()
			fmt.Println("Resumed")
			return nil
		},
	}
}

func newToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <goal>",
		Short: "Start, stop, or resume a goal's timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			app.Manager.LoadState(ctx)

			goal, err := resolveGoal(app.Store, args[0])
			if err != nil {
				return err
			}
			sess, err := todaySession(app, goal)
			if err != nil {
				return err
			}
			if err := app.Manager.Toggle(ctx, sess); err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", goal.Title, app.Manager.Status())
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current timer state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			app.Manager.LoadState(cmd.Context())
			return printStatus(app)
		},
	}
}

func printStatus(app *App) error {
	f := output.NewFormatter(os.Stdout)
	color := output.ColorEnabled(os.Stdout)

	state := app.Manager.Active()
	if state == nil {
		f.Printf("%s\n", output.StatusBadge("idle", color))
		return nil
	}

	sess, err := app.Store.SessionByID(state.SessionID)
	if err != nil {
		return err
	}
	f.Printf("%s  %s  %s", output.StatusBadge(string(app.Manager.Status()), color),
		sess.Title, util.FormatElapsed(state.Elapsed()))
	if sess.DailyTarget > 0 {
		f.Printf(" / %s", util.FormatElapsed(sess.DailyTarget))
		if state.Elapsed() >= sess.DailyTarget {
			f.Printf("  ✓")
		}
	}
	f.Line()
	if !state.Paused {
		f.Printf("  started %s\n", state.StartDate.Format(time.Kitchen))
	}
	return nil
}
