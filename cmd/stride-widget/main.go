// stride-widget is the non-authoritative timer control. It sees only the
// shared record, never the goal database: it can flip a run between active
// and paused or flag it stopped, and the next stride process to reconcile
// turns that flag into a history record. It must never invent state for a
// session it did not find in the record.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/momoosa/stride/internal/sharedstate"
	"github.com/momoosa/stride/internal/util"
)

func main() {
	root := &cobra.Command{
		Use:           "stride-widget",
		Short:         "Control the stride timer from outside the main app",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newStatusCmd(), newToggleCmd(), newPauseCmd(), newResumeCmd(), newStopCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openShared() (*sharedstate.Store, error) {
	dir, err := util.SharedDir()
	if err != nil {
		return nil, err
	}
	return sharedstate.NewStore(dir, nil)
}

// runElapsed computes the run's accumulated seconds as of now: the folded
// value plus wall time since the persisted start when active.
func runElapsed(rec sharedstate.Record, now time.Time) float64 {
	elapsed := rec.Elapsed()
	if _, active := rec.Active(); active && rec.Start() > 0 {
		elapsed += now.Sub(time.Unix(rec.Start(), 0)).Seconds()
	}
	return elapsed
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the shared timer record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openShared()
			if err != nil {
				return err
			}
			rec := store.Load()
			switch {
			case rec.IsZero():
				fmt.Println("idle")
			default:
				elapsed := util.FormatElapsed(runElapsed(rec, time.Now()))
				if id, ok := rec.Active(); ok {
					fmt.Printf("running %s %s\n", id, elapsed)
				} else if id, ok := rec.Paused(); ok {
					fmt.Printf("paused %s %s\n", id, elapsed)
				} else if id, ok := rec.Stopped(); ok {
					fmt.Printf("stopping %s\n", id)
				}
			}
			return nil
		},
	}
}

// pauseRecord moves an active run to the paused slot, folding the wall time
// since start into elapsed. Returns the user-facing outcome.
func pauseRecord(r *sharedstate.Record, now time.Time) string {
	id, ok := r.Active()
	if !ok {
		return "nothing to pause"
	}
	folded := runElapsed(*r, now)
	r.ActiveSessionID = nil
	r.StartDate = nil
	r.PausedSessionID = sharedstate.StringPtr(id)
	r.ElapsedSeconds = sharedstate.Float64Ptr(folded)
	return fmt.Sprintf("paused %s at %s", id, util.FormatElapsed(folded))
}

// resumeRecord moves a paused run back to active with a fresh start; the
// folded elapsed seconds stay in place.
func resumeRecord(r *sharedstate.Record, now time.Time) string {
	id, ok := r.Paused()
	if !ok {
		return "nothing to resume"
	}
	r.PausedSessionID = nil
	r.ActiveSessionID = sharedstate.StringPtr(id)
	r.StartDate = sharedstate.Int64Ptr(now.Unix())
	return fmt.Sprintf("resumed %s", id)
}

func mutateCmd(use, short string, fn func(r *sharedstate.Record, now time.Time) string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openShared()
			if err != nil {
				return err
			}
			now := time.Now()
			var result string
			if err := store.Mutate(func(r *sharedstate.Record) {
				result = fn(r, now)
			}); err != nil {
				return err
			}
			fmt.Println(result)
			return nil
		},
	}
}

func newPauseCmd() *cobra.Command {
	return mutateCmd("pause", "Pause the active run", pauseRecord)
}

func newResumeCmd() *cobra.Command {
	return mutateCmd("resume", "Resume the paused run", resumeRecord)
}

func newToggleCmd() *cobra.Command {
	return mutateCmd("toggle", "Pause the active run, or resume the paused one",
		func(r *sharedstate.Record, now time.Time) string {
			if _, ok := r.Active(); ok {
				return pauseRecord(r, now)
			}
			if _, ok := r.Paused(); ok {
				return resumeRecord(r, now)
			}
			return "nothing to toggle"
		})
}

func newStopCmd() *cobra.Command {
	cmd := mutateCmd("stop", "Flag the current run as stopped",
		func(r *sharedstate.Record, now time.Time) string {
			id, ok := r.Active()
			if !ok {
				id, ok = r.Paused()
			}
			if !ok {
				return "nothing to stop"
			}
			folded := runElapsed(*r, now)
			r.ActiveSessionID = nil
			r.PausedSessionID = nil
			r.StartDate = nil
			r.StoppedSessionID = sharedstate.StringPtr(id)
			r.ElapsedSeconds = sharedstate.Float64Ptr(folded)
			return fmt.Sprintf("stopped %s at %s", id, util.FormatElapsed(folded))
		})
	cmd.Long = `End the current run. The widget cannot write history itself, so it
leaves a stop flag with the run's elapsed seconds; the main app turns
it into a history record on its next reconciliation.`
	return cmd
}
