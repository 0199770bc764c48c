package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/momoosa/stride/internal/output"
	"github.com/momoosa/stride/internal/store"
	"github.com/momoosa/stride/internal/util"
)

func newHistoryCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			to := nowFunc()
			from := to.AddDate(0, 0, -days)
			records, err := app.Store.HistoryBetween(from, to)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Printf("No sessions in the last %s\n", output.CountStr(days, "day", "days"))
				return nil
			}

			tbl := output.NewTable(os.Stdout, "DATE", "TITLE", "DURATION", "SOURCE", "SYNCED")
			var total float64
			for _, r := range records {
				synced := "-"
				switch {
				case r.ExternalID != "":
					synced = "yes"
				case r.NeedsSync:
					synced = "pending"
				}
				tbl.AddRow(
					r.Start.Local().Format("Mon Jan 02 15:04"),
					output.Truncate(r.Title, 32),
					util.FormatElapsed(r.DurationSeconds),
					string(r.Source),
					synced,
				)
				if r.Source == store.RecordSourceTimer {
					total += r.DurationSeconds
				}
			}
			tbl.Render()
			fmt.Println()
			fmt.Printf("%s timed over %s\n", util.FormatElapsed(total),
				output.CountStr(days, "day", "days"))
			return nil
		},
	}
	cmd.Flags().IntVarP(&days, "days", "n", 7, "how many days back to list")
	return cmd
}

func newSyncCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync history with the external metric service",
		Long: `Push locally recorded sessions that have not reached the external
metric service yet, and pull externally created sessions into history.
Requires sync to be enabled in the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			to := nowFunc()
			from := to.AddDate(0, 0, -days)
			res, err := app.Recorder.Sync(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			fmt.Printf("Pushed %d, pulled %d", res.Pushed, res.Pulled)
			if res.Failed > 0 {
				fmt.Printf(", %d failed", res.Failed)
			}
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().IntVarP(&days, "days", "n", 30, "sync window in days")
	return cmd
}

// sessionDay groups history records by local day for the report.
func sessionDay(t time.Time) string {
	return t.Local().Format("2006-01-02")
}
