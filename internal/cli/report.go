package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/momoosa/stride/internal/store"
	"github.com/momoosa/stride/internal/util"
)

func newReportCmd() *cobra.Command {
	var (
		days int
		raw  bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a progress report",
		Long: `Summarize timed work per goal and per day as markdown. On a
terminal the report is rendered; pipe it or pass --raw for plain
markdown.`,
		Args: cobra.NoArgs,
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

			md := buildReport(records, days)
			if raw || !isatty.IsTerminal(os.Stdout.Fd()) {
				fmt.Print(md)
				return nil
			}

			wrap := 100
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && w < wrap {
				wrap = w
			}
			renderer, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(wrap),
			)
			if err != nil {
				fmt.Print(md)
				return nil
			}
			out, err := renderer.Render(md)
			if err != nil {
				fmt.Print(md)
				return nil
			}
			fmt.Print(out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&days, "days", "n", 7, "report window in days")
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without rendering")
	return cmd
}

// buildReport renders history records as markdown: totals per goal, then a
// day-by-day breakdown.
func buildReport(records []*store.HistoryRecord, days int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Stride report — last %d days\n\n", days)

	if len(records) == 0 {
		b.WriteString("No sessions recorded.\n")
		return b.String()
	}

	type goalTotal struct {
		title    string
		seconds  float64
		sessions int
	}
	byGoal := make(map[string]*goalTotal)
	byDay := make(map[string]float64)
	var dayKeys []string
	var total float64

	for _, r := range records {
		gt, ok := byGoal[r.GoalID]
		if !ok {
			gt = &goalTotal{title: r.Title}
			byGoal[r.GoalID] = gt
		}
		gt.seconds += r.DurationSeconds
		gt.sessions++
		total += r.DurationSeconds

		day := sessionDay(r.Start)
		if _, seen := byDay[day]; !seen {
			dayKeys = append(dayKeys, day)
		}
		byDay[day] += r.DurationSeconds
	}

	goalsSorted := make([]*goalTotal, 0, len(byGoal))
	for _, gt := range byGoal {
		goalsSorted = append(goalsSorted, gt)
	}
	sort.Slice(goalsSorted, func(i, j int) bool { return goalsSorted[i].seconds > goalsSorted[j].seconds })

	b.WriteString("## By goal\n\n")
	b.WriteString("| Goal | Time | Sessions |\n|---|---|---|\n")
	for _, gt := range goalsSorted {
		fmt.Fprintf(&b, "| %s | %s | %d |\n", gt.title, util.FormatElapsed(gt.seconds), gt.sessions)
	}
	fmt.Fprintf(&b, "\n**Total: %s**\n\n", util.FormatElapsed(total))

	sort.Sort(sort.Reverse(sort.StringSlice(dayKeys)))
	b.WriteString("## By day\n\n")
	for _, day := range dayKeys {
		fmt.Fprintf(&b, "- %s — %s\n", day, util.FormatElapsed(byDay[day]))
	}
	return b.String()
}
