package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	diffmatchpatch "github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/momoosa/stride/internal/goals"
	"github.com/momoosa/stride/internal/output"
	"github.com/momoosa/stride/internal/store"
	"github.com/momoosa/stride/internal/util"
)

func newGoalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Manage goals",
		Long: `Create, list, archive, and remove goals, or move the whole set in
and out as YAML.

Examples:
  stride goals add "Meditate" --target 10m --metric mindfulness
  stride goals list
  stride goals archive meditate
  stride goals export > goals.yaml
  stride goals import goals.yaml --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoalsList(false)
		},
	}

	cmd.AddCommand(newGoalsAddCmd())
	cmd.AddCommand(newGoalsListCmd())
	cmd.AddCommand(newGoalsArchiveCmd())
	cmd.AddCommand(newGoalsRemoveCmd())
	cmd.AddCommand(newGoalsExportCmd())
	cmd.AddCommand(newGoalsImportCmd())

	return cmd
}

func newGoalsAddCmd() *cobra.Command {
	var (
		target string
		metric string
		notes  string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			g := &goals.Goal{
				ID:        goals.NewID(),
				Title:     args[0],
				Notes:     notes,
				Metric:    goals.Metric(metric),
				Theme:     cfg.GoalTheme(),
				CreatedAt: nowFunc(),
			}
			if !g.Metric.IsValid() {
				return fmt.Errorf("unknown metric %q (valid: %v)", metric, goals.ValidMetrics())
			}
			if target != "" {
				d, err := time.ParseDuration(target)
				if err != nil {
					return fmt.Errorf("parse target: %w", err)
				}
				g.DailyTarget = d.Seconds()
			}
			if err := app.Store.UpsertGoal(g); err != nil {
				return err
			}
			fmt.Printf("Added %s (%s)\n", g.Title, g.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "daily target, e.g. 10m or 1h30m")
	cmd.Flags().StringVar(&metric, "metric", string(goals.MetricNone), "metric kind for external sync")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func newGoalsListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoalsList(all)
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include archived goals")
	return cmd
}

func runGoalsList(includeArchived bool) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	list, err := app.Store.ListGoals(includeArchived)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No goals yet; add one with `stride goals add`")
		return nil
	}

	day := goals.DayKey(nowFunc())
	tbl := output.NewTable(os.Stdout, "TITLE", "TARGET", "TODAY", "METRIC", "ID")
	for _, g := range list {
		target := "-"
		if g.DailyTarget > 0 {
			target = util.FormatElapsed(g.DailyTarget)
		}
		today := "-"
		if sess, err := app.Store.SessionForGoalDay(g.ID, day); err == nil && sess.Elapsed > 0 {
			today = util.FormatElapsed(sess.Elapsed)
		}
		title := output.Truncate(g.Title, 32)
		if g.Archived {
			title += " (archived)"
		}
		tbl.AddRow(title, target, today, string(g.Metric), g.ID)
	}
	tbl.Render()
	fmt.Println()
	fmt.Println(output.CountStr(tbl.RowCount(), "goal", "goals"))
	return nil
}

func newGoalsArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <goal>",
		Short: "Archive a goal without deleting its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			g, err := resolveGoal(app.Store, args[0])
			if err != nil {
				return err
			}
			g.Archived = true
			if err := app.Store.UpsertGoal(g); err != nil {
				return err
			}
			fmt.Printf("Archived %s\n", g.Title)
			return nil
		},
	}
}

func newGoalsRemoveCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "rm <goal>",
		Short: "Delete a goal and all its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			g, err := resolveGoal(app.Store, args[0])
			if err != nil {
				return err
			}
			if !force {
				return fmt.Errorf("deleting %q removes its sessions too; re-run with --force", g.Title)
			}
			if err := app.Store.DeleteGoal(g.ID); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", g.Title)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	return cmd
}

// goalDoc is the YAML shape for export/import: durations as strings so the
// file stays hand-editable.
type goalDoc struct {
	ID       string      `yaml:"id,omitempty"`
	Title    string      `yaml:"title"`
	Notes    string      `yaml:"notes,omitempty"`
	Metric   string      `yaml:"metric,omitempty"`
	Target   string      `yaml:"target,omitempty"`
	Theme    goals.Theme `yaml:"theme,omitempty"`
	Archived bool        `yaml:"archived,omitempty"`
}

func exportGoalsYAML(st *store.Store) (string, error) {
	list, err := st.ListGoals(true)
	if err != nil {
		return "", err
	}
	return marshalGoalDocs(list)
}

func marshalGoalDocs(list []*goals.Goal) (string, error) {
	sorted := make([]*goals.Goal, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Title < sorted[j].Title })

	docs := make([]goalDoc, 0, len(sorted))
	for _, g := range sorted {
		doc := goalDoc{
			ID:       g.ID,
			Title:    g.Title,
			Notes:    g.Notes,
			Metric:   string(g.Metric),
			Theme:    g.Theme,
			Archived: g.Archived,
		}
		if g.DailyTarget > 0 {
			doc.Target = (time.Duration(g.DailyTarget) * time.Second).String()
		}
		docs = append(docs, doc)
	}
	out, err := yaml.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("marshal goals: %w", err)
	}
	return string(out), nil
}

func parseGoalsYAML(data []byte) ([]*goals.Goal, error) {
	var docs []goalDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse goals yaml: %w", err)
	}

	out := make([]*goals.Goal, 0, len(docs))
	for i, doc := range docs {
		if strings.TrimSpace(doc.Title) == "" {
			return nil, fmt.Errorf("goal %d: title is required", i+1)
		}
		g := &goals.Goal{
			ID:       doc.ID,
			Title:    doc.Title,
			Notes:    doc.Notes,
			Metric:   goals.Metric(doc.Metric),
			Theme:    doc.Theme,
			Archived: doc.Archived,
		}
		if g.ID == "" {
			g.ID = goals.NewID()
		}
		if doc.Metric == "" {
			g.Metric = goals.MetricNone
		}
		if !g.Metric.IsValid() {
			return nil, fmt.Errorf("goal %q: unknown metric %q", doc.Title, doc.Metric)
		}
		if g.Theme.Primary == "" {
			g.Theme = goals.DefaultTheme()
		}
		if doc.Target != "" {
			d, err := time.ParseDuration(doc.Target)
			if err != nil {
				return nil, fmt.Errorf("goal %q: parse target: %w", doc.Title, err)
			}
			g.DailyTarget = d.Seconds()
		}
		out = append(out, g)
	}
	return out, nil
}

func newGoalsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write all goals as YAML to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			out, err := exportGoalsYAML(app.Store)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}

func newGoalsImportCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import goals from a YAML file",
		Long: `Import goals from YAML. Goals with a matching id are updated,
the rest are created. With --dry-run nothing is written; a diff of the
goal set before and after is printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			imported, err := parseGoalsYAML(data)
			if err != nil {
				return err
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if dryRun {
				before, err := exportGoalsYAML(app.Store)
				if err != nil {
					return err
				}
				after, err := renderImportedYAML(app.Store, imported)
				if err != nil {
					return err
				}
				fmt.Print(diffText(before, after))
				return nil
			}

			for _, g := range imported {
				if g.CreatedAt.IsZero() {
					g.CreatedAt = nowFunc()
				}
				if err := app.Store.UpsertGoal(g); err != nil {
					return fmt.Errorf("import %q: %w", g.Title, err)
				}
			}
			fmt.Printf("Imported %s\n", output.CountStr(len(imported), "goal", "goals"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would change without writing")
	return cmd
}

// renderImportedYAML merges imported goals over the current set and renders
// the result the way export would, so the dry-run diff compares like with
// like.
func renderImportedYAML(st *store.Store, imported []*goals.Goal) (string, error) {
	current, err := st.ListGoals(true)
	if err != nil {
		return "", err
	}
	byID := make(map[string]*goals.Goal, len(current)+len(imported))
	for _, g := range current {
		byID[g.ID] = g
	}
	for _, g := range imported {
		byID[g.ID] = g
	}

	merged := make([]*goals.Goal, 0, len(byID))
	for _, g := range byID {
		merged = append(merged, g)
	}
	return marshalGoalDocs(merged)
}

// diffText renders a line diff between two YAML renderings.
func diffText(before, after string) string {
	if before == after {
		return "No changes\n"
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.Split(strings.TrimRight(d.Text, "\n"), "\n") {
			sb.WriteString(prefix + line + "\n")
		}
	}
	return sb.String()
}
