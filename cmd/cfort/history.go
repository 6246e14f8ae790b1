package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/checkfort/internal/database"
	"github.com/nao1215/checkfort/internal/model"
	"github.com/nao1215/checkfort/internal/report"
)

// Constants for trend direction and summary messages.
const (
	trendWorsened  = "worsened"
	trendImproved  = "improved"
	trendUnchanged = "unchanged"
	noIssuesShort  = "No issues"
)

// errHistoryDisabled is returned when the configuration turns history off.
var errHistoryDisabled = errors.New("run history is disabled (no_history is set in the configuration file)")

// NewHistoryCmd creates the history command.
// This command lists and compares the runs stored in the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List and compare previous runs",
		Long: `History displays differences between the two latest runs of a project.

Every run of cfort is recorded in the history database, grouped by the
directory cfort was started in. The comparison shows:
- Message codes that appeared since the previous run
- Message codes that no longer occur
- Message codes whose number of occurrences changed

Examples:
  # Compare the latest two runs of the current directory
  cfort history

  # List all runs of the current directory
  cfort history --list

  # Compare a specific run with the latest one
  cfort history --with-run-id 0b6f...

  # Print a stored report
  cfort history --show 0b6f... --markdown

  # Output the comparison in JSON format
  cfort history --json

  # List all projects in the database
  cfort history --list-projects`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	// Listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List the runs of the project")
	cmd.Flags().BoolP("list-projects", "L", false,
		"List all projects in the database")
	cmd.Flags().StringP("project", "P", "",
		"Project directory (default: current directory)")

	// Run selection flags
	cmd.Flags().StringP("with-run-id", "i", "",
		"Compare the latest run with this run (use --list to see available IDs)")
	cmd.Flags().String("show", "",
		"Print the stored report of this run")
	cmd.Flags().String("delete", "",
		"Delete this run from the database")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")

	cmd.Flags().String("config", "",
		"Configuration file path")

	return cmd
}

// historyOptions holds the parsed flags of the history command.
type historyOptions struct {
	list         bool
	listProjects bool
	project      string
	withRunID    string
	show         string
	remove       string
	json         bool
	markdown     bool
}

func readHistoryOptions(cmd *cobra.Command) (*historyOptions, error) {
	var (
		o   historyOptions
		err error
	)
	flags := cmd.Flags()
	if o.list, err = flags.GetBool("list"); err != nil {
		return nil, err
	}
	if o.listProjects, err = flags.GetBool("list-projects"); err != nil {
		return nil, err
	}
	if o.project, err = flags.GetString("project"); err != nil {
		return nil, err
	}
	if o.withRunID, err = flags.GetString("with-run-id"); err != nil {
		return nil, err
	}
	if o.show, err = flags.GetString("show"); err != nil {
		return nil, err
	}
	if o.remove, err = flags.GetString("delete"); err != nil {
		return nil, err
	}
	if o.json, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if o.markdown, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}

	if o.json && o.markdown {
		return nil, errors.New("--json and --markdown cannot be used together")
	}

	if o.project == "" {
		o.project = projectDir()
	} else if abs, err := filepath.Abs(o.project); err == nil {
		o.project = abs
	}
	return &o, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	// Validate flags before opening the database
	// This prevents database lock issues when validation fails
	opts, err := readHistoryOptions(cmd)
	if err != nil {
		return err
	}

	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}
	if cfg.DBDir == "" {
		return errHistoryDisabled
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	switch {
	case opts.listProjects:
		return listProjects(ctx, w, db)
	case opts.list:
		return listRuns(ctx, w, db, opts.project)
	case opts.remove != "":
		if err := db.DeleteRun(ctx, opts.remove); err != nil {
			return err
		}
		fmt.Fprintf(w, "Deleted run %s\n", opts.remove)
		return nil
	case opts.show != "":
		return showRun(ctx, w, db, opts)
	default:
		return runComparison(ctx, w, db, opts)
	}
}

// listProjects lists all projects that have runs in the database.
func listProjects(ctx context.Context, w io.Writer, db *database.HistoryDB) error {
	projects, err := db.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if len(projects) == 0 {
		fmt.Fprintln(w, "No runs found in the database.")
		fmt.Fprintln(w, "\nRun 'cfort <files/dirs>' to analyse a project.")
		return nil
	}

	fmt.Fprintf(w, "Projects (%d):\n\n", len(projects))
	for _, p := range projects {
		fmt.Fprintf(w, "  • %s\n", p)
	}
	fmt.Fprintln(w, "\nUse 'cfort history --list --project <dir>' to see the runs of a project.")
	return nil
}

// listRuns lists all runs of a project.
func listRuns(ctx context.Context, w io.Writer, db *database.HistoryDB, project string) error {
	runs, err := db.ListRuns(ctx, project)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(w, "No runs found for %s\n", project)
		return nil
	}

	fmt.Fprintf(w, "Run history for %s (%d runs):\n\n", project, len(runs))
	fmt.Fprintf(w, "  %-36s  %-19s  %-6s  %s\n", "Run ID", "Date", "Exit", "Summary")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 80))

	for _, run := range runs {
		exit := "-"
		if run.Executed {
			exit = strconv.Itoa(run.ExitCode)
		}
		fmt.Fprintf(w, "  %-36s  %-19s  %-6s  %s\n",
			run.RunID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			exit,
			formatCounts(run.Counts),
		)
	}

	fmt.Fprintln(w, "\nUse 'cfort history' to compare the latest two runs.")
	fmt.Fprintln(w, "Use 'cfort history --with-run-id <id>' to compare with a specific run.")
	return nil
}

// formatCounts formats severity counts as "E:2 W:5".
func formatCounts(c model.SeverityCounts) string {
	var parts []string
	for _, sev := range model.AllSeverities {
		if n := c.Get(sev); n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", sev.Letter(), n))
		}
	}
	if len(parts) == 0 {
		return noIssuesShort
	}
	return strings.Join(parts, " ")
}

// showRun prints a stored report in the requested format.
func showRun(ctx context.Context, w io.Writer, db *database.HistoryDB, opts *historyOptions) error {
	rep, err := db.GetRun(ctx, opts.show)
	if err != nil {
		return err
	}

	var writer report.Writer
	switch {
	case opts.json:
		writer = report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case opts.markdown:
		writer = report.NewMarkdownWriter(w, report.WithVersion(getVersion()))
	default:
		writer = report.NewSimpleWriter(w, report.WithVersion(getVersion()))
	}
	_, err = writer.Write(rep)
	return err
}

// runComparison compares the latest run of the project with the previous
// one or the run given with --with-run-id.
func runComparison(ctx context.Context, w io.Writer, db *database.HistoryDB, opts *historyOptions) error {
	runs, err := db.LatestRuns(ctx, opts.project, 2)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}
	if len(runs) == 0 {
		return fmt.Errorf("no runs found for %s", opts.project)
	}

	current := runs[0]
	var previous database.RunSummary
	switch {
	case opts.withRunID != "":
		previous, err = db.GetRunSummary(ctx, opts.withRunID)
		if err != nil {
			return err
		}
		if previous.Project != opts.project {
			return fmt.Errorf("run %s belongs to %s, not %s", opts.withRunID, previous.Project, opts.project)
		}
		if previous.RunID == current.RunID {
			return fmt.Errorf("run %s is the latest run; pick an older one", opts.withRunID)
		}
	case len(runs) < 2:
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	default:
		previous = runs[1]
	}

	cmp, err := db.CompareRuns(ctx, previous, current)
	if err != nil {
		return err
	}

	switch {
	case opts.json:
		return outputComparisonJSON(w, cmp)
	case opts.markdown:
		return outputComparisonMarkdown(w, cmp)
	default:
		outputComparisonText(w, cmp)
		return nil
	}
}

// trend compares the runs by severity-weighted totals.
// Errors weigh most; informative messages least.
func trend(cmp *database.Comparison) string {
	score := func(c model.SeverityCounts) int {
		return c.Error*100 + c.Overflow*50 + c.Warning*10 + c.Info
	}
	before, after := score(cmp.Previous.Counts), score(cmp.Current.Counts)
	switch {
	case after < before:
		return trendImproved
	case after > before:
		return trendWorsened
	default:
		return trendUnchanged
	}
}

// comparisonOutput is the JSON form of a comparison.
type comparisonOutput struct {
	*database.Comparison
	Trend string `json:"trend"`
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(w io.Writer, cmp *database.Comparison) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(comparisonOutput{Comparison: cmp, Trend: trend(cmp)})
}

// severityRows returns one row per severity plus the total.
func severityRows(cmp *database.Comparison) [][]string {
	prev, cur := cmp.Previous.Counts, cmp.Current.Counts
	rows := make([][]string, 0, len(model.AllSeverities)+1)
	for _, sev := range model.AllSeverities {
		rows = append(rows, []string{
			sev.String(),
			strconv.Itoa(prev.Get(sev)),
			strconv.Itoa(cur.Get(sev)),
			formatDelta(cur.Get(sev) - prev.Get(sev)),
		})
	}
	rows = append(rows, []string{
		"TOTAL",
		strconv.Itoa(prev.Total()),
		strconv.Itoa(cur.Total()),
		formatDelta(cur.Total() - prev.Total()),
	})
	return rows
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(w io.Writer, cmp *database.Comparison) error {
	md := markdown.NewMarkdown(w)
	md.H1("Run Comparison: " + cmp.Current.Project)
	md.PlainText("")
	md.PlainText("**Trend:** " + formatTrend(trend(cmp)))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Previous", "Current"},
		Rows: [][]string{
			{"Run ID", "`" + cmp.Previous.RunID + "`", "`" + cmp.Current.RunID + "`"},
			{"Date",
				cmp.Previous.StartedAt.Local().Format("2006-01-02 15:04"),
				cmp.Current.StartedAt.Local().Format("2006-01-02 15:04")},
		},
	})
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Previous", "Current", "Change"},
		Rows:   severityRows(cmp),
	})

	section := func(title string, changes []database.CodeChange, row func(database.CodeChange) []string) {
		if len(changes) == 0 {
			return
		}
		md.PlainText("")
		md.H2(fmt.Sprintf("%s (%d)", title, len(changes)))
		md.PlainText("")
		rows := make([][]string, 0, len(changes))
		for _, c := range changes {
			rows = append(rows, row(c))
		}
		md.Table(markdown.TableSet{
			Header: []string{"Code", "Previous", "Current", "Change"},
			Rows:   rows,
		})
	}
	row := func(c database.CodeChange) []string {
		return []string{"`" + c.Code.String() + "`", strconv.Itoa(c.Before), strconv.Itoa(c.After), formatDelta(c.Delta())}
	}
	section("New Messages", cmp.New, row)
	section("Resolved Messages", cmp.Resolved, row)
	section("Changed Messages", cmp.Changed, row)

	if !cmp.HasChanges() {
		md.PlainText("")
		md.PlainText("*No changes in message counts*")
	}
	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(w io.Writer, cmp *database.Comparison) {
	fmt.Fprintf(w, "Run Comparison: %s\n", cmp.Current.Project)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintf(w, "\nTrend: %s\n", formatTrend(trend(cmp)))

	fmt.Fprintf(w, "\nPrevious run: %s  %s\n", cmp.Previous.StartedAt.Local().Format("2006-01-02 15:04:05"), cmp.Previous.RunID)
	fmt.Fprintf(w, "Current run:  %s  %s\n", cmp.Current.StartedAt.Local().Format("2006-01-02 15:04:05"), cmp.Current.RunID)

	fmt.Fprintln(w, "\nMessages Summary:")
	fmt.Fprintf(w, "  %-10s  %-10s  %-10s  %-10s\n", "Severity", "Previous", "Current", "Change")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 45))
	rows := severityRows(cmp)
	for i, r := range rows {
		if i == len(rows)-1 {
			fmt.Fprintln(w, "  "+strings.Repeat("-", 45))
		}
		fmt.Fprintf(w, "  %-10s  %-10s  %-10s  %-10s\n", r[0], r[1], r[2], r[3])
	}

	if len(cmp.New) > 0 {
		fmt.Fprintf(w, "\nNew Messages (%d):\n", len(cmp.New))
		for _, c := range cmp.New {
			fmt.Fprintf(w, "  [+] [%s] %dx\n", c.Code, c.After)
		}
	}
	if len(cmp.Resolved) > 0 {
		fmt.Fprintf(w, "\nResolved Messages (%d):\n", len(cmp.Resolved))
		for _, c := range cmp.Resolved {
			fmt.Fprintf(w, "  [-] [%s] %dx\n", c.Code, c.Before)
		}
	}
	if len(cmp.Changed) > 0 {
		fmt.Fprintf(w, "\nChanged Messages (%d):\n", len(cmp.Changed))
		for _, c := range cmp.Changed {
			fmt.Fprintf(w, "  [~] [%s] %d -> %d (%s)\n", c.Code, c.Before, c.After, formatDelta(c.Delta()))
		}
	}
	if !cmp.HasChanges() {
		fmt.Fprintln(w, "\nNo changes in message counts.")
	}
}

// formatTrend formats the trend for display.
func formatTrend(t string) string {
	switch t {
	case trendImproved:
		return "IMPROVED (fewer or less severe messages)"
	case trendWorsened:
		return "WORSENED (more or more severe messages)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	} else if delta < 0 {
		return strconv.Itoa(delta)
	}
	return "0"
}
