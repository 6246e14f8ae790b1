package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/nao1215/checkfort/internal/model"
)

// lineWidth is the width of the simple report rules.
const lineWidth = 70

// messageWidth bounds the message column of one diagnostic line.
const messageWidth = 96

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with colour-coded severity
// letters and clear section formatting.
//
// Design decision: Colour is off unless WithColor(true) is given. The
// command layer enables it only for terminals, so piped output and files
// stay plain.
type SimpleWriter struct {
	baseWriter

	severityColor map[model.Severity]*color.Color
	heading       *color.Color
	dim           *color.Color
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...Option) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output, opts),
		severityColor: map[model.Severity]*color.Color{
			model.SeverityError:    color.New(color.FgRed, color.Bold),
			model.SeverityOverflow: color.New(color.FgMagenta, color.Bold),
			model.SeverityWarning:  color.New(color.FgYellow),
			model.SeverityInfo:     color.New(color.FgCyan),
		},
		heading: color.New(color.Bold),
		dim:     color.New(color.Faint),
	}

	all := []*color.Color{w.heading, w.dim}
	for _, c := range w.severityColor {
		all = append(all, c)
	}
	for _, c := range all {
		if w.color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return w
}

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeFiles(&sb, report)
	w.writeSection(&sb, "GLOBAL PROGRAM ANALYSIS", report.GlobalDiagnostics())
	w.writeUnresolved(&sb, report)
	w.writeWarnings(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, lineWidth))
	sb.WriteString("\n")
}

func (w *SimpleWriter) title(sb *strings.Builder, text string) {
	w.rule(sb, "-")
	sb.WriteString(w.heading.Sprint(text))
	sb.WriteString("\n")
	w.rule(sb, "-")
	sb.WriteString("\n")
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.Report) {
	run := report.Run

	sb.WriteString("\n")
	w.rule(sb, "=")
	sb.WriteString("                          FORCHECK REPORT\n")
	w.rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Run ID:    %s\n", run.RunID)
	fmt.Fprintf(sb, "Date:      %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if run.Version != "" {
		fmt.Fprintf(sb, "Forcheck:  %s\n", run.Version)
	}
	if run.Listfile != "" {
		fmt.Fprintf(sb, "Listfile:  %s\n", run.Listfile)
	}
	fmt.Fprintf(sb, "Status:    %s\n", statusText(run))
	if w.verbose && run.Command != "" {
		fmt.Fprintf(sb, "Command:   %s\n", run.Command)
	}
	sb.WriteString("\n")
}

// writeSummary writes the severity summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.Report) {
	w.title(sb, "SEVERITY SUMMARY")

	counts := report.CountBySeverity()
	for _, sev := range model.AllSeverities {
		label := fmt.Sprintf("%-12s", severityLabel(sev)+":")
		fmt.Fprintf(sb, "  %s %d\n", w.severityColor[sev].Sprint(label), counts.Get(sev))
	}
	sb.WriteString("\n")

	if !report.HasIssues() {
		sb.WriteString("  " + NoIssuesText + "\n\n")
		return
	}
	fmt.Fprintf(sb, "  TOTAL:       %d diagnostics in %d files\n\n", counts.Total(), len(report.FileGroups()))

	if len(report.SummaryMismatches) > 0 {
		for _, m := range report.SummaryMismatches {
			fmt.Fprintf(sb, "  ! %s: %d parsed, %d reported by FORCHECK\n", m.Code, m.Parsed, m.Reported)
		}
		sb.WriteString("\n")
	}
}

// writeFiles writes the diagnostics of each file, ordered by line.
func (w *SimpleWriter) writeFiles(sb *strings.Builder, report *model.Report) {
	groups := report.FileGroups()
	if len(groups) == 0 {
		return
	}

	w.title(sb, "FILES")
	for _, g := range groups {
		c := g.Counts()
		fmt.Fprintf(sb, "%s  %s\n", w.heading.Sprint(g.Path),
			w.dim.Sprintf("(E %d, O %d, W %d, I %d)", c.Error, c.Overflow, c.Warning, c.Info))
		for _, d := range g.Diagnostics {
			w.writeDiagnostic(sb, d)
		}
		sb.WriteString("\n")
	}
}

// writeDiagnostic writes one diagnostic line and, in verbose mode, its snippet.
func (w *SimpleWriter) writeDiagnostic(sb *strings.Builder, d model.Diagnostic) {
	line := "     -"
	if d.Line > 0 {
		line = fmt.Sprintf("%6d", d.Line)
	}
	code := w.severityColor[d.Severity()].Sprintf("[%s]", d.Code)
	fmt.Fprintf(sb, "  %s %s %s\n", line, code, truncate(messageText(d), messageWidth))

	if !w.verbose {
		return
	}
	snip, ok := w.snippet(d)
	if !ok {
		return
	}
	for _, l := range strings.Split(strings.TrimSuffix(snippetText(snip), "\n"), "\n") {
		sb.WriteString("          ")
		sb.WriteString(w.dim.Sprint(l))
		sb.WriteString("\n")
	}
}

// writeSection writes a list of diagnostics without line numbers.
func (w *SimpleWriter) writeSection(sb *strings.Builder, name string, diags []model.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	w.title(sb, name)
	for _, d := range diags {
		code := w.severityColor[d.Severity()].Sprintf("[%s]", d.Code)
		fmt.Fprintf(sb, "  %s %s\n", code, truncate(messageText(d), messageWidth))
	}
	sb.WriteString("\n")
}

// writeUnresolved lists the diagnostics shown without source.
func (w *SimpleWriter) writeUnresolved(sb *strings.Builder, report *model.Report) {
	unresolved := report.Unresolved()
	if len(unresolved) == 0 {
		return
	}
	w.title(sb, "DIAGNOSTICS WITHOUT SOURCE")
	for _, d := range unresolved {
		code := w.severityColor[d.Severity()].Sprintf("[%s]", d.Code)
		loc := d.Location()
		if loc == "" {
			loc = "unknown location"
		}
		fmt.Fprintf(sb, "  %s %s\n", code, truncate(d.Message, messageWidth))
		fmt.Fprintf(sb, "         %s\n", w.dim.Sprint(loc+": "+string(d.UnresolvedReason)))
	}
	sb.WriteString("\n")
}

// writeWarnings lists the listfile lines the parser skipped.
func (w *SimpleWriter) writeWarnings(sb *strings.Builder, report *model.Report) {
	if len(report.Warnings) == 0 {
		return
	}
	w.title(sb, "PARSE WARNINGS")
	for _, pw := range report.Warnings {
		fmt.Fprintf(sb, "  listfile line %s: %s\n", strconv.Itoa(pw.Line), pw.Reason)
		if w.verbose {
			fmt.Fprintf(sb, "    %s\n", truncate(pw.Text, messageWidth))
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	w.rule(sb, "=")
	fmt.Fprintf(sb, "Report generated by checkfort %s\n", w.version)
	w.rule(sb, "=")
}

// truncate shortens s to width terminal cells.
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
