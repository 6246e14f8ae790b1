package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/checkfort/internal/model"
	"github.com/nao1215/checkfort/internal/source"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation, pull request comments and
// sharing results outside the HTML report.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts and mermaid charts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...Option) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output, opts)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeEvents(md, report)
	w.writeFiles(md, report)
	w.writeGlobal(md, report)
	w.writeUnresolved(md, report)
	w.writeWarnings(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	md.H1("FORCHECK Report")
	md.PlainText("")

	run := report.Run
	rows := [][]string{
		{"Run ID", "`" + run.RunID + "`"},
		{"Date", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Status", statusText(run)},
	}
	if run.Version != "" {
		rows = append(rows, []string{"Forcheck version", run.Version})
	}
	if run.Command != "" {
		rows = append(rows, []string{"Command", "`" + escapeCell(run.Command) + "`"})
	}
	if run.Listfile != "" {
		rows = append(rows, []string{"Listfile", "`" + run.Listfile + "`"})
	}
	for _, k := range run.EnvironmentKeys() {
		rows = append(rows, []string{k, "`" + run.Environment[k] + "`"})
	}
	if len(report.IgnoredCodes) > 0 {
		rows = append(rows, []string{"Ignored codes", joinInts(report.IgnoredCodes)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSummary writes the severity summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.Report) {
	md.H2("Severity Summary")
	md.PlainText("")

	counts := report.CountBySeverity()
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"🔴 Error", strconv.Itoa(counts.Error)},
			{"🟠 Overflow", strconv.Itoa(counts.Overflow)},
			{"🟡 Warning", strconv.Itoa(counts.Warning)},
			{"🔵 Informative", strconv.Itoa(counts.Info)},
			{"**Total**", "**" + strconv.Itoa(counts.Total()) + "**"},
		},
	})
	md.PlainText("")

	if report.HasIssues() {
		w.writePieChart(md, counts)
	}

	w.writeAlert(md, report, counts)
}

// writePieChart writes a mermaid pie chart for severity distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts model.SeverityCounts) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Diagnostic Severity Distribution"),
		piechart.WithShowData(true),
	)

	for _, sev := range model.AllSeverities {
		n := counts.Get(sev)
		if n == 0 {
			continue
		}
		v, err := safecast.Conv[uint64](n)
		if err != nil {
			continue
		}
		chart.LabelAndIntValue(severityLabel(sev), v)
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on severity counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.Report, counts model.SeverityCounts) {
	switch {
	case counts.Error > 0:
		md.Cautionf("%d error message(s) presented. The sources violate the selected standard.", counts.Error)
	case counts.Overflow > 0:
		md.Warningf("%d table overflow(s) presented. The analysis may be incomplete.", counts.Overflow)
	case counts.Warning > 0:
		md.Importantf("%d warning(s) presented.", counts.Warning)
	case report.HasIssues():
		md.Note("Only informative messages presented.")
	default:
		md.Tip(NoIssuesText + ".")
	}
	md.PlainText("")

	if len(report.SummaryMismatches) > 0 {
		md.Warningf("%d event count(s) differ from the FORCHECK summary; the listfile may not have been parsed completely.",
			len(report.SummaryMismatches))
		md.PlainText("")
	}
}

// writeEvents writes the per-code summary table.
func (w *MarkdownWriter) writeEvents(md *markdown.Markdown, report *model.Report) {
	events := report.Events()
	if len(events) == 0 {
		return
	}

	md.H2("Events")
	md.PlainText("")

	rows := make([][]string, len(events))
	for i, e := range events {
		rows[i] = []string{
			"`" + e.Code.String() + "`",
			e.Code.Severity.String(),
			escapeCell(e.Message),
			strconv.Itoa(e.Count),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Code", "Severity", "Message", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFiles writes one table per source file.
func (w *MarkdownWriter) writeFiles(md *markdown.Markdown, report *model.Report) {
	groups := report.FileGroups()
	if len(groups) == 0 {
		return
	}

	md.H2("Files")
	md.PlainText("")

	for _, g := range groups {
		md.PlainText("### `" + g.Path + "`")
		md.PlainText("")

		rows := make([][]string, len(g.Diagnostics))
		for i, d := range g.Diagnostics {
			line := "-"
			if d.Line > 0 {
				line = strconv.Itoa(d.Line)
			}
			rows[i] = []string{
				line,
				"`" + d.Code.String() + "`",
				orDash(escapeCell(d.Culprit)),
				escapeCell(d.Message),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Line", "Code", "Culprit", "Message"},
			Rows:   rows,
		})
		md.PlainText("")

		for _, d := range g.Diagnostics {
			snip, ok := w.snippet(d)
			if !ok {
				continue
			}
			md.Details(
				fmt.Sprintf("Line %d: [%s] %s", d.Line, d.Code, d.Message),
				"\n```fortran\n"+snippetText(snip)+"```\n",
			)
		}
		md.PlainText("")
	}
}

// writeGlobal writes the diagnostics of the global program analysis.
func (w *MarkdownWriter) writeGlobal(md *markdown.Markdown, report *model.Report) {
	globals := report.GlobalDiagnostics()
	if len(globals) == 0 {
		return
	}

	md.H2("Global Program Analysis")
	md.PlainText("")

	items := make([]string, len(globals))
	for i, d := range globals {
		items[i] = describe(d)
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeUnresolved writes diagnostics that could not be tied to a source line.
func (w *MarkdownWriter) writeUnresolved(md *markdown.Markdown, report *model.Report) {
	unresolved := report.Unresolved()
	if len(unresolved) == 0 {
		return
	}

	md.H2("Diagnostics Without Source")
	md.PlainText("")

	items := make([]string, len(unresolved))
	for i, d := range unresolved {
		loc := d.Location()
		if loc == "" {
			loc = "unknown location"
		}
		items[i] = fmt.Sprintf("%s (%s: %s)", describe(d), loc, d.UnresolvedReason)
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeWarnings writes the listfile lines the parser skipped.
func (w *MarkdownWriter) writeWarnings(md *markdown.Markdown, report *model.Report) {
	if len(report.Warnings) == 0 {
		return
	}

	md.H2("Parse Warnings")
	md.PlainText("")

	rows := make([][]string, len(report.Warnings))
	for i, pw := range report.Warnings {
		rows[i] = []string{strconv.Itoa(pw.Line), escapeCell(pw.Reason), "`" + escapeCell(pw.Text) + "`"}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Listfile line", "Reason", "Text"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by checkfort %s*", w.version)
}

// severityLabel returns the chart label for a severity.
func severityLabel(s model.Severity) string {
	switch s {
	case model.SeverityError:
		return "Error"
	case model.SeverityOverflow:
		return "Overflow"
	case model.SeverityWarning:
		return "Warning"
	default:
		return "Informative"
	}
}

// describe renders a diagnostic as one line of text.
func describe(d model.Diagnostic) string {
	return "[" + d.Code.String() + "] " + messageText(d)
}

// messageText is the message followed by the culprit, if there is one.
func messageText(d model.Diagnostic) string {
	if d.Culprit == "" {
		return d.Message
	}
	return d.Message + " - " + d.Culprit
}

// snippetText renders a snippet with line numbers, marking the focus line.
func snippetText(s source.Snippet) string {
	var b strings.Builder
	width := len(strconv.Itoa(s.End()))
	for _, l := range s.Numbered() {
		marker := "  "
		if l.Focus {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%*d | %s\n", marker, width, l.Number, l.Text)
	}
	return b.String()
}

// escapeCell makes text safe inside a Markdown table cell.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
