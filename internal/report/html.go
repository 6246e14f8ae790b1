package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nao1215/checkfort/internal/highlight"
	"github.com/nao1215/checkfort/internal/model"
	"github.com/nao1215/checkfort/internal/source"
)

//go:embed templates/*.html templates/*.css
var templateFS embed.FS

// DiagnosticsMeta is the name of the index page meta element holding the
// number of diagnostics in the report.
const DiagnosticsMeta = "checkfort:diagnostics"

// Directory layout of an HTML report.
const (
	IndexPage = "index.html"
	StyleFile = "style.css"
	EventDir  = "event"
	SourceDir = "src"
)

var pageTemplates = template.Must(
	template.New("pages").Funcs(template.FuncMap{
		"sevclass": sevClass,
	}).ParseFS(templateFS, "templates/*.html"),
)

// HTMLWriter writes a report as a directory of linked HTML pages:
// an index, one page per event code and one page per source file.
//
// Design decision: The pages are rendered with html/template from embedded
// templates so that every message and source line is escaped by the
// template engine. Source lines come from the highlighter as pre-escaped
// fragments.
type HTMLWriter struct {
	baseWriter
	dir string
}

// NewHTMLWriter creates an HTMLWriter that writes into dir.
// The directory is created if needed; existing pages are overwritten.
func NewHTMLWriter(dir string, opts ...Option) *HTMLWriter {
	return &HTMLWriter{baseWriter: newBaseWriter(nil, opts), dir: dir}
}

// Dir returns the output directory.
func (w *HTMLWriter) Dir() string {
	return w.dir
}

// Write renders all pages and returns the total number of bytes written.
func (w *HTMLWriter) Write(report *model.Report) (int, error) {
	if w.highlighter == nil {
		w.highlighter = highlight.New(highlight.DefaultStyle, false)
	}
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create report directory: %w", err)
	}

	r := &htmlRender{w: w, report: report, highlighted: make(map[string][]template.HTML)}

	total := 0
	steps := []func() (int, error){
		r.writeStyle,
		r.writeSources,
		r.writeEvents,
		r.writeIndex,
	}
	for _, step := range steps {
		n, err := step()
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// htmlRender holds the state of one Write call.
type htmlRender struct {
	w      *HTMLWriter
	report *model.Report

	// highlighted caches highlighted source lines by cleaned path.
	highlighted map[string][]template.HTML

	// pages maps cleaned source paths to their page, relative to the root.
	pages map[string]string
}

// pageMeta is shared by every page.
type pageMeta struct {
	Title     string
	Root      string
	Version   string
	Generated string

	// CountMeta names the meta element carrying Count; the index sets it.
	CountMeta string
	Count     int
}

type diagView struct {
	Index     int
	Code      string
	Severity  model.Severity
	Message   string
	Culprit   string
	Location  string
	Line      int
	Reason    string
	Href      string
	EventHref string
	Snippet   []snippetLine
}

type snippetLine struct {
	Number int
	HTML   template.HTML
	Focus  bool
}

type eventRow struct {
	Code     string
	Severity model.Severity
	Message  string
	Count    int
	Href     string
}

type fileRow struct {
	Path   string
	Href   string
	Counts model.SeverityCounts
	Total  int
}

type envRow struct {
	Key   string
	Value string
}

type indexPage struct {
	pageMeta
	Run        model.RunInfo
	Status     string
	Counts     model.SeverityCounts
	Total      int
	Env        []envRow
	Ignored    string
	Events     []eventRow
	Files      []fileRow
	Globals    []diagView
	Unresolved []diagView
	Warnings   []model.ParseWarning
	Mismatches []model.SummaryMismatch
	NoIssues   string
}

type eventPage struct {
	pageMeta
	Code        string
	Severity    model.Severity
	Message     string
	Diagnostics []diagView
}

type listingLine struct {
	Number int
	HTML   template.HTML
	Marks  []diagView
}

type sourcePage struct {
	pageMeta
	Path        string
	Encoding    string
	Diagnostics []diagView
	Listing     []listingLine
}

func (r *htmlRender) meta(title, page string) pageMeta {
	return pageMeta{
		Title:     title,
		Root:      rootPrefix(page),
		Version:   r.w.version,
		Generated: r.w.now().Format("2006-01-02 15:04:05 MST"),
	}
}

func (r *htmlRender) writeStyle() (int, error) {
	base, err := templateFS.ReadFile("templates/style.css")
	if err != nil {
		return 0, fmt.Errorf("failed to read style sheet: %w", err)
	}
	css, err := r.w.highlighter.CSS()
	if err != nil {
		return 0, fmt.Errorf("failed to generate highlighter style sheet: %w", err)
	}
	return r.writeFile(StyleFile, append(append(base, '\n'), css...))
}

// writeSources writes one page per source file that has resolved diagnostics.
func (r *htmlRender) writeSources() (int, error) {
	r.pages = make(map[string]string)
	total := 0
	for _, g := range r.report.FileGroups() {
		f, ok := r.w.lookup(g.Path)
		if !ok {
			continue
		}
		page := SourcePagePath(g.Path)
		r.pages[g.Path] = page

		lines := r.highlight(f)
		data := sourcePage{
			pageMeta: r.meta(g.Path, page),
			Path:     g.Path,
			Encoding: string(f.Encoding),
		}

		marks := make(map[int][]diagView)
		for _, d := range g.Diagnostics {
			v := r.view(d, page)
			v.Snippet = r.snippet(d, lines)
			data.Diagnostics = append(data.Diagnostics, v)
			if d.Resolved() {
				marks[d.Line] = append(marks[d.Line], v)
			}
		}
		data.Listing = make([]listingLine, len(lines))
		for i, l := range lines {
			data.Listing[i] = listingLine{Number: i + 1, HTML: l, Marks: marks[i+1]}
		}

		n, err := r.render("source", page, data)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// writeEvents writes one page per event code.
func (r *htmlRender) writeEvents() (int, error) {
	total := 0
	for _, e := range r.report.Events() {
		page := EventPagePath(e.Code)
		data := eventPage{
			pageMeta: r.meta("Event "+e.Code.String(), page),
			Code:     e.Code.String(),
			Severity: e.Code.Severity,
			Message:  e.Message,
		}
		for _, d := range r.report.DiagnosticsForCode(e.Code) {
			data.Diagnostics = append(data.Diagnostics, r.view(d, page))
		}
		n, err := r.render("event", page, data)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *htmlRender) writeIndex() (int, error) {
	report := r.report
	counts := report.CountBySeverity()
	data := indexPage{
		pageMeta:   r.meta("FORCHECK Report", IndexPage),
		Run:        report.Run,
		Status:     statusText(report.Run),
		Counts:     counts,
		Total:      report.Len(),
		Warnings:   report.Warnings,
		Mismatches: report.SummaryMismatches,
	}
	data.CountMeta = DiagnosticsMeta
	data.Count = report.Len()
	if !report.HasIssues() {
		data.NoIssues = NoIssuesText
	}
	if len(report.IgnoredCodes) > 0 {
		data.Ignored = joinInts(report.IgnoredCodes)
	}
	for _, k := range report.Run.EnvironmentKeys() {
		data.Env = append(data.Env, envRow{Key: k, Value: report.Run.Environment[k]})
	}
	for _, e := range report.Events() {
		data.Events = append(data.Events, eventRow{
			Code:     e.Code.String(),
			Severity: e.Code.Severity,
			Message:  e.Message,
			Count:    e.Count,
			Href:     EventPagePath(e.Code),
		})
	}
	for _, g := range report.FileGroups() {
		c := g.Counts()
		data.Files = append(data.Files, fileRow{
			Path:   g.Path,
			Href:   r.pages[g.Path],
			Counts: c,
			Total:  c.Total(),
		})
	}
	for _, d := range report.GlobalDiagnostics() {
		data.Globals = append(data.Globals, r.view(d, IndexPage))
	}
	for _, d := range report.Unresolved() {
		data.Unresolved = append(data.Unresolved, r.view(d, IndexPage))
	}

	return r.render("index", IndexPage, data)
}

// view prepares d for a template on the page at from.
func (r *htmlRender) view(d model.Diagnostic, from string) diagView {
	root := rootPrefix(from)
	v := diagView{
		Index:     d.Index,
		Code:      d.Code.String(),
		Severity:  d.Severity(),
		Message:   d.Message,
		Culprit:   d.Culprit,
		Location:  d.Location(),
		Line:      d.Line,
		Reason:    d.UnresolvedReason,
		EventHref: root + EventPagePath(d.Code),
	}
	if page, ok := r.pages[filepath.Clean(d.File)]; ok && d.Resolved() && d.File != "" {
		v.Href = root + page + "#line-" + fmt.Sprint(d.Line)
	}
	return v
}

// snippet cuts the highlighted window around d out of lines.
func (r *htmlRender) snippet(d model.Diagnostic, lines []template.HTML) []snippetLine {
	if !d.Resolved() {
		return nil
	}
	start, end, ok := source.Window(d.Line, r.w.contextLines, len(lines))
	if !ok {
		return nil
	}
	out := make([]snippetLine, 0, end-start+1)
	for n := start; n <= end; n++ {
		out = append(out, snippetLine{Number: n, HTML: lines[n-1], Focus: n == d.Line})
	}
	return out
}

func (r *htmlRender) highlight(f *source.File) []template.HTML {
	key := filepath.Clean(f.Path)
	if lines, ok := r.highlighted[key]; ok {
		return lines
	}
	lines := r.w.highlighter.Lines(f.Path, f.Lines)
	r.highlighted[key] = lines
	return lines
}

func (r *htmlRender) render(name, page string, data any) (int, error) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return 0, fmt.Errorf("failed to render %s: %w", page, err)
	}
	return r.writeFile(page, buf.Bytes())
}

func (r *htmlRender) writeFile(page string, data []byte) (int, error) {
	target := filepath.Join(r.w.dir, filepath.FromSlash(page))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", page, err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", page, err)
	}
	return len(data), nil
}

// EventPagePath returns the page of an event code relative to the report root.
func EventPagePath(code model.EventCode) string {
	return EventDir + "/" + code.Slug() + ".html"
}

// SourcePagePath returns the page of a source file relative to the report
// root. Absolute paths and parent directory references are mapped inside
// the source directory, so "../lib/a.f" becomes "src/__/lib/a.f.html".
func SourcePagePath(file string) string {
	p := filepath.ToSlash(filepath.Clean(file))
	p = strings.TrimLeft(p, "/")
	parts := strings.Split(p, "/")
	for i, part := range parts {
		switch part {
		case "..":
			parts[i] = "__"
		case "", ".":
			parts[i] = "_"
		}
	}
	return SourceDir + "/" + strings.Join(parts, "/") + ".html"
}

// rootPrefix returns the relative path from page back to the report root.
func rootPrefix(page string) string {
	depth := strings.Count(path.Clean(page), "/")
	return strings.Repeat("../", depth)
}

// sevClass returns the CSS class for a severity.
func sevClass(s model.Severity) string {
	return "sev-" + strings.ToLower(s.Letter())
}
