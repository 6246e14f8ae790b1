package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/checkfort/internal/highlight"
	"github.com/nao1215/checkfort/internal/model"
	"github.com/nao1215/checkfort/internal/source"
)

// DefaultContextLines is the number of source lines shown on each side of
// a diagnostic.
const DefaultContextLines = 2

// NoIssuesText is shown by every writer for a report without diagnostics.
const NoIssuesText = "No issues found"

// Writer defines the interface for report output.
// Implementations write parsed FORCHECK results in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. The HTML writer produces a directory of pages while
// the others produce a single document, but callers treat them the same.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.Report) (int, error)
}

// Sources gives writers access to the analyzed source files.
// *source.Set implements it.
type Sources interface {
	Lookup(path string) (*source.File, bool)
}

// MultiWriter writes to multiple Writers in turn.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Option configures a report writer. Writers ignore options that do not
// apply to their format.
type Option func(*baseWriter)

// WithSources supplies the source files used for snippets and listings.
// Without it every diagnostic is rendered message-only.
func WithSources(sources Sources) Option {
	return func(w *baseWriter) {
		w.sources = sources
	}
}

// WithContextLines sets the number of lines shown around each diagnostic.
func WithContextLines(n int) Option {
	return func(w *baseWriter) {
		if n >= 0 {
			w.contextLines = n
		}
	}
}

// WithVersion sets the checkfort version printed in report footers.
func WithVersion(version string) Option {
	return func(w *baseWriter) {
		w.version = version
	}
}

// WithHighlighter sets the syntax highlighter used by the HTML writer.
func WithHighlighter(h *highlight.Highlighter) Option {
	return func(w *baseWriter) {
		w.highlighter = h
	}
}

// WithPrettyPrint enables indented JSON output.
func WithPrettyPrint() Option {
	return func(w *baseWriter) {
		w.indent = "  "
	}
}

// WithColor enables ANSI colours in the simple writer.
func WithColor(enabled bool) Option {
	return func(w *baseWriter) {
		w.color = enabled
	}
}

// WithVerbose makes the simple writer print source snippets.
func WithVerbose(verbose bool) Option {
	return func(w *baseWriter) {
		w.verbose = verbose
	}
}

// WithClock overrides the time source used for generation timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *baseWriter) {
		w.now = now
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output       io.Writer
	sources      Sources
	highlighter  *highlight.Highlighter
	contextLines int
	version      string
	indent       string
	color        bool
	verbose      bool
	now          func() time.Time
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer, opts []Option) baseWriter {
	w := baseWriter{
		output:       output,
		contextLines: DefaultContextLines,
		version:      "dev",
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&w)
	}
	return w
}

// lookup returns the loaded source for path, if it was read successfully.
func (w *baseWriter) lookup(path string) (*source.File, bool) {
	if w.sources == nil {
		return nil, false
	}
	f, ok := w.sources.Lookup(path)
	if !ok || f == nil || f.Err != nil {
		return nil, false
	}
	return f, true
}

// snippet returns the source window around d, if the diagnostic resolved.
func (w *baseWriter) snippet(d model.Diagnostic) (source.Snippet, bool) {
	if !d.Resolved() {
		return source.Snippet{}, false
	}
	f, ok := w.lookup(d.File)
	if !ok {
		return source.Snippet{}, false
	}
	return f.Snippet(d.Line, w.contextLines)
}

// statusText describes the FORCHECK exit status of the run.
func statusText(run model.RunInfo) string {
	if !run.Executed {
		return "not run (existing listfile)"
	}
	if run.ExitMessage == "" {
		return "exit status " + strconv.Itoa(run.ExitCode)
	}
	return "exit status " + strconv.Itoa(run.ExitCode) + ": " + run.ExitMessage
}
