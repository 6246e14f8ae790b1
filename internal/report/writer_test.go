package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/checkfort/internal/model"
	"github.com/nao1215/checkfort/internal/source"
)

var fixedClock = func() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

// createTestSources returns the source files the test report refers to.
func createTestSources() *source.Set {
	return source.NewSet(
		&source.File{
			Path:     "src/main.f",
			Encoding: source.EncodingUTF8,
			Lines: []string{
				"      PROGRAM MAIN",
				"      X = 1",
				"      Y = 2",
				"      CALL SUB(X)",
				"      END",
			},
		},
		&source.File{
			Path:     "src/util.f90",
			Encoding: source.EncodingUTF8,
			Lines: []string{
				"subroutine sub(x)",
				"end subroutine",
			},
		},
	)
}

// createTestReport creates a resolved report with sample data for testing.
//
// src/main.f holds two diagnostics on line 2 (listfile order: error, then
// info), one on line 4 and one beyond the end of the file. missing.f was not
// analyzed.
func createTestReport() *model.Report {
	warn := model.EventCode{Number: 344, Severity: model.SeverityWarning}
	errc := model.EventCode{Number: 1, Severity: model.SeverityError}

	r := model.NewReport()
	r.Run.Executed = true
	r.Run.ExitCode = 8
	r.Run.ExitMessage = "error messages presented"
	r.Run.ExitKnown = true
	r.Run.Listfile = "checkfort.lst"
	r.Run.Environment = map[string]string{"FCKDIR": "/opt/forcheck"}

	r.Add(model.Diagnostic{Code: warn, Message: "implicit conversion", Culprit: "X", File: "src/main.f", Line: 4})
	r.Add(model.Diagnostic{Code: errc, Message: "syntax error <here>", File: "src/main.f", Line: 2})
	r.Add(model.Diagnostic{Code: warn, Message: "dummy argument unused", File: "src/util.f90", Line: 1})
	r.Add(model.Diagnostic{
		Code:    model.EventCode{Number: 675, Severity: model.SeverityInfo},
		Message: "named constant unused", File: "src/main.f", Line: 2,
	})
	r.Add(model.Diagnostic{
		Code:    model.EventCode{Number: 124, Severity: model.SeverityOverflow},
		Message: "procedure table full", Culprit: "SUB", Scope: model.ScopeGlobal,
	})
	r.Add(model.Diagnostic{Code: errc, Message: "statement beyond end", File: "src/main.f", Line: 99})
	r.Add(model.Diagnostic{Code: warn, Message: "name not found", File: "missing.f", Line: 3})

	r.Resolve(createTestSources())
	return r
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report header", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithVersion("1.2.3"))
		report := createTestReport()

		if _, err := w.Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"FORCHECK REPORT",
			report.Run.RunID,
			"exit status 8: error messages presented",
			"checkfort 1.2.3",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("orders diagnostics by line then listfile order", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		order := []string{"syntax error <here>", "named constant unused", "implicit conversion", "statement beyond end"}
		last := -1
		for _, msg := range order {
			i := strings.Index(output, msg)
			if i < 0 {
				t.Fatalf("expected output to contain %q", msg)
			}
			if i < last {
				t.Errorf("%q printed out of order", msg)
			}
			last = i
		}
	})

	t.Run("lists unresolved and global diagnostics", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"GLOBAL PROGRAM ANALYSIS",
			"procedure table full - SUB",
			"DIAGNOSTICS WITHOUT SOURCE",
			model.ReasonLineOutOfRange,
			model.ReasonNotAnalyzed,
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("verbose mode includes snippets", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithVerbose(true), WithSources(createTestSources()), WithContextLines(1))

		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "> 4 |       CALL SUB(X)") {
			t.Errorf("expected focus line of snippet, got:\n%s", output)
		}
	})

	t.Run("no colour codes unless enabled", func(t *testing.T) {
		t.Parallel()

		var plain, colored bytes.Buffer
		if _, err := NewSimpleWriter(&plain).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := NewSimpleWriter(&colored, WithColor(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if strings.Contains(plain.String(), "\x1b[") {
			t.Error("expected plain output without escape sequences")
		}
		if !strings.Contains(colored.String(), "\x1b[") {
			t.Error("expected coloured output to contain escape sequences")
		}
	})

	t.Run("empty report says no issues", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(model.NewReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), NoIssuesText) {
			t.Errorf("expected %q in output", NoIssuesText)
		}
	})
}

// TestJSONWriter tests the JSON output writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("outputs valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var result map[string]any
		if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		for _, key := range []string{"version", "summary", "events", "report"} {
			if _, ok := result[key]; !ok {
				t.Errorf("expected key %q in output", key)
			}
		}
	})

	t.Run("compact output by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected compact output on a single line")
		}
	})

	t.Run("pretty print with indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"summary\"") {
			t.Error("expected indented output")
		}
	})

	t.Run("round trip preserves diagnostics", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithVersion("1.2.3")).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		doc, err := ReadJSON(&buf)
		if err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if doc.Version != "1.2.3" {
			t.Errorf("Version = %q, want %q", doc.Version, "1.2.3")
		}
		if doc.Report.Len() != report.Len() {
			t.Errorf("decoded %d diagnostics, want %d", doc.Report.Len(), report.Len())
		}
		if doc.Summary.Total != report.Len() {
			t.Errorf("Summary.Total = %d, want %d", doc.Summary.Total, report.Len())
		}
		if doc.Summary.Files != 3 {
			t.Errorf("Summary.Files = %d, want 3", doc.Summary.Files)
		}
		if doc.Summary.Unresolved != 2 {
			t.Errorf("Summary.Unresolved = %d, want 2", doc.Summary.Unresolved)
		}
		if len(doc.Events) == 0 || doc.Events[0].Code.String() != "344 W" || doc.Events[0].Count != 3 {
			t.Errorf("Events[0] = %+v, want 344 W with count 3", doc.Events)
		}
		if doc.Report.Diagnostics[5].UnresolvedReason != model.ReasonLineOutOfRange {
			t.Errorf("UnresolvedReason = %q, want %q",
				doc.Report.Diagnostics[5].UnresolvedReason, model.ReasonLineOutOfRange)
		}
	})

	t.Run("empty report carries no issues message", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(model.NewReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		doc, err := ReadJSON(&buf)
		if err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if doc.Summary.Message != NoIssuesText {
			t.Errorf("Summary.Message = %q, want %q", doc.Summary.Message, NoIssuesText)
		}
		if doc.Events == nil {
			t.Error("expected empty events list, got nil")
		}
	})

	t.Run("rejects documents without report", func(t *testing.T) {
		t.Parallel()

		if _, err := ReadJSON(strings.NewReader(`{"version":"1"}`)); err == nil {
			t.Error("expected error for missing report")
		}
	})
}

// TestMarkdownWriter tests the Markdown output writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf, WithSources(createTestSources()), WithVersion("1.2.3"))

		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# FORCHECK Report",
			"Severity Summary",
			"mermaid",
			"[!CAUTION]",
			"`344 W`",
			"`src/main.f`",
			"<details>",
			"Global Program Analysis",
			"Diagnostics Without Source",
			"checkfort 1.2.3",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("empty report shows tip", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(model.NewReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, NoIssuesText) {
			t.Errorf("expected %q in output", NoIssuesText)
		}
		if strings.Contains(output, "mermaid") {
			t.Error("expected no chart for an empty report")
		}
	})
}

// TestHTMLWriter tests the HTML directory writer.
func TestHTMLWriter(t *testing.T) {
	t.Parallel()

	writeHTML := func(t *testing.T, report *model.Report) string {
		t.Helper()

		dir := filepath.Join(t.TempDir(), "html")
		w := NewHTMLWriter(dir, WithSources(createTestSources()), WithClock(fixedClock))
		n, err := w.Write(report)
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if n == 0 {
			t.Error("expected bytes to be written")
		}
		return dir
	}

	readPage := func(t *testing.T, dir, page string) string {
		t.Helper()

		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(page)))
		if err != nil {
			t.Fatalf("failed to read %s: %v", page, err)
		}
		return string(data)
	}

	t.Run("writes all pages", func(t *testing.T) {
		t.Parallel()

		dir := writeHTML(t, createTestReport())
		for _, page := range []string{
			IndexPage,
			StyleFile,
			"event/344_W.html",
			"event/1_E.html",
			"event/675_I.html",
			"event/124_O.html",
			"src/src/main.f.html",
			"src/src/util.f90.html",
		} {
			if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(page))); err != nil {
				t.Errorf("expected page %s: %v", page, err)
			}
		}
		if _, err := os.Stat(filepath.Join(dir, "src", "missing.f.html")); !os.IsNotExist(err) {
			t.Error("expected no page for a source that was not analyzed")
		}
	})

	t.Run("round trip preserves diagnostic count", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		dir := writeHTML(t, report)

		n, err := CountHTMLReportDiagnostics(dir)
		if err != nil {
			t.Fatalf("CountHTMLReportDiagnostics() error = %v", err)
		}
		if n != report.Len() {
			t.Errorf("count = %d, want %d", n, report.Len())
		}
	})

	t.Run("escapes messages", func(t *testing.T) {
		t.Parallel()

		index := readPage(t, writeHTML(t, createTestReport()), IndexPage)
		if strings.Contains(index, "<here>") {
			t.Error("expected message to be escaped")
		}
		if !strings.Contains(index, "syntax error &lt;here&gt;") {
			t.Error("expected escaped message in index")
		}
	})

	t.Run("source page has anchors and snippets", func(t *testing.T) {
		t.Parallel()

		page := readPage(t, writeHTML(t, createTestReport()), "src/src/main.f.html")
		for _, want := range []string{
			`id="line-1"`,
			`id="line-5"`,
			`class="focus"`,
			`href="../../style.css"`,
			model.ReasonLineOutOfRange,
		} {
			if !strings.Contains(page, want) {
				t.Errorf("expected source page to contain %q", want)
			}
		}
		if strings.Contains(page, `id="line-6"`) {
			t.Error("expected listing to stop at the last line")
		}
	})

	t.Run("event page links to source lines", func(t *testing.T) {
		t.Parallel()

		page := readPage(t, writeHTML(t, createTestReport()), "event/1_E.html")
		if !strings.Contains(page, `href="../src/src/main.f.html#line-2"`) {
			t.Error("expected link to the resolved line")
		}
		if !strings.Contains(page, "statement beyond end") {
			t.Error("expected unresolved occurrence to be listed")
		}
	})

	t.Run("line beyond end of file is message only", func(t *testing.T) {
		t.Parallel()

		report := model.NewReport()
		report.Add(model.Diagnostic{
			Code:    model.EventCode{Number: 1, Severity: model.SeverityError},
			Message: "statement beyond end", File: "src/main.f", Line: 99,
		})
		report.Resolve(createTestSources())

		page := readPage(t, writeHTML(t, report), "src/src/main.f.html")
		if strings.Contains(page, `class="focus"`) {
			t.Error("expected no snippet for a line outside the file")
		}
		if !strings.Contains(page, "statement beyond end") {
			t.Error("expected message to be shown")
		}
	})

	t.Run("empty report says no issues", func(t *testing.T) {
		t.Parallel()

		dir := writeHTML(t, model.NewReport())
		index := readPage(t, dir, IndexPage)
		if !strings.Contains(index, NoIssuesText) {
			t.Errorf("expected %q in index", NoIssuesText)
		}
		n, err := CountHTMLReportDiagnostics(dir)
		if err != nil {
			t.Fatalf("CountHTMLReportDiagnostics() error = %v", err)
		}
		if n != 0 {
			t.Errorf("count = %d, want 0", n)
		}
	})
}

func TestSourcePagePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"src/main.f", "src/src/main.f.html"},
		{"./x.f", "src/x.f.html"},
		{"../lib/a.f", "src/__/lib/a.f.html"},
		{"/abs/b.f90", "src/abs/b.f90.html"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			if got := SourcePagePath(tt.in); got != tt.want {
				t.Errorf("SourcePagePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRootPrefix(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"index.html":       "",
		"event/1_E.html":   "../",
		"src/a/b.f90.html": "../../",
	}
	for page, want := range tests {
		if got := rootPrefix(page); got != want {
			t.Errorf("rootPrefix(%q) = %q, want %q", page, got, want)
		}
	}
}

func TestCountHTMLDiagnostics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		html    string
		want    int
		wantErr error
	}{
		{
			name: "meta in head",
			html: `<html><head><meta name="checkfort:diagnostics" content="12"></head><body></body></html>`,
			want: 12,
		},
		{
			name:    "meta missing",
			html:    `<html><head><title>x</title></head><body><p>1</p></body></html>`,
			wantErr: ErrNoDiagnosticsMeta,
		},
		{
			name:    "empty document",
			html:    ``,
			wantErr: ErrNoDiagnosticsMeta,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := CountHTMLDiagnostics(strings.NewReader(tt.html))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("count = %d, want %d", got, tt.want)
			}
		})
	}

	t.Run("invalid count", func(t *testing.T) {
		t.Parallel()

		_, err := CountHTMLDiagnostics(strings.NewReader(`<meta name="checkfort:diagnostics" content="many">`))
		if err == nil {
			t.Error("expected error for a non-numeric count")
		}
	})
}

// TestMultiWriter tests writing to multiple outputs.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var buf1, buf2 bytes.Buffer
	w := NewMultiWriter(NewJSONWriter(&buf1), NewSimpleWriter(&buf2))

	n, err := w.Write(createTestReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != buf1.Len()+buf2.Len() {
		t.Errorf("n = %d, want %d", n, buf1.Len()+buf2.Len())
	}
	if buf1.Len() == 0 || buf2.Len() == 0 {
		t.Error("expected both writers to receive output")
	}
}
