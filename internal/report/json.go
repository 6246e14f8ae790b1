package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/checkfort/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because the documents are small and encoding/json gives the
// same output across Go versions, which the round-trip check relies on.
type JSONWriter struct {
	baseWriter
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...Option) *JSONWriter {
	return &JSONWriter{baseWriter: newBaseWriter(output, opts)}
}

// JSONSummary holds the figures most consumers need without walking the
// diagnostics.
type JSONSummary struct {
	// Total is the number of diagnostics.
	Total int `json:"total"`

	// Counts holds the number of diagnostics per severity.
	Counts model.SeverityCounts `json:"counts"`

	// Files is the number of source files with diagnostics.
	Files int `json:"files"`

	// Unresolved is the number of diagnostics shown without source.
	Unresolved int `json:"unresolved"`

	// Status is a human-readable rendering of the FORCHECK exit status.
	Status string `json:"status"`

	// Message is NoIssuesText for an empty report.
	Message string `json:"message,omitempty"`
}

// JSONReport is the document written by JSONWriter.
//
// Design decision: We wrap the report rather than adding output fields to
// model.Report so that the parsed data stays free of presentation concerns.
type JSONReport struct {
	// Version is the checkfort version that generated this report.
	Version string `json:"version"`

	// Summary holds aggregate figures.
	Summary JSONSummary `json:"summary"`

	// Events lists one entry per event code, most frequent first.
	Events []model.Event `json:"events"`

	// Report is the full parsed report.
	Report *model.Report `json:"report"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(report *model.Report, version string) *JSONReport {
	summary := JSONSummary{
		Total:      report.Len(),
		Counts:     report.CountBySeverity(),
		Files:      len(report.FileGroups()),
		Unresolved: len(report.Unresolved()),
		Status:     statusText(report.Run),
	}
	if !report.HasIssues() {
		summary.Message = NoIssuesText
	}

	events := report.Events()
	if events == nil {
		events = []model.Event{}
	}

	return &JSONReport{
		Version: version,
		Summary: summary,
		Events:  events,
		Report:  report,
	}
}

// Write outputs the report wrapped with metadata.
func (w *JSONWriter) Write(report *model.Report) (int, error) {
	return w.writeJSON(NewJSONReport(report, w.version))
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent != "" {
		data, err = json.MarshalIndent(v, "", w.indent)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// ReadJSON decodes a document written by JSONWriter.
func ReadJSON(r io.Reader) (*JSONReport, error) {
	var doc JSONReport
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode JSON report: %w", err)
	}
	if doc.Report == nil {
		return nil, errors.New("failed to decode JSON report: missing report")
	}
	return &doc, nil
}
