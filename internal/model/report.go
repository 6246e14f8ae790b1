package model

import (
	"errors"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrSourceNotAnalyzed is returned by a SourceLookup for paths that are not
// part of the analyzed file set.
var ErrSourceNotAnalyzed = errors.New("source file is not part of the analyzed set")

// SourceLookup gives Report.Resolve access to the analyzed source files.
//
// LineCount returns the number of lines of the file at path. It returns an
// error wrapping ErrSourceNotAnalyzed when the file was not analyzed, and any
// other error when the file was analyzed but could not be read.
type SourceLookup interface {
	LineCount(path string) (int, error)
}

// Report is the parsed result of one FORCHECK listfile.
//
// Diagnostics are stored in listfile order. Grouping and sorting happen in
// the accessor methods so that the stored order always reflects the original
// output, which is also the tie-breaker when sorting by line.
type Report struct {
	// Run describes the FORCHECK invocation.
	Run RunInfo `json:"run" msgpack:"run"`

	// Diagnostics holds every accepted diagnostic in listfile order.
	Diagnostics []Diagnostic `json:"diagnostics" msgpack:"diagnostics"`

	// Warnings lists listfile lines that could not be parsed.
	Warnings []ParseWarning `json:"warnings,omitempty" msgpack:"warnings"`

	// Sums holds the "number of ...: N" statistics from the FORCHECK summary.
	Sums map[string]int `json:"sums,omitempty" msgpack:"sums"`

	// SummaryMismatches lists codes whose parsed count disagrees with the
	// FORCHECK message summary. A non-empty list points at a parser problem.
	SummaryMismatches []SummaryMismatch `json:"summary_mismatches,omitempty" msgpack:"summary_mismatches"`

	// IgnoredCodes are the FORCHECK message numbers filtered out while parsing.
	IgnoredCodes []int `json:"ignored_codes,omitempty" msgpack:"ignored_codes"`
}

// NewReport creates an empty Report with a fresh run ID.
func NewReport() *Report {
	return &Report{
		Run: RunInfo{
			RunID:     uuid.NewString(),
			StartedAt: time.Now(),
		},
		Diagnostics: make([]Diagnostic, 0),
		Sums:        make(map[string]int),
	}
}

// Add appends a diagnostic and assigns its Index.
// The stored copy is returned so callers can inspect the assigned index.
func (r *Report) Add(d Diagnostic) Diagnostic {
	d.Index = len(r.Diagnostics)
	if d.Scope == "" {
		d.Scope = ScopeFile
	}
	r.Diagnostics = append(r.Diagnostics, d)
	return d
}

// AddWarning records an unparseable listfile line.
func (r *Report) AddWarning(w ParseWarning) {
	r.Warnings = append(r.Warnings, w)
}

// Len returns the number of diagnostics.
func (r *Report) Len() int {
	return len(r.Diagnostics)
}

// HasIssues reports whether the report contains at least one diagnostic.
func (r *Report) HasIssues() bool {
	return len(r.Diagnostics) > 0
}

// CountBySeverity returns the number of diagnostics per severity.
func (r *Report) CountBySeverity() SeverityCounts {
	var counts SeverityCounts
	for i := range r.Diagnostics {
		counts.add(r.Diagnostics[i].Severity())
	}
	return counts
}

// Resolve ties every diagnostic to the analyzed file set.
//
// File diagnostics whose (file, line) pair exists become ResolutionResolved.
// All others are flagged ResolutionUnresolved with a reason; they stay in the
// report and are rendered message-only. Global diagnostics become
// ResolutionGlobal. A nil lookup marks every file diagnostic unreadable.
func (r *Report) Resolve(lookup SourceLookup) {
	for i := range r.Diagnostics {
		d := &r.Diagnostics[i]

		if d.Scope == ScopeGlobal {
			d.Resolution = ResolutionGlobal
			d.UnresolvedReason = ""
			continue
		}

		reason := resolveReason(d, lookup)
		if reason == "" {
			d.Resolution = ResolutionResolved
			d.UnresolvedReason = ""
			continue
		}
		d.Resolution = ResolutionUnresolved
		d.UnresolvedReason = reason
	}
}

// resolveReason returns "" when d resolves, or the reason it does not.
func resolveReason(d *Diagnostic, lookup SourceLookup) string {
	if d.File == "" {
		return ReasonNoLocation
	}
	if lookup == nil {
		return ReasonUnreadable
	}

	n, err := lookup.LineCount(d.File)
	if err != nil {
		if errors.Is(err, ErrSourceNotAnalyzed) {
			return ReasonNotAnalyzed
		}
		return ReasonUnreadable
	}

	if d.Line < 1 || d.Line > n {
		return ReasonLineOutOfRange
	}
	return ""
}

// FileGroup holds the diagnostics reported against one source file.
type FileGroup struct {
	// Path is the file path as reported by FORCHECK.
	Path string

	// Diagnostics are sorted by line ascending, ties by listfile order.
	Diagnostics []Diagnostic
}

// Counts returns the severity counts of the group.
func (g FileGroup) Counts() SeverityCounts {
	var counts SeverityCounts
	for i := range g.Diagnostics {
		counts.add(g.Diagnostics[i].Severity())
	}
	return counts
}

// FileGroups groups file diagnostics by path.
// Groups are ordered by path; inside a group diagnostics are ordered by line
// number ascending, ties broken by original listfile order.
func (r *Report) FileGroups() []FileGroup {
	byPath := make(map[string][]Diagnostic)
	for _, d := range r.Diagnostics {
		if d.Scope != ScopeFile || d.File == "" {
			continue
		}
		key := filepath.Clean(d.File)
		byPath[key] = append(byPath[key], d)
	}

	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	groups := make([]FileGroup, 0, len(paths))
	for _, p := range paths {
		diags := byPath[p]
		SortByLine(diags)
		groups = append(groups, FileGroup{Path: p, Diagnostics: diags})
	}
	return groups
}

// SortByLine sorts diagnostics by line ascending, ties by Index.
func SortByLine(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Line != diags[j].Line {
			return diags[i].Line < diags[j].Line
		}
		return diags[i].Index < diags[j].Index
	})
}

// GlobalDiagnostics returns the global-scope diagnostics in listfile order.
func (r *Report) GlobalDiagnostics() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Scope == ScopeGlobal {
			out = append(out, d)
		}
	}
	return out
}

// Unresolved returns the file diagnostics that could not be tied to a
// source line, in listfile order.
func (r *Report) Unresolved() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Resolution == ResolutionUnresolved {
			out = append(out, d)
		}
	}
	return out
}

// DiagnosticsForCode returns the diagnostics with the given code in listfile order.
func (r *Report) DiagnosticsForCode(code EventCode) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// Event summarizes all diagnostics sharing one event code.
type Event struct {
	// Code is the FORCHECK event code.
	Code EventCode `json:"code"`

	// Message is the message text of the first occurrence.
	Message string `json:"message"`

	// Count is the number of occurrences.
	Count int `json:"count"`
}

// Events returns one entry per event code, most frequent first.
// Codes with equal counts are ordered by number.
func (r *Report) Events() []Event {
	index := make(map[EventCode]int)
	var events []Event
	for _, d := range r.Diagnostics {
		i, ok := index[d.Code]
		if !ok {
			index[d.Code] = len(events)
			events = append(events, Event{Code: d.Code, Message: d.Message, Count: 1})
			continue
		}
		events[i].Count++
	}

	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Code.Number != b.Code.Number {
			return a.Code.Number < b.Code.Number
		}
		return a.Code.Severity > b.Code.Severity
	})
	return events
}
