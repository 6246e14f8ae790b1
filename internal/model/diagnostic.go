package model

import (
	"fmt"
	"strconv"
	"strings"
)

// EventCode identifies a FORCHECK message type, e.g. "344 W".
// The number is unique per message text; the letter is its category.
type EventCode struct {
	// Number is the numeric FORCHECK message number.
	Number int `json:"number" msgpack:"number"`

	// Severity is the message category.
	Severity Severity `json:"severity" msgpack:"severity"`
}

// ParseEventCode parses the "<number> <letter>" form used in listfiles.
// Surrounding whitespace and extra inner spaces are tolerated.
func ParseEventCode(s string) (EventCode, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return EventCode{}, fmt.Errorf("invalid event code %q", s)
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return EventCode{}, fmt.Errorf("invalid event number in %q: %w", s, err)
	}

	sev, err := ParseSeverity(fields[1])
	if err != nil {
		return EventCode{}, err
	}

	return EventCode{Number: n, Severity: sev}, nil
}

// String returns the listfile form of the code, e.g. "344 W".
func (c EventCode) String() string {
	return strconv.Itoa(c.Number) + " " + c.Severity.Letter()
}

// Slug returns a form of the code that is safe in file names and URLs.
func (c EventCode) Slug() string {
	return strconv.Itoa(c.Number) + "_" + c.Severity.Letter()
}

// Scope tells whether a diagnostic belongs to a source location or to the
// program as a whole (FORCHECK's "global program analysis").
type Scope string

const (
	// ScopeFile marks a diagnostic reported against a source file.
	ScopeFile Scope = "file"

	// ScopeGlobal marks a diagnostic from the global program analysis.
	ScopeGlobal Scope = "global"
)

// Resolution records whether a diagnostic could be tied to a line of an
// analyzed source file.
type Resolution string

const (
	// ResolutionPending is the state before Report.Resolve has run.
	ResolutionPending Resolution = ""

	// ResolutionResolved means the (file, line) pair exists in the analyzed set.
	ResolutionResolved Resolution = "resolved"

	// ResolutionGlobal is used for global diagnostics, which carry no location.
	ResolutionGlobal Resolution = "global"

	// ResolutionUnresolved means the diagnostic is displayed message-only.
	ResolutionUnresolved Resolution = "unresolved"
)

// Reasons attached to unresolved diagnostics.
const (
	ReasonNoLocation     = "no source location reported"
	ReasonNotAnalyzed    = "file is not part of the analyzed set"
	ReasonUnreadable     = "source file could not be read"
	ReasonLineOutOfRange = "line is outside the source file"
)

// Diagnostic is one issue reported by FORCHECK.
//
// Diagnostics are created by the parser and are immutable afterwards, with the
// exception of the resolution fields which Report.Resolve sets exactly once.
type Diagnostic struct {
	// Index is the position of the diagnostic in the original listfile order.
	// It breaks ties when diagnostics are sorted by line.
	Index int `json:"index" msgpack:"index"`

	// Code is the FORCHECK event code.
	Code EventCode `json:"code" msgpack:"code"`

	// Message is the FORCHECK message text.
	Message string `json:"message" msgpack:"message"`

	// Culprit is the statement or symbol FORCHECK blamed, if any.
	Culprit string `json:"culprit,omitempty" msgpack:"culprit"`

	// File is the source path as reported by FORCHECK. Empty for global events.
	File string `json:"file,omitempty" msgpack:"file"`

	// Line is the 1-based line number. Zero means "unknown".
	Line int `json:"line,omitempty" msgpack:"line"`

	// Scope distinguishes file-level from global diagnostics.
	Scope Scope `json:"scope" msgpack:"scope"`

	// Resolution is set by Report.Resolve.
	Resolution Resolution `json:"resolution,omitempty" msgpack:"resolution"`

	// UnresolvedReason explains why Resolution is ResolutionUnresolved.
	UnresolvedReason string `json:"unresolved_reason,omitempty" msgpack:"unresolved_reason"`
}

// Severity is a shortcut for d.Code.Severity.
func (d Diagnostic) Severity() Severity {
	return d.Code.Severity
}

// Location returns "file:line", "file" or "" depending on what is known.
func (d Diagnostic) Location() string {
	switch {
	case d.File == "":
		return ""
	case d.Line <= 0:
		return d.File
	default:
		return d.File + ":" + strconv.Itoa(d.Line)
	}
}

// Resolved reports whether the diagnostic points at an existing source line.
func (d Diagnostic) Resolved() bool {
	return d.Resolution == ResolutionResolved
}

// ParseWarning records a listfile line the parser could not interpret.
// Such lines are skipped; the warning keeps them visible in the report.
type ParseWarning struct {
	// Line is the 1-based line number in the listfile.
	Line int `json:"line" msgpack:"line"`

	// Text is the offending line, trimmed.
	Text string `json:"text" msgpack:"text"`

	// Reason describes what was wrong with it.
	Reason string `json:"reason" msgpack:"reason"`
}

// SummaryMismatch is a disagreement between the number of diagnostics parsed
// for a code and the count FORCHECK printed in its message summary.
type SummaryMismatch struct {
	Code     EventCode `json:"code" msgpack:"code"`
	Parsed   int       `json:"parsed" msgpack:"parsed"`
	Reported int       `json:"reported" msgpack:"reported"`
}
