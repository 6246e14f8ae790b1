package model

import (
	"fmt"
	"strings"
)

// Severity represents the FORCHECK message category of a diagnostic.
//
// FORCHECK tags every message with one letter: I (informative), W (warning),
// O (table overflow) or E (error). The numeric order follows the exit codes
// FORCHECK uses for them (2, 4, 6, 8), so comparisons such as
// "sev >= SeverityWarning" read naturally.
type Severity int

const (
	// SeverityInfo is an informative message. It does not indicate a defect.
	SeverityInfo Severity = iota

	// SeverityWarning is a possible defect or a portability problem.
	SeverityWarning

	// SeverityOverflow means an internal FORCHECK table overflowed and the
	// analysis may be incomplete.
	SeverityOverflow

	// SeverityError is a violation of the selected Fortran standard.
	SeverityError
)

// AllSeverities lists the severities from most to least severe.
// Report writers iterate over it to keep section order stable.
var AllSeverities = []Severity{
	SeverityError,
	SeverityOverflow,
	SeverityWarning,
	SeverityInfo,
}

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityOverflow:
		return "OVERFLOW"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Letter returns the single-letter FORCHECK category of the severity.
func (s Severity) Letter() string {
	switch s {
	case SeverityInfo:
		return "I"
	case SeverityWarning:
		return "W"
	case SeverityOverflow:
		return "O"
	case SeverityError:
		return "E"
	default:
		return "?"
	}
}

// ParseSeverity converts a FORCHECK category letter into a Severity.
func ParseSeverity(letter string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(letter)) {
	case "I":
		return SeverityInfo, nil
	case "W":
		return SeverityWarning, nil
	case "O":
		return SeverityOverflow, nil
	case "E":
		return SeverityError, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown message category %q", letter)
	}
}

// SeverityCounts holds the number of diagnostics per severity.
type SeverityCounts struct {
	Error    int `json:"error" msgpack:"error"`
	Overflow int `json:"overflow" msgpack:"overflow"`
	Warning  int `json:"warning" msgpack:"warning"`
	Info     int `json:"info" msgpack:"info"`
}

// Get returns the count for a single severity.
func (c SeverityCounts) Get(s Severity) int {
	switch s {
	case SeverityError:
		return c.Error
	case SeverityOverflow:
		return c.Overflow
	case SeverityWarning:
		return c.Warning
	case SeverityInfo:
		return c.Info
	default:
		return 0
	}
}

// Total returns the sum of all counts.
func (c SeverityCounts) Total() int {
	return c.Error + c.Overflow + c.Warning + c.Info
}

func (c *SeverityCounts) add(s Severity) {
	switch s {
	case SeverityError:
		c.Error++
	case SeverityOverflow:
		c.Overflow++
	case SeverityWarning:
		c.Warning++
	case SeverityInfo:
		c.Info++
	}
}
