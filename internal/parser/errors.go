package parser

import (
	"errors"
	"fmt"
)

// ErrInvalidListfile is wrapped by every ParseError so callers can test
// for malformed input with errors.Is.
var ErrInvalidListfile = errors.New("unexpected listfile format")

// ParseError reports a listfile that does not follow the expected grammar.
// Malformed individual message lines are not ParseErrors; they are recorded
// as model.ParseWarning values instead.
type ParseError struct {
	// Line is the 1-based line number in the listfile.
	Line int

	// Text is the offending line.
	Text string

	// Reason describes what was expected.
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("listfile line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Unwrap returns ErrInvalidListfile.
func (e *ParseError) Unwrap() error {
	return ErrInvalidListfile
}
