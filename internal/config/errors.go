package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoTarget is returned when neither files nor an input file are given.
	ErrNoTarget = errors.New("no target specified: provide files or directories, or use --input-file")

	// ErrNoListfile is returned by ValidateRender without a listfile.
	ErrNoListfile = errors.New("no listfile specified: use --listfile")

	// ErrUnsupportedStandard is returned for a Fortran standard FORCHECK
	// cannot check against.
	ErrUnsupportedStandard = errors.New("unsupported Fortran standard: use one of 77, 90, 95, 2003, 2008")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidContext is returned when the number of context lines is negative.
	ErrInvalidContext = errors.New("invalid context: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one additional report format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidIgnoreCode is returned for message numbers that are not positive.
	ErrInvalidIgnoreCode = errors.New("invalid ignore code: FORCHECK message numbers are positive")

	// ErrNoExtensions is returned when the extension list is empty.
	ErrNoExtensions = errors.New("invalid extensions list: at least one extension is required")

	// ErrInvalidConcurrency is returned when the source reader limit is negative.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be non-negative")
)
