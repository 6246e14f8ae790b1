package forcheck

import "errors"

// Installation and invocation errors.
// Locate and Installation methods return these wrapped with details;
// use errors.Is to test for them.
var (
	// ErrFCKDIRNotSet is returned when the FCKDIR variable is missing.
	ErrFCKDIRNotSet = errors.New("FCKDIR environment var not set")

	// ErrFCKPWDNotSet is returned when the FCKPWD variable is missing.
	ErrFCKPWDNotSet = errors.New("FCKPWD environment var not set")

	// ErrBinaryNotFound is returned when neither $FCKDIR/bin/forchk nor
	// $FCKDIR/forchk exists.
	ErrBinaryNotFound = errors.New("could not find 'forchk' binary")

	// ErrConfigNotFound is returned when no directory with *.cnf files exists.
	ErrConfigNotFound = errors.New("could not find '*.cnf' files")

	// ErrNotRunnable is returned when forchk cannot be started.
	ErrNotRunnable = errors.New("could not run forchk")

	// ErrUnexpectedOutput is returned when the version banner cannot be parsed.
	ErrUnexpectedOutput = errors.New("forchk not producing expected output")

	// ErrUnsupportedVersion is returned for FORCHECK releases older than MinVersion.
	ErrUnsupportedVersion = errors.New("unsupported forcheck version")

	// ErrUnsupportedEmulation is returned for an emulation without a *.cnf file.
	ErrUnsupportedEmulation = errors.New("unsupported compiler emulation")

	// ErrUnsupportedStandard is returned for a Fortran standard forchk does not know.
	ErrUnsupportedStandard = errors.New("unsupported fortran standard")

	// ErrTimeout is returned when forchk does not finish before the deadline.
	ErrTimeout = errors.New("forcheck timed out")
)
