package pipeline

import "errors"

var (
	// ErrNoFiles is returned by RunStep when there is nothing to analyse.
	ErrNoFiles = errors.New("no source files to analyse")

	// ErrNoListfile is returned when FORCHECK finished without writing
	// its listfile, which happens when it fails before analysing.
	ErrNoListfile = errors.New("forcheck did not write a listfile")

	// ErrNoReport is returned by steps that need a parsed report when the
	// pipeline did not parse one.
	ErrNoReport = errors.New("no parsed report")
)
