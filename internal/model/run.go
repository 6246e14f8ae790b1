package model

import (
	"sort"
	"time"
)

// RunInfo describes the FORCHECK invocation that produced a report.
//
// When a listfile is rendered without running FORCHECK (the render
// subcommand), Executed is false and only RunID, StartedAt and Listfile
// are meaningful.
type RunInfo struct {
	// RunID uniquely identifies this run in the history database.
	RunID string `json:"run_id" msgpack:"run_id"`

	// Executed reports whether FORCHECK was run by checkfort.
	Executed bool `json:"executed" msgpack:"executed"`

	// Command is the shell-quoted command line that was executed.
	Command string `json:"command,omitempty" msgpack:"command"`

	// ExitCode is the FORCHECK process exit status.
	ExitCode int `json:"exit_code" msgpack:"exit_code"`

	// ExitMessage is the documented meaning of ExitCode.
	ExitMessage string `json:"exit_message,omitempty" msgpack:"exit_message"`

	// ExitKnown is false when FORCHECK exited with an undocumented status.
	ExitKnown bool `json:"exit_known" msgpack:"exit_known"`

	// Version is the FORCHECK version string, e.g. "14.3.12".
	Version string `json:"version,omitempty" msgpack:"version"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at" msgpack:"started_at"`

	// Duration is how long FORCHECK ran.
	Duration time.Duration `json:"duration" msgpack:"duration"`

	// Environment holds the FORCHECK environment variables (FCKDIR, FCKCNF,
	// FCKPWD) used for the run.
	Environment map[string]string `json:"environment,omitempty" msgpack:"environment"`

	// Listfile is the path of the parsed listfile.
	Listfile string `json:"listfile,omitempty" msgpack:"listfile"`

	// Files are the source files passed to FORCHECK.
	Files []string `json:"files,omitempty" msgpack:"files"`
}

// EnvironmentKeys returns the environment variable names in sorted order.
func (r RunInfo) EnvironmentKeys() []string {
	keys := make([]string, 0, len(r.Environment))
	for k := range r.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
