package forcheck

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultLogFile receives the console output of forchk.
const DefaultLogFile = "forcheck.log"

// waitDelay bounds how long Run waits for output to drain after forchk
// has been killed.
const waitDelay = 5 * time.Second

// ExitMessages documents the forchk exit statuses.
var ExitMessages = map[int]string{
	0: "no informative, warning, overflow or error messages presented",
	2: "informative, but no warning, overflow or error messages presented",
	4: "warning, but no overflow or error messages presented",
	6: "table overflow, but no error messages presented",
	8: "error messages presented",
}

// ExitStatus is the outcome of a forchk run.
type ExitStatus struct {
	// Code is the process exit status.
	Code int

	// Message is the documented meaning of Code, or a generic text when
	// the status is not documented.
	Message string

	// Known is false for undocumented statuses, which usually mean that
	// forchk failed; the log file has the details then.
	Known bool
}

// NewExitStatus describes code.
func NewExitStatus(code int) ExitStatus {
	msg, ok := ExitMessages[code]
	if !ok {
		msg = fmt.Sprintf("unexpected exit status %d", code)
	}
	return ExitStatus{Code: code, Message: msg, Known: ok}
}

// RuntimeWarning is an "FCK--" message printed by forchk while running,
// for example about an include file it could not open.
type RuntimeWarning struct {
	// Message is the warning text.
	Message string

	// Culprit is the line printed before the warning.
	Culprit string

	// Location is the parenthesised file reference printed two lines
	// before the warning, if there was one.
	Location string
}

// RunOptions configure Run.
type RunOptions struct {
	// LogFile receives the complete forchk console output.
	// Defaults to DefaultLogFile.
	LogFile string

	// Logger receives progress and runtime warnings. Defaults to slog.Default().
	Logger *slog.Logger

	// OnProgress is called with each file name forchk starts analysing.
	OnProgress func(file string)

	// OnWarning is called for each runtime warning.
	OnWarning func(RuntimeWarning)
}

// Run executes cmd and waits for it under ctx.
//
// The console output is written to the log file line by line as it arrives.
// A non-zero exit status is not an error; errors are returned only when
// forchk cannot be started, is killed, or ctx ends first (ErrTimeout for a
// deadline, the context error for a cancellation).
func Run(ctx context.Context, cmd *Command, opts RunOptions) (ExitStatus, error) {
	if opts.LogFile == "" {
		opts.LogFile = DefaultLogFile
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	logFile, err := os.Create(opts.LogFile)
	if err != nil {
		return ExitStatus{}, fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()

	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...) //nolint:gosec // executable located under FCKDIR
	c.Env = cmd.Environ()
	c.WaitDelay = waitDelay

	stdout, err := c.StdoutPipe()
	if err != nil {
		return ExitStatus{}, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	c.Stderr = c.Stdout

	opts.Logger.Debug("starting forcheck", "command", cmd.String())
	if err := c.Start(); err != nil {
		return ExitStatus{}, fmt.Errorf("%w %s: %w", ErrNotRunnable, cmd.Path, err)
	}

	mon := &monitor{opts: opts}
	copyErr := mon.consume(stdout, logFile)

	waitErr := c.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return ExitStatus{}, fmt.Errorf("%w (output written to %s)", ErrTimeout, opts.LogFile)
		}
		return ExitStatus{}, fmt.Errorf("forcheck interrupted: %w", ctxErr)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) || exitErr.ExitCode() < 0 {
			return ExitStatus{}, fmt.Errorf("forcheck failed, see %s for details: %w", opts.LogFile, waitErr)
		}
		return NewExitStatus(exitErr.ExitCode()), nil
	}
	if copyErr != nil {
		return ExitStatus{}, fmt.Errorf("failed to write %s: %w", opts.LogFile, copyErr)
	}
	return NewExitStatus(0), nil
}

// monitor follows the forchk console output.
type monitor struct {
	opts RunOptions

	// prev1 and prev2 are the two lines before the current one.
	prev1, prev2 string
}

// consume copies r to log and handles every line. It keeps reading after a
// log write failure so that forchk never blocks on a full pipe.
func (m *monitor) consume(r io.Reader, log io.Writer) error {
	var writeErr error
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if writeErr == nil {
				_, writeErr = io.WriteString(log, line)
			}
			m.handle(strings.TrimSpace(line))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return writeErr
			}
			if writeErr == nil {
				writeErr = err
			}
			return writeErr
		}
	}
}

func (m *monitor) handle(line string) {
	defer func() {
		m.prev2, m.prev1 = m.prev1, line
	}()

	switch {
	case strings.HasPrefix(line, "-- file: "):
		file := strings.TrimSpace(strings.TrimPrefix(line, "-- file: "))
		m.opts.Logger.Info("analysing", "file", file)
		if m.opts.OnProgress != nil {
			m.opts.OnProgress(file)
		}

	case strings.HasPrefix(line, "-- "):
		if !strings.HasPrefix(line, "-- commandline") && !strings.HasPrefix(line, "-- messages presented") {
			m.opts.Logger.Info(strings.TrimPrefix(line, "-- "))
		}

	case strings.HasPrefix(line, "FCK-- "):
		w := RuntimeWarning{
			Message: strings.TrimSpace(strings.TrimPrefix(line, "FCK-- ")),
			Culprit: m.prev1,
		}
		if strings.HasPrefix(m.prev2, "(") {
			w.Location = m.prev2
		}
		m.opts.Logger.Warn(w.Message, "culprit", w.Culprit, "location", w.Location)
		if m.opts.OnWarning != nil {
			m.opts.OnWarning(w)
		}
	}
}
