package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Step is one stage of a checkfort run.
//
// Design decision: steps are values implementing an interface instead of
// plain functions, so that each carries its own options (timeout, cache,
// writers) and can be swapped for a stub in tests.
type Step interface {
	// Do performs the stage on state. A returned error means the stage
	// could not produce its result; problems the report can carry, such as
	// an unreadable source file, are recorded there and Do returns nil.
	Do(ctx context.Context, state *State) error

	// Name identifies the step in logs and in State.PerformedSteps.
	Name() string
}

// Pipeline runs steps in the order they were added.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps running the remaining steps after a failure.
// The run stops at the first failure by default, since a step usually
// needs its predecessor's result: without a listfile there is nothing to
// parse. The trailing bookkeeping steps are run with this option so that a
// failed history write leaves the reports in place.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps on state.
//
// Cancellation is checked before every step; a running step watches ctx
// itself (a FORCHECK run is killed with it). Completed steps are appended
// to state.PerformedSteps with their duration in state.StepTimes.
//
// The first error is returned. Without WithContinueOnError it is returned
// at once; with it, after the remaining steps ran.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	var firstErr error
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("run cancelled", "before", step.Name(), "reason", err)
			state.Cancelled = true
			state.recordError(err)
			return err
		}

		start := time.Now()
		p.logger.Debug("step started", "step", step.Name())
		err := step.Do(ctx, state)
		elapsed := time.Since(start)

		if err != nil {
			p.logger.Error("step failed", "step", step.Name(), "duration", elapsed, "error", err)
			state.recordError(err)
			if firstErr == nil {
				firstErr = err
			}
			if !p.continueOnError {
				return err
			}
			continue
		}

		p.logger.Debug("step finished", "step", step.Name(), "duration", elapsed)
		state.PerformedSteps = append(state.PerformedSteps, step.Name())
		state.recordTime(step.Name(), elapsed)
	}
	return firstErr
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	return names
}
