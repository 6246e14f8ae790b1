package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, state *State) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, state *State) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, state)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if len(p.steps) != 0 {
			t.Errorf("expected 0 steps, got %d", len(p.steps))
		}
		if p.continueOnError {
			t.Error("expected continueOnError to be false")
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true), WithLogger(quietLogger()))
		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()

		if p := New(WithLogger(nil)); p.logger == nil {
			t.Error("expected default logger")
		}
	})
}

// TestPipelineAddStep tests adding steps to the pipeline.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	if got := p.StepNames(); !slices.Equal(got, []string{"first", "second", "third"}) {
		t.Errorf("unexpected step order: %v", got)
	}
	if got := New().StepNames(); len(got) != 0 {
		t.Errorf("expected no names, got %v", got)
	}
}

// TestPipelineExecute tests pipeline execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(_ context.Context, _ *State) error {
				order = append(order, name)
				return nil
			}}
		}

		p := New(WithLogger(quietLogger()))
		p.AddSteps(record("step-1"), record("step-2"))

		state := NewState("/p", "out.lst", nil)
		if err := p.Execute(context.Background(), state); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(order, []string{"step-1", "step-2"}) {
			t.Errorf("wrong execution order: %v", order)
		}
		if !slices.Equal(state.PerformedSteps, []string{"step-1", "step-2"}) {
			t.Errorf("unexpected performed steps: %v", state.PerformedSteps)
		}
		for _, name := range []string{"step-1", "step-2"} {
			if _, ok := state.StepTimes[name]; !ok {
				t.Errorf("no duration recorded for %s", name)
			}
		}
	})

	t.Run("stops on first error by default", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("step failed")
		next := &mockStep{name: "should-not-run"}

		p := New(WithLogger(quietLogger()))
		p.AddSteps(&mockStep{
			name:   "failing-step",
			doFunc: func(context.Context, *State) error { return expectedErr },
		}, next)

		state := NewState("/p", "out.lst", nil)
		err := p.Execute(context.Background(), state)
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if next.callCount != 0 {
			t.Error("second step should not have been called")
		}
		if !errors.Is(state.Err, expectedErr) || state.ErrorMessage != expectedErr.Error() {
			t.Errorf("error not recorded: %v %q", state.Err, state.ErrorMessage)
		}
		if len(state.PerformedSteps) != 0 {
			t.Errorf("failed step recorded as performed: %v", state.PerformedSteps)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		first := errors.New("first")
		next := &mockStep{name: "should-run"}

		p := New(WithContinueOnError(true), WithLogger(quietLogger()))
		p.AddSteps(
			&mockStep{name: "failing-1", doFunc: func(context.Context, *State) error { return first }},
			&mockStep{name: "failing-2", doFunc: func(context.Context, *State) error { return errors.New("second") }},
			next,
		)

		state := NewState("/p", "out.lst", nil)
		err := p.Execute(context.Background(), state)
		if !errors.Is(err, first) {
			t.Errorf("expected first error, got %v", err)
		}
		if next.callCount != 1 {
			t.Error("last step should have been called")
		}
		if !errors.Is(state.Err, first) {
			t.Errorf("expected first error in state, got %v", state.Err)
		}
		if !slices.Equal(state.PerformedSteps, []string{"should-run"}) {
			t.Errorf("unexpected performed steps: %v", state.PerformedSteps)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "should-not-run"}
		p := New(WithLogger(quietLogger()))
		p.AddStep(step)

		state := NewState("/p", "out.lst", nil)
		err := p.Execute(ctx, state)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("step should not have been called")
		}
		if !state.Cancelled {
			t.Error("state.Cancelled should be true")
		}
	})

	t.Run("cancellation between steps", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		next := &mockStep{name: "after-cancel"}
		p := New(WithLogger(quietLogger()))
		p.AddSteps(&mockStep{name: "cancels", doFunc: func(context.Context, *State) error {
			cancel()
			return nil
		}}, next)

		state := NewState("/p", "out.lst", nil)
		if err := p.Execute(ctx, state); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if next.callCount != 0 {
			t.Error("step after cancellation should not run")
		}
		if !slices.Equal(state.PerformedSteps, []string{"cancels"}) {
			t.Errorf("unexpected performed steps: %v", state.PerformedSteps)
		}
	})
}
