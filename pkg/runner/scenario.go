package runner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ariel-frischer/stepflow/pkg/event"
	"github.com/ariel-frischer/stepflow/pkg/feature"
	"github.com/ariel-frischer/stepflow/pkg/hook"
	"github.com/ariel-frischer/stepflow/pkg/step"
)

// trace collects the events of one scenario; they are released together under its position.
type trace struct {
	runID  string
	ps     *PlannedScenario
	events []event.Event
}

func (t *trace) add(e event.Event) {
	e.RunID = t.runID
	e.Position = uint64(t.ps.Position)
	e.Feature = t.ps.Feature.Name
	e.FeaturePath = t.ps.Feature.Path
	e.Scenario = t.ps.Scenario.Name
	e.Tags = t.ps.Tags
	t.events = append(t.events, e)
}

// runScenario runs every attempt of one admitted scenario and returns its result and events.
func (r *Runner[W]) runScenario(ctx context.Context, runID string, ps *PlannedScenario, log *zap.Logger) (ScenarioResult, []event.Event) {
	start := r.now()
	tr := &trace{runID: runID, ps: ps}
	tr.add(event.Event{Type: event.ScenarioStarted, Attempt: 1, Time: start})

	attempts, err := r.retry(ctx, ps, tr, log)

	res := ScenarioResult{
		ID:          ps.Position,
		Feature:     ps.Feature.Name,
		FeaturePath: ps.Feature.Path,
		Scenario:    ps.Scenario.Name,
		Type:        ps.Type,
		Attempts:    attempts,
		Err:         err,
		Duration:    r.now().Sub(start),
	}
	switch {
	case err == nil:
		res.Outcome = event.OutcomePassed
	case errors.Is(err, ErrCancelled):
		res.Outcome = event.OutcomeCancelled
	default:
		res.Outcome = event.OutcomeFailed
	}

	tr.add(event.Event{
		Type:     event.ScenarioFinished,
		Attempt:  attempts,
		Outcome:  res.Outcome,
		Err:      err,
		Time:     r.now(),
		Duration: res.Duration,
	})
	return res, tr.events
}

// runAttempt executes one attempt: world, Before hooks, steps, After hooks.
func (r *Runner[W]) runAttempt(ctx context.Context, ps *PlannedScenario, attempt int, tr *trace) error {
	r.metrics.Attempt(attempt)

	world, err := r.makeWorld(ctx)
	if err != nil {
		r.skipSteps(ps, attempt, 0, tr)
		return err
	}

	scope := hook.Scope{
		Feature:  ps.Feature,
		Scenario: ps.Scenario,
		Tags:     ps.Tags,
		Attempt:  attempt,
	}

	var attemptErr error
	if err := r.hooks.RunBefore(ctx, world, scope); err != nil {
		attemptErr = &HandlerError{Source: SourceBeforeHook, Panicked: isPanic(err), Err: err}
		tr.add(event.Event{Type: event.HookFailed, Attempt: attempt, Err: err, Time: r.now()})
		r.skipSteps(ps, attempt, 0, tr)
	} else {
		attemptErr = r.runSteps(ctx, world, ps, attempt, tr)
	}

	// After hooks release what Before hooks acquired, so they run even when the run is cancelled.
	scope.Err = attemptErr
	if err := r.hooks.RunAfter(context.WithoutCancel(ctx), world, scope); err != nil {
		tr.add(event.Event{Type: event.HookFailed, Attempt: attempt, Err: err, Time: r.now()})
		if attemptErr == nil {
			attemptErr = &HandlerError{Source: SourceAfterHook, Panicked: isPanic(err), Err: err}
		}
	}
	return attemptErr
}

func (r *Runner[W]) makeWorld(ctx context.Context) (world W, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &HandlerError{Source: SourceWorld, Panicked: true, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	world, err = r.newWorld(ctx)
	if err != nil {
		return world, &HandlerError{Source: SourceWorld, Err: err}
	}
	return world, nil
}

// runSteps runs the steps in order. The first step that is undefined, ambiguous or fails
// ends the attempt; the remaining steps are reported skipped.
func (r *Runner[W]) runSteps(ctx context.Context, world W, ps *PlannedScenario, attempt int, tr *trace) error {
	for i, s := range ps.Scenario.Steps {
		if err := ctx.Err(); err != nil {
			r.skipSteps(ps, attempt, i, tr)
			return fmt.Errorf("%w before step %d: %w", ErrCancelled, i+1, context.Cause(ctx))
		}

		info := stepInfo(i, s)
		started := r.now()
		tr.add(event.Event{Type: event.StepStarted, Attempt: attempt, Step: info, Time: started})

		m, err := r.steps.Find(s)
		var stepErr error
		finished := *info
		switch {
		case err != nil:
			var amb *step.AmbiguousMatchError
			if errors.As(err, &amb) {
				finished.Status = event.StatusAmbiguous
				stepErr = &AmbiguousStepError{Step: s, Match: amb}
			} else {
				finished.Status = event.StatusFailed
				stepErr = &HandlerError{Source: SourceStep, Step: &s, Err: err}
			}
		case m == nil:
			finished.Status = event.StatusUndefined
			stepErr = &UndefinedStepError{Step: s}
		default:
			finished.Matches = m.Context.Matches
			finished.Definition = m.Pattern.Location
			stepErr = r.callStep(ctx, world, s, m)
			if stepErr != nil {
				finished.Status = event.StatusFailed
			}
		}

		r.metrics.Step(finished.Status.String())
		tr.add(event.Event{
			Type:     event.StepFinished,
			Attempt:  attempt,
			Step:     &finished,
			Err:      stepErr,
			Time:     r.now(),
			Duration: r.now().Sub(started),
		})

		if stepErr != nil {
			r.skipSteps(ps, attempt, i+1, tr)
			return stepErr
		}
	}
	return nil
}

// callStep invokes the matched handler. With a step timeout the handler's context carries
// the deadline; a handler that returns after it expired fails with *TimeoutError.
func (r *Runner[W]) callStep(ctx context.Context, world W, s feature.Step, m *step.Match[W]) error {
	stepCtx := ctx
	if r.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, r.cfg.StepTimeout)
		defer cancel()
	}

	err := invoke(stepCtx, m.Handler, world, m.Context)

	if r.cfg.StepTimeout > 0 && ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Step: s, Timeout: r.cfg.StepTimeout, Err: stepCtx.Err()}
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w during step %q: %w", ErrCancelled, s.String(), err)
	}
	var herr *HandlerError
	if errors.As(err, &herr) {
		herr.Step = &s
		return herr
	}
	return &HandlerError{Source: SourceStep, Step: &s, Err: err}
}

func invoke[W any](ctx context.Context, h step.Handler[W], world W, sc step.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &HandlerError{Source: SourceStep, Panicked: true, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return h(ctx, world, sc)
}

func (r *Runner[W]) skipSteps(ps *PlannedScenario, attempt, from int, tr *trace) {
	for i := from; i < len(ps.Scenario.Steps); i++ {
		info := stepInfo(i, ps.Scenario.Steps[i])
		info.Status = event.StatusSkipped
		r.metrics.Step(info.Status.String())
		tr.add(event.Event{Type: event.StepFinished, Attempt: attempt, Step: info, Time: r.now()})
	}
}

func stepInfo(i int, s feature.Step) *event.StepInfo {
	return &event.StepInfo{
		Index:   i,
		Keyword: s.Keyword,
		Text:    s.Text,
		Line:    s.Line,
		Status:  event.StatusPassed,
	}
}

func isPanic(err error) bool {
	var p *hook.PanicError
	return errors.As(err, &p)
}
