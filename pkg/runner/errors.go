package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/ariel-frischer/stepflow/pkg/feature"
	"github.com/ariel-frischer/stepflow/pkg/step"
)

// ErrAlreadyRun is returned by a second call to Run on the same Runner.
var ErrAlreadyRun = errors.New("runner has already been run")

// ErrCancelled marks a scenario stopped because the run's context was cancelled.
var ErrCancelled = errors.New("scenario cancelled")

// UndefinedStepError means no definition matched the step.
type UndefinedStepError struct {
	Step feature.Step
}

func (e *UndefinedStepError) Error() string {
	return fmt.Sprintf("undefined step %q (line %d)", e.Step.String(), e.Step.Line)
}

// AmbiguousStepError means more than one definition matched the step.
type AmbiguousStepError struct {
	Step  feature.Step
	Match *step.AmbiguousMatchError
}

func (e *AmbiguousStepError) Error() string {
	return fmt.Sprintf("ambiguous step (line %d): %v", e.Step.Line, e.Match)
}

// Unwrap returns the registry's ambiguity report.
func (e *AmbiguousStepError) Unwrap() error { return e.Match }

// Source says what produced a HandlerError.
type Source string

const (
	SourceStep       Source = "step"
	SourceBeforeHook Source = "before hook"
	SourceAfterHook  Source = "after hook"
	SourceWorld      Source = "world"
)

// HandlerError is a failure signalled by a step handler, a hook or the world constructor.
// Panics are recovered into a HandlerError with Panicked set.
type HandlerError struct {
	Source Source
	// Step is set when Source is SourceStep.
	Step     *feature.Step
	Panicked bool
	Err      error
}

func (e *HandlerError) Error() string {
	if e.Step != nil {
		return fmt.Sprintf("step %q failed: %v", e.Step.String(), e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Source, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// TimeoutError is a step that did not finish within the configured step timeout.
type TimeoutError struct {
	Step    feature.Step
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("step %q timed out after %s", e.Step.String(), e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// DeadlineExceededError is a scenario whose retry deadline passed while retries remained.
type DeadlineExceededError struct {
	Deadline time.Time
	Attempts int
	// Err is the failure of the last attempt.
	Err error
}

func (e *DeadlineExceededError) Error() string {
	return fmt.Sprintf("retry deadline %s exceeded after %d attempt(s): %v",
		e.Deadline.Format(time.RFC3339), e.Attempts, e.Err)
}

func (e *DeadlineExceededError) Unwrap() error { return e.Err }

// IsRetryable reports whether an attempt failure may be retried: handler failures and
// step timeouts are, undefined and ambiguous steps and cancellation are not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrCancelled) {
		return false
	}
	var (
		undefined *UndefinedStepError
		ambiguous *AmbiguousStepError
	)
	if errors.As(err, &undefined) || errors.As(err, &ambiguous) {
		return false
	}
	var (
		handler *HandlerError
		timeout *TimeoutError
	)
	return errors.As(err, &handler) || errors.As(err, &timeout)
}
