// Package hook runs Before and After callables around each scenario attempt.
//
// A hook applies to a scenario when its tag filter matches the scenario's effective tags;
// a nil filter applies everywhere. Applicable hooks run in registration order.
// Before hooks stop at the first failure. After hooks always all run, so resources
// acquired in a Before hook are released even when the attempt failed.
package hook

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariel-frischer/stepflow/pkg/feature"
	"github.com/ariel-frischer/stepflow/pkg/step"
	"github.com/ariel-frischer/stepflow/pkg/tags"
)

// Phase says whether a hook runs before or after the steps.
type Phase int

const (
	Before Phase = iota
	After
)

// String returns "before" or "after".
func (p Phase) String() string {
	if p == After {
		return "after"
	}
	return "before"
}

// Scope describes the attempt a hook is running for.
type Scope struct {
	Feature  *feature.Feature
	Scenario *feature.Scenario
	// Tags are the scenario's effective tags (feature tags first).
	Tags []string
	// Attempt is 1 for the first execution and increments per retry.
	Attempt int
	// Err is the attempt's error as seen by After hooks; nil on success and in Before hooks.
	Err error
}

// Func is a hook callable. A non-nil error or a panic is a hook failure.
type Func[W any] func(ctx context.Context, world W, s Scope) error

// Hook is one registered callable with its optional tag filter.
type Hook[W any] struct {
	Filter   *tags.Expr
	Fn       Func[W]
	Location *step.Location
}

// Applies reports whether the hook runs for a scenario with the given tags.
func (h Hook[W]) Applies(tagSet []string) bool {
	return h.Filter.Match(tagSet)
}

// Error is a hook failure.
type Error struct {
	Phase    Phase
	Index    int
	Location *step.Location
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	where := ""
	if e.Location != nil {
		where = " (" + e.Location.String() + ")"
	}
	return fmt.Sprintf("%s hook #%d%s: %v", e.Phase, e.Index+1, where, e.Err)
}

// Unwrap returns the hook's own error.
func (e *Error) Unwrap() error { return e.Err }

// PanicError is the error a recovered hook panic is converted into.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Executor holds the ordered Before and After hooks of a suite.
// Registration is not safe for concurrent use; finish registering before a run starts.
type Executor[W any] struct {
	before []Hook[W]
	after  []Hook[W]
}

// NewExecutor returns an executor with no hooks.
func NewExecutor[W any]() *Executor[W] {
	return &Executor[W]{}
}

// Before registers a Before hook. A nil filter applies to every scenario.
func (e *Executor[W]) Before(filter *tags.Expr, fn Func[W]) *Executor[W] {
	e.before = append(e.before, Hook[W]{Filter: filter, Fn: fn, Location: step.Caller(1)})
	return e
}

// After registers an After hook. A nil filter applies to every scenario.
func (e *Executor[W]) After(filter *tags.Expr, fn Func[W]) *Executor[W] {
	e.after = append(e.after, Hook[W]{Filter: filter, Fn: fn, Location: step.Caller(1)})
	return e
}

// Len returns the number of Before and After hooks.
func (e *Executor[W]) Len() (before, after int) {
	if e == nil {
		return 0, 0
	}
	return len(e.before), len(e.after)
}

// RunBefore runs every applicable Before hook in order and stops at the first failure,
// which is returned as an *Error.
func (e *Executor[W]) RunBefore(ctx context.Context, world W, s Scope) error {
	if e == nil {
		return nil
	}
	for i, h := range e.before {
		if !h.Applies(s.Tags) {
			continue
		}
		if err := call(ctx, h.Fn, world, s); err != nil {
			return &Error{Phase: Before, Index: i, Location: h.Location, Err: err}
		}
	}
	return nil
}

// RunAfter runs every applicable After hook in order, even when earlier ones fail.
// Failures are joined into one error of *Error values.
func (e *Executor[W]) RunAfter(ctx context.Context, world W, s Scope) error {
	if e == nil {
		return nil
	}
	var errs []error
	for i, h := range e.after {
		if !h.Applies(s.Tags) {
			continue
		}
		if err := call(ctx, h.Fn, world, s); err != nil {
			errs = append(errs, &Error{Phase: After, Index: i, Location: h.Location, Err: err})
		}
	}
	return errors.Join(errs...)
}

func call[W any](ctx context.Context, fn Func[W], world W, s Scope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn(ctx, world, s)
}
