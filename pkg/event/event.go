// Package event defines the ordered trace a run delivers to reporters.
//
// Reporters receive events in declaration order (feature, then scenario, then step),
// whatever order scenarios actually finished in. Formatting and rendering are left
// to the reporter.
package event

import (
	"time"

	"github.com/ariel-frischer/stepflow/pkg/step"
)

// Type identifies the kind of an event.
type Type int

const (
	RunStarted Type = iota + 1
	FeatureStarted
	ScenarioStarted
	HookFailed
	StepStarted
	StepFinished
	RetryAttempted
	ScenarioFinished
	FeatureFinished
	RunFinished
)

var typeNames = map[Type]string{
	RunStarted:       "run_started",
	FeatureStarted:   "feature_started",
	ScenarioStarted:  "scenario_started",
	HookFailed:       "hook_failed",
	StepStarted:      "step_started",
	StepFinished:     "step_finished",
	RetryAttempted:   "retry_attempted",
	ScenarioFinished: "scenario_finished",
	FeatureFinished:  "feature_finished",
	RunFinished:      "run_finished",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "unknown"
}

// Status is the result of a single step.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusSkipped
	StatusUndefined
	StatusAmbiguous
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusUndefined:
		return "undefined"
	case StatusAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a scenario attempt, a scenario or a whole run.
type Outcome int

const (
	OutcomePassed Outcome = iota
	OutcomeFailed
	// OutcomeCancelled is a scenario stopped by run cancellation.
	OutcomeCancelled
	// OutcomeIncomplete is a run truncated by cancellation.
	OutcomeIncomplete
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// StepInfo carries the step-level fields of StepStarted and StepFinished.
type StepInfo struct {
	Index   int
	Keyword string
	Text    string
	Line    int
	Status  Status
	// Matches holds the capture groups, index 0 being the whole step text.
	Matches []step.Capture
	// Definition is the location of the matched definition, when known.
	Definition *step.Location
}

// Event is one entry of the ordered trace.
type Event struct {
	Type  Type
	RunID string
	// Position is the scenario's declaration position; 0 for run-level events.
	Position uint64

	Feature     string
	FeaturePath string
	Scenario    string
	Tags        []string

	// Attempt numbers scenario attempts from 1.
	Attempt int
	Step    *StepInfo
	Outcome Outcome
	Err     error

	Time     time.Time
	Duration time.Duration
}

// Reporter consumes the ordered event stream. Report is never called concurrently.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Event)

// Report calls f(e).
func (f ReporterFunc) Report(e Event) { f(e) }

// Tee fans every event out to each reporter in order.
func Tee(reporters ...Reporter) Reporter {
	return ReporterFunc(func(e Event) {
		for _, r := range reporters {
			if r != nil {
				r.Report(e)
			}
		}
	})
}

// Discard is a Reporter that drops every event.
var Discard Reporter = ReporterFunc(func(Event) {})
