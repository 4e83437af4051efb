package runner

import (
	"time"

	"github.com/ariel-frischer/stepflow/pkg/event"
)

// ScenarioResult is the terminal state of one admitted scenario.
type ScenarioResult struct {
	ID          ScenarioID
	Feature     string
	FeaturePath string
	Scenario    string
	Type        ScenarioType
	Outcome     event.Outcome
	Attempts    int
	// Err is the error of the last attempt, nil when the scenario passed.
	Err      error
	Duration time.Duration
}

// Result summarizes a run.
type Result struct {
	RunID   string
	Outcome event.Outcome
	Stats   ProgressStats
	// Scenarios holds every admitted scenario in declaration order.
	Scenarios []ScenarioResult
	// StoppedEarly is set when fail-fast stopped admission.
	StoppedEarly bool
	Duration     time.Duration
}

// Failed returns the scenarios that did not pass.
func (r *Result) Failed() []ScenarioResult {
	var out []ScenarioResult
	for _, s := range r.Scenarios {
		if s.Outcome != event.OutcomePassed {
			out = append(out, s)
		}
	}
	return out
}

// runOutcome folds scenario outcomes into the run outcome. Truncation by
// cancellation is Incomplete and is never reported as Passed or Failed.
func runOutcome(scenarios []ScenarioResult, truncated bool) event.Outcome {
	if truncated {
		return event.OutcomeIncomplete
	}
	out := event.OutcomePassed
	for _, s := range scenarios {
		switch s.Outcome {
		case event.OutcomeCancelled:
			return event.OutcomeIncomplete
		case event.OutcomeFailed:
			out = event.OutcomeFailed
		}
	}
	return out
}
