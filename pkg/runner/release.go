package runner

import (
	"time"

	"github.com/ariel-frischer/stepflow/pkg/event"
	"github.com/ariel-frischer/stepflow/pkg/feature"
	"github.com/ariel-frischer/stepflow/pkg/sequencer"
)

// releaser turns in-order scenario batches into the reporter's event stream and adds
// the feature boundaries. It is only called from the sequencer sink and from Run before
// and after the workers, so it needs no locking of its own.
type releaser struct {
	runID    string
	features []feature.Feature
	backlog  []PlannedScenario
	reporter event.Reporter
	now      func() time.Time

	// open is the feature currently started, -1 when none.
	open int
	// cursor is the first feature not yet started.
	cursor     int
	openFailed bool
	openStart  time.Time
}

func newReleaser(runID string, features []feature.Feature, backlog []PlannedScenario, reporter event.Reporter, now func() time.Time) *releaser {
	return &releaser{
		runID:    runID,
		features: features,
		backlog:  backlog,
		reporter: reporter,
		now:      now,
		open:     -1,
	}
}

func (rl *releaser) runStarted(at time.Time) {
	rl.reporter.Report(event.Event{Type: event.RunStarted, RunID: rl.runID, Time: at})
}

func (rl *releaser) release(b sequencer.Batch) {
	fi := rl.backlog[b.Position-1].FeatureIndex
	if fi != rl.open {
		rl.closeOpen()
		for rl.cursor < fi {
			rl.emptyFeature(rl.cursor)
			rl.cursor++
		}
		rl.startFeature(fi)
		rl.cursor = fi + 1
	}

	for _, e := range b.Events {
		if e.Type == event.ScenarioFinished && e.Outcome != event.OutcomePassed {
			rl.openFailed = true
		}
		rl.reporter.Report(e)
	}
}

// runFinished closes the last feature. When the whole backlog ran, features after it
// (which can only be empty) are reported as well.
func (rl *releaser) runFinished(res *Result, complete bool) {
	rl.closeOpen()
	if complete {
		for ; rl.cursor < len(rl.features); rl.cursor++ {
			rl.emptyFeature(rl.cursor)
		}
	}
	rl.reporter.Report(event.Event{
		Type:     event.RunFinished,
		RunID:    rl.runID,
		Outcome:  res.Outcome,
		Time:     rl.now(),
		Duration: res.Duration,
	})
}

func (rl *releaser) startFeature(fi int) {
	rl.open = fi
	rl.openFailed = false
	rl.openStart = rl.now()
	rl.reporter.Report(rl.featureEvent(event.FeatureStarted, fi))
}

func (rl *releaser) closeOpen() {
	if rl.open < 0 {
		return
	}
	e := rl.featureEvent(event.FeatureFinished, rl.open)
	if rl.openFailed {
		e.Outcome = event.OutcomeFailed
	}
	e.Duration = e.Time.Sub(rl.openStart)
	rl.reporter.Report(e)
	rl.open = -1
}

func (rl *releaser) emptyFeature(fi int) {
	rl.reporter.Report(rl.featureEvent(event.FeatureStarted, fi))
	rl.reporter.Report(rl.featureEvent(event.FeatureFinished, fi))
}

func (rl *releaser) featureEvent(t event.Type, fi int) event.Event {
	f := &rl.features[fi]
	return event.Event{
		Type:        t,
		RunID:       rl.runID,
		Feature:     f.Name,
		FeaturePath: f.Path,
		Tags:        f.Tags,
		Time:        rl.now(),
	}
}
