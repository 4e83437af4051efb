package runner

import (
	"fmt"

	"github.com/ariel-frischer/stepflow/pkg/feature"
	"github.com/ariel-frischer/stepflow/pkg/tags"
)

// PlannedScenario is a backlog entry with its classification resolved.
type PlannedScenario struct {
	Position ScenarioID
	// FeatureIndex indexes the features slice the plan was built from.
	FeatureIndex int
	Feature      *feature.Feature
	Scenario     *feature.Scenario
	// Tags are the effective tags: feature tags then scenario tags.
	Tags []string
	Type ScenarioType
	// RetryEligible is false when RetryTags excludes the scenario.
	RetryEligible bool
	Retry         RetryOptions
}

// TypeFunc overrides scenario classification.
type TypeFunc func(f *feature.Feature, sc *feature.Scenario) ScenarioType

// RetryFunc overrides the retry policy of a scenario when it returns true.
type RetryFunc func(f *feature.Feature, sc *feature.Scenario) (RetryOptions, bool)

type planner struct {
	cfg     Config
	typeFn  TypeFunc
	retryFn RetryFunc
}

// Plan classifies every scenario of features in declaration order without running anything.
// Positions are the ones Run assigns when every scenario is admitted.
func Plan(features []feature.Feature, cfg Config) ([]PlannedScenario, error) {
	return planner{cfg: cfg}.plan(features)
}

func (p planner) plan(features []feature.Feature) ([]PlannedScenario, error) {
	out := make([]PlannedScenario, 0, feature.ScenarioCount(features))
	for fi := range features {
		f := &features[fi]
		for si := range f.Scenarios {
			sc := &f.Scenarios[si]
			ps, err := p.classify(f, sc)
			if err != nil {
				return nil, fmt.Errorf("%s: scenario %q: %w", featureLabel(f), sc.Name, err)
			}
			ps.Position = ScenarioID(len(out) + 1)
			ps.FeatureIndex = fi
			out = append(out, ps)
		}
	}
	return out, nil
}

func (p planner) classify(f *feature.Feature, sc *feature.Scenario) (PlannedScenario, error) {
	tagSet := f.EffectiveTags(sc)
	ps := PlannedScenario{
		Feature:  f,
		Scenario: sc,
		Tags:     tagSet,
		Type:     p.cfg.scenarioType(tagSet),
		Retry:    p.cfg.Retry,
	}
	if p.typeFn != nil {
		ps.Type = p.typeFn(f, sc)
	}

	retryTag, tagged, err := tags.FindRetry(tagSet)
	if err != nil {
		return PlannedScenario{}, err
	}
	if tagged {
		if retryTag.Count >= 0 {
			ps.Retry.Count = retryTag.Count
		}
		if retryTag.After > 0 {
			ps.Retry.After = retryTag.After
		}
	}
	if p.retryFn != nil {
		if opts, ok := p.retryFn(f, sc); ok {
			ps.Retry = opts
		}
	}

	// An explicit @retry tag opts the scenario in regardless of RetryTags.
	ps.RetryEligible = tagged || p.cfg.RetryTags.Match(tagSet)
	if !ps.RetryEligible {
		ps.Retry.Count = 0
	}
	return ps, nil
}

func featureLabel(f *feature.Feature) string {
	if f.Path != "" {
		return f.Path
	}
	return "feature " + f.Name
}
