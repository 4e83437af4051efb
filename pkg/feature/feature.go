package feature

import "fmt"

// StepKind is the bucket a step is matched in.
type StepKind int

const (
	// Given steps establish preconditions.
	Given StepKind = iota
	// When steps perform the action under test.
	When
	// Then steps assert outcomes.
	Then
)

// String returns the canonical keyword for the kind.
func (k StepKind) String() string {
	switch k {
	case Given:
		return "Given"
	case When:
		return "When"
	case Then:
		return "Then"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// ParseStepKind maps a primary keyword to its kind.
// And/But are not accepted here; they are resolved against the previous step by the loader.
func ParseStepKind(keyword string) (StepKind, bool) {
	switch keyword {
	case "Given":
		return Given, true
	case "When":
		return When, true
	case "Then":
		return Then, true
	default:
		return 0, false
	}
}

// Step is a single Given/When/Then clause.
type Step struct {
	// Keyword is the keyword as written (e.g. "And"), used for display only.
	Keyword string `yaml:"keyword"`
	// Kind is the resolved bucket.
	Kind StepKind `yaml:"kind"`
	// Text is the step text after the keyword.
	Text string `yaml:"text"`
	// Line is the source line, 0 when unknown.
	Line int `yaml:"line,omitempty"`
}

// String renders the step the way it appears in a feature file.
func (s Step) String() string {
	kw := s.Keyword
	if kw == "" {
		kw = s.Kind.String()
	}
	return kw + " " + s.Text
}

// Scenario is an ordered sequence of steps plus tags. It is the unit of scheduling and retry.
type Scenario struct {
	Name  string   `yaml:"name"`
	Tags  []string `yaml:"tags,omitempty"`
	Steps []Step   `yaml:"steps"`
	Line  int      `yaml:"line,omitempty"`
}

// Feature groups scenarios declared in one document.
type Feature struct {
	Name      string     `yaml:"name"`
	Path      string     `yaml:"path,omitempty"`
	Tags      []string   `yaml:"tags,omitempty"`
	Scenarios []Scenario `yaml:"scenarios"`
	Line      int        `yaml:"line,omitempty"`
}

// EffectiveTags returns the feature tags followed by the scenario's own tags.
// Duplicates are dropped, first occurrence wins.
func (f *Feature) EffectiveTags(sc *Scenario) []string {
	seen := make(map[string]struct{}, len(f.Tags)+len(sc.Tags))
	out := make([]string, 0, len(f.Tags)+len(sc.Tags))
	for _, list := range [][]string{f.Tags, sc.Tags} {
		for _, t := range list {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// ScenarioCount returns the number of scenarios across features.
func ScenarioCount(features []Feature) int {
	n := 0
	for i := range features {
		n += len(features[i].Scenarios)
	}
	return n
}
