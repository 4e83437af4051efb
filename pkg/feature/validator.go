package feature

import (
	"fmt"
	"strings"
)

// Validate checks loaded features for structural correctness.
// Returns a slice of errors, empty if valid.
func Validate(result *LoadResult) []error {
	var errs []error

	if len(result.Features) == 0 {
		info := result.NodeInfos["features"]
		errs = append(errs, &MissingFieldError{
			Field: "features", Context: "root (at least one feature required)", Line: info.Line, Column: info.Column,
		})
	}

	for i := range result.Features {
		errs = append(errs, validateFeature(&result.Features[i], i, result)...)
	}

	return errs
}

func validateFeature(f *Feature, idx int, result *LoadResult) []error {
	var errs []error
	prefix := fmt.Sprintf("features[%d]", idx)

	if f.Name == "" {
		info := result.NodeInfos[prefix]
		errs = append(errs, &MissingFieldError{
			Field: "name", Context: fmt.Sprintf("feature at index %d", idx), Line: info.Line, Column: info.Column,
		})
	}
	if len(f.Scenarios) == 0 {
		info := result.NodeInfos[prefix]
		errs = append(errs, &MissingFieldError{
			Field: "scenarios", Context: fmt.Sprintf("feature %q", f.Name), Line: info.Line, Column: info.Column,
		})
	}
	errs = append(errs, validateTags(f.Tags, fmt.Sprintf("feature %q", f.Name), f.Line)...)

	firstSeen := make(map[string]int, len(f.Scenarios))
	for j := range f.Scenarios {
		sc := &f.Scenarios[j]
		scPrefix := fmt.Sprintf("%s.scenarios[%d]", prefix, j)
		info := result.NodeInfos[scPrefix]

		if sc.Name == "" {
			errs = append(errs, &MissingFieldError{
				Field: "name", Context: fmt.Sprintf("scenario at index %d of feature %q", j, f.Name),
				Line: info.Line, Column: info.Column,
			})
		} else if first, dup := firstSeen[sc.Name]; dup {
			errs = append(errs, &DuplicateScenarioError{Feature: f.Name, Scenario: sc.Name, FirstLine: first, Line: sc.Line})
		} else {
			firstSeen[sc.Name] = sc.Line
		}

		if len(sc.Steps) == 0 {
			errs = append(errs, &MissingFieldError{
				Field: "steps", Context: fmt.Sprintf("scenario %q", sc.Name), Line: info.Line, Column: info.Column,
			})
		}
		errs = append(errs, validateTags(sc.Tags, fmt.Sprintf("scenario %q", sc.Name), sc.Line)...)
	}

	return errs
}

func validateTags(tags []string, context string, line int) []error {
	var errs []error
	for _, t := range tags {
		if !strings.HasPrefix(t, "@") {
			errs = append(errs, &InvalidTagError{Tag: t, Context: context, Line: line})
		}
	}
	return errs
}
