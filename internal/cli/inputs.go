package cli

import (
	"fmt"
	"io"
	"os"

	clierrors "github.com/ariel-frischer/stepflow/internal/errors"
	"github.com/ariel-frischer/stepflow/pkg/feature"
	"github.com/ariel-frischer/stepflow/pkg/runner"
)

// featureFile is one loaded features file and the problems found in it.
type featureFile struct {
	path   string
	result *feature.LoadResult
	errs   []error
}

func (f featureFile) scenarioCount() int {
	if f.result == nil {
		return 0
	}
	return feature.ScenarioCount(f.result.Features)
}

func checkFileArg(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return clierrors.FeatureFileNotFound(path)
		}
		return clierrors.WrapWithMessage(err, clierrors.Runtime, "accessing file")
	}
	if info.IsDir() {
		return clierrors.FeatureFileIsDirectory(path)
	}
	return nil
}

// loadFeatureFile reads and checks one file. Only a missing or unreadable path is
// returned as an error; parse and structural problems land in errs.
// Scenario classification is checked against cfg so malformed @retry tags surface too.
func loadFeatureFile(path string, cfg runner.Config) (featureFile, error) {
	if err := checkFileArg(path); err != nil {
		return featureFile{}, err
	}

	ff := featureFile{path: path}
	result, err := feature.LoadFile(path)
	if err != nil {
		ff.errs = append(ff.errs, err)
		return ff, nil
	}
	ff.result = result
	ff.errs = append(ff.errs, feature.Validate(result)...)
	if len(ff.errs) == 0 {
		if _, err := runner.Plan(result.Features, cfg); err != nil {
			ff.errs = append(ff.errs, err)
		}
	}
	return ff, nil
}

// loadFeatures loads every path and concatenates their features in argument order.
// Problems are listed on errOut and summarized in the returned error.
func loadFeatures(paths []string, cfg runner.Config, errOut io.Writer) ([]feature.Feature, error) {
	var features []feature.Feature
	problems := 0
	for _, path := range paths {
		ff, err := loadFeatureFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if len(ff.errs) > 0 {
			printFileErrors(errOut, ff)
			problems += len(ff.errs)
			continue
		}
		features = append(features, ff.result.Features...)
	}
	if problems > 0 {
		return nil, clierrors.FeatureValidationFailed(problems)
	}
	return features, nil
}

func printFileErrors(w io.Writer, ff featureFile) {
	fprintf(w, "%s\n", ff.path)
	for i, err := range ff.errs {
		fprintf(w, "  %d. %v\n", i+1, err)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
