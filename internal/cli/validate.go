package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	clierrors "github.com/ariel-frischer/stepflow/internal/errors"
	"github.com/ariel-frischer/stepflow/internal/output"
	"github.com/ariel-frischer/stepflow/internal/watch"
	"github.com/ariel-frischer/stepflow/pkg/runner"
)

func newValidateCmd(opts *globalOptions) *cobra.Command {
	var watchFiles bool

	cmd := &cobra.Command{
		Use:   "validate <features.yml>...",
		Short: "Validate features files",
		Long: `Validate one or more features files for structural correctness.

Checks for:
- YAML syntax
- Required fields (feature name, scenario name, steps)
- Step keywords (Given, When, Then, And, But)
- Tags that do not start with @
- Duplicate scenario names within a feature
- Malformed @retry tags

Exit codes:
  0 - All files are valid
  1 - One or more files have validation errors
  4 - A file does not exist`,
		Example: `  # Validate a single file
  stepflow validate features/vault.yml

  # Re-validate whenever a file is saved
  stepflow validate --watch features/*.yml`,
		Args:    requireFiles,
		GroupID: groupSuite,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			rc, err := cfg.RunnerConfig(time.Now())
			if err != nil {
				return clierrors.ConfigLoadError(err)
			}
			if !watchFiles {
				return validateFiles(cmd.OutOrStdout(), cmd.ErrOrStderr(), args, rc)
			}
			log, err := opts.logger(cmd, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return watchAndValidate(cmd.Context(), cmd, args, rc, log)
		},
	}

	cmd.Flags().BoolVarP(&watchFiles, "watch", "w", false, "Re-validate files whenever they change")
	return cmd
}

// validateFiles checks every path and reports each one. It returns a validation
// error when any file has problems.
func validateFiles(out, errOut io.Writer, paths []string, rc runner.Config) error {
	problems := 0
	for _, path := range paths {
		ff, err := loadFeatureFile(path, rc)
		if err != nil {
			return err
		}
		if len(ff.errs) > 0 {
			output.PrintFailure(out, fmt.Sprintf("%s: %s", path, plural(len(ff.errs), "problem")))
			printFileErrors(errOut, ff)
			problems += len(ff.errs)
			continue
		}
		output.PrintSuccess(out, fmt.Sprintf("%s: %s, %s", path,
			plural(len(ff.result.Features), "feature"), plural(ff.scenarioCount(), "scenario")))
	}
	if problems > 0 {
		return clierrors.FeatureValidationFailed(problems)
	}
	return nil
}

// watchAndValidate validates once, then again after every change, until ctx is done.
// Validation failures are reported and do not stop the loop.
func watchAndValidate(ctx context.Context, cmd *cobra.Command, paths []string, rc runner.Config, log *zap.Logger) error {
	w, err := watch.New(paths, watch.DefaultDebounce)
	if err != nil {
		return clierrors.WrapWithMessage(err, clierrors.Runtime, "cannot watch files")
	}

	report := func() {
		if err := validateFiles(cmd.OutOrStdout(), cmd.ErrOrStderr(), paths, rc); err != nil {
			printError(cmd.ErrOrStderr(), err)
		}
	}

	report()
	fprintf(cmd.OutOrStdout(), "%s\n", output.Dim(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", plural(len(paths), "file"))))

	err = w.Run(ctx, func(changed []string) {
		log.Info("files changed", zap.Strings("paths", changed))
		fprintf(cmd.OutOrStdout(), "\n")
		report()
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
