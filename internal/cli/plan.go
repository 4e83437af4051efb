package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	clierrors "github.com/ariel-frischer/stepflow/internal/errors"
	"github.com/ariel-frischer/stepflow/internal/output"
	"github.com/ariel-frischer/stepflow/pkg/runner"
	"github.com/ariel-frischer/stepflow/pkg/tags"
)

// maxLabelWidth caps the feature/scenario column.
const maxLabelWidth = 56

func newPlanCmd(opts *globalOptions) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "plan <features.yml>...",
		Short: "Show how scenarios will be scheduled",
		Long: `Show the execution plan for one or more features files without running anything.

For every scenario, in declaration order, the plan lists:
- its position (the order results are reported in)
- whether it runs concurrently or alone (serial_tags)
- its retry budget, after @retry tags and retry_tags are applied
- its effective tags (feature tags followed by scenario tags)`,
		Example: `  # Plan a suite with the project configuration
  stepflow plan features/vault.yml features/audit.yml

  # Only show scenarios tagged @crypto that are not serial
  stepflow plan --tags "@crypto and not @serial" features/*.yml

  # See the effect of a default retry budget
  stepflow plan --set retries.count=2 --set retries.after=1s features/*.yml`,
		Args:    requireFiles,
		GroupID: groupSuite,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, opts, args, filter)
		},
	}

	cmd.Flags().StringVarP(&filter, "tags", "t", "", "Only show scenarios matching this tag expression")
	return cmd
}

func runPlan(cmd *cobra.Command, opts *globalOptions, paths []string, filter string) error {
	expr, err := tags.Parse(filter)
	if err != nil {
		return clierrors.WrapWithMessage(err, clierrors.Argument, "invalid --tags expression")
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log, err := opts.logger(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	rc, err := cfg.RunnerConfig(time.Now())
	if err != nil {
		return clierrors.ConfigLoadError(err)
	}

	features, err := loadFeatures(paths, rc, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	plan, err := runner.Plan(features, rc)
	if err != nil {
		return clierrors.WrapWithMessage(err, clierrors.Validation, "cannot plan scenarios")
	}
	log.Debug("plan built",
		zap.Int("features", len(features)),
		zap.Int("scenarios", len(plan)),
		zap.Int("max_concurrent_scenarios", rc.MaxConcurrentScenarios))

	writePlan(cmd.OutOrStdout(), plan, rc, expr, len(features))
	return nil
}

// writePlan prints the plan table and a summary line.
func writePlan(w io.Writer, plan []runner.PlannedScenario, rc runner.Config, filter *tags.Expr, featureCount int) {
	output.PrintHeader(w, fmt.Sprintf("Plan: %s in %s, at most %d concurrent",
		plural(len(plan), "scenario"), plural(featureCount, "feature"), rc.MaxConcurrentScenarios))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fprintf(tw, "#\tTYPE\tRETRIES\tSCENARIO\tTAGS\n")

	var shown, serial, retrying int
	for _, ps := range plan {
		if ps.Type == runner.Serial {
			serial++
		}
		if ps.RetryEligible && ps.Retry.Count > 0 {
			retrying++
		}
		if !filter.Match(ps.Tags) {
			continue
		}
		shown++
		label := output.Truncate(ps.Feature.Name+" / "+ps.Scenario.Name, maxLabelWidth)
		fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", ps.Position, ps.Type, retryLabel(ps), label, strings.Join(ps.Tags, " "))
	}
	_ = tw.Flush()

	summary := fmt.Sprintf("%d serial, %d with retries", serial, retrying)
	if !filter.IsEmpty() {
		summary = fmt.Sprintf("%d of %d shown (%s); %s", shown, len(plan), filter, summary)
	}
	if !rc.Retry.Deadline.IsZero() {
		summary += "; no retries start after " + rc.Retry.Deadline.Format(time.RFC3339)
	}
	fprintf(w, "\n%s\n", output.Dim(summary))
}

func retryLabel(ps runner.PlannedScenario) string {
	switch {
	case !ps.RetryEligible:
		return "-"
	case ps.Retry.After > 0:
		return fmt.Sprintf("%d (%s)", ps.Retry.Count, ps.Retry.After)
	default:
		return fmt.Sprintf("%d", ps.Retry.Count)
	}
}
