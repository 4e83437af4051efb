// Package cli implements the stepflow command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ariel-frischer/stepflow/internal/config"
	clierrors "github.com/ariel-frischer/stepflow/internal/errors"
	"github.com/ariel-frischer/stepflow/internal/logging"
)

const (
	groupSuite  = "suite"
	groupConfig = "config"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	overrides  []string
	debug      bool
}

// NewRootCmd builds the stepflow command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "stepflow",
		Short: "Plan and validate behavior-driven test suites",
		Long: `stepflow loads structured feature files and shows how the scenario scheduler
will run them: which scenarios run serially, which may retry and in what order
results will be reported.

Configuration is loaded with the following priority (highest to lowest):
  1. --set flags
  2. Environment variables (STEPFLOW_*, nested keys joined with __)
  3. Project config (.stepflow/config.yml, or --config)
  4. User config (<user config dir>/stepflow/config.yml)
  5. Built-in defaults`,
		Example: `  # Check feature files for structural errors
  stepflow validate features/*.yml

  # Show the execution plan with retries enabled
  stepflow plan --set retries.count=2 features/vault.yml

  # Show the effective configuration
  stepflow config show`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Project config file (default .stepflow/config.yml)")
	cmd.PersistentFlags().StringArrayVar(&opts.overrides, "set", nil, "Override a config key as key=value (repeatable)")
	cmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierrors.Wrap(err, clierrors.Argument, "Run 'stepflow <command> --help' to see valid flags")
	})

	cmd.AddGroup(
		&cobra.Group{ID: groupSuite, Title: "Suite Commands:"},
		&cobra.Group{ID: groupConfig, Title: "Configuration:"},
	)
	cmd.AddCommand(
		newPlanCmd(opts),
		newValidateCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command with signal handling and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	err := cmd.ExecuteContext(ctx)
	printError(cmd.ErrOrStderr(), err)
	return ExitCode(err)
}

func printError(w io.Writer, err error) {
	if err == nil || ExitCode(err) == ExitInterrupted {
		return
	}
	if cliErr := clierrors.AsCLIError(err); cliErr != nil {
		clierrors.FprintError(w, cliErr)
		return
	}
	clierrors.FprintError(w, clierrors.Wrap(err, clierrors.Runtime))
}

// parseOverrides turns repeated key=value flags into a map.
func parseOverrides(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, clierrors.InvalidOverride(kv)
		}
		out[key] = value
	}
	return out, nil
}

// loadConfig resolves the layered configuration for a command.
func (o *globalOptions) loadConfig() (*config.Configuration, error) {
	overrides, err := parseOverrides(o.overrides)
	if err != nil {
		return nil, err
	}
	if o.configPath != "" {
		if _, err := os.Stat(o.configPath); err != nil {
			return nil, clierrors.ConfigFileNotFound(o.configPath)
		}
	}
	cfg, err := config.LoadWithOptions(config.LoadOptions{
		ProjectConfigPath: o.configPath,
		Overrides:         overrides,
	})
	if err != nil {
		return nil, clierrors.ConfigLoadError(err)
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// logger builds the command logger; logs go to the command's stderr.
func (o *globalOptions) logger(cmd *cobra.Command, cfg *config.Configuration) (*zap.Logger, error) {
	log, err := logging.New(cfg.LogLevel, logging.Format(cfg.LogFormat), cmd.ErrOrStderr())
	if err != nil {
		return nil, clierrors.WrapWithMessage(err, clierrors.Configuration, "invalid logging configuration")
	}
	return log.With(zap.String("command", cmd.Name())), nil
}

// requireFiles is a cobra.PositionalArgs that demands at least one features file.
func requireFiles(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return clierrors.MissingFeatureFiles(cmd.Name())
	}
	return nil
}

func fprintf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
