package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ariel-frischer/stepflow/internal/config"
	clierrors "github.com/ariel-frischer/stepflow/internal/errors"
	"github.com/ariel-frischer/stepflow/internal/output"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage stepflow configuration",
		Long: `Manage stepflow configuration settings.

Configuration is loaded with the following priority (highest to lowest):
  1. --set flags
  2. Environment variables (STEPFLOW_*)
  3. Project config (.stepflow/config.yml)
  4. User config (<user config dir>/stepflow/config.yml)
  5. Built-in defaults`,
		Example: `  # Show the effective configuration
  stepflow config show

  # List every key with its default
  stepflow config keys

  # Create .stepflow/config.yml
  stepflow config init`,
		GroupID: groupConfig,
	}

	cmd.AddCommand(newConfigShowCmd(opts), newConfigKeysCmd(), newConfigInitCmd(opts))
	return cmd
}

func newConfigShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration and where it came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return clierrors.WrapWithMessage(err, clierrors.Runtime, "rendering configuration")
			}

			out := cmd.OutOrStdout()
			for _, src := range cfg.Sources {
				label := string(src.Source)
				if src.Path != "" {
					label += " (" + src.Path + ")"
				}
				fprintf(out, "%s\n", output.Dim("# source: "+label))
			}
			fprintf(out, "%s", data)
			return nil
		},
	}
}

func newConfigKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List all configuration keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fprintf(tw, "KEY\tTYPE\tDEFAULT\tDESCRIPTION\n")
			for _, key := range config.SortedKeys() {
				schema := config.KnownKeys[key]
				typ := schema.Type.String()
				if len(schema.AllowedValues) > 0 {
					typ = fmt.Sprintf("%s%v", typ, schema.AllowedValues)
				}
				fprintf(tw, "%s\t%s\t%q\t%s\n", key, typ, fmt.Sprint(schema.Default), schema.Description)
			}
			return tw.Flush()
		},
	}
}

func newConfigInitCmd(opts *globalOptions) *cobra.Command {
	var user, force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		Long: `Write a commented default config file.

The file is written to .stepflow/config.yml, to the --config path when given,
or to the user config file with --user.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := initTarget(opts.configPath, user)
			if err != nil {
				return err
			}
			if err := writeConfigTemplate(path, force); err != nil {
				return err
			}
			output.PrintSuccess(cmd.OutOrStdout(), "Created "+output.Highlight(path))
			return nil
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the project config")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func initTarget(configPath string, user bool) (string, error) {
	switch {
	case user:
		path, err := config.UserConfigPath()
		if err != nil {
			return "", clierrors.WrapWithMessage(err, clierrors.Configuration, "cannot locate user config directory")
		}
		return path, nil
	case configPath != "":
		return configPath, nil
	default:
		return config.ProjectConfigPath(), nil
	}
}

func writeConfigTemplate(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return clierrors.ConfigExists(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return clierrors.FileNotWritable(path, err)
	}
	if err := os.WriteFile(path, []byte(config.GetDefaultConfigTemplate()), 0o644); err != nil {
		return clierrors.FileNotWritable(path, err)
	}
	return nil
}
