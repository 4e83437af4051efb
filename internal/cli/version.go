package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ariel-frischer/stepflow/internal/version"
)

// SourceURL is the project source URL
const SourceURL = "https://github.com/ariel-frischer/stepflow"

func newVersionCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Display version information (v)",
		Long:    "Display version, commit, build date, and Go version information for stepflow",
		Example: `  # Show version info
  stepflow version

  # Plain output (for scripts)
  stepflow version --plain`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			out := cmd.OutOrStdout()
			if plain {
				fprintf(out, "stepflow %s\ncommit: %s\nbuilt: %s\ngo: %s\nplatform: %s\n",
					info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
				return
			}

			bold := color.New(color.FgCyan, color.Bold).SprintFunc()
			dim := color.New(color.Faint).SprintFunc()
			fprintf(out, "%s\n", bold(info.String()))
			fprintf(out, "  %s %s\n", dim("built:   "), info.BuildDate)
			fprintf(out, "  %s %s\n", dim("go:      "), info.GoVersion)
			fprintf(out, "  %s %s\n", dim("platform:"), info.Platform)
			fprintf(out, "  %s %s\n", dim("source:  "), SourceURL)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Plain output without formatting")
	return cmd
}
