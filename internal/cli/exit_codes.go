package cli

import (
	"context"
	"errors"

	clierrors "github.com/ariel-frischer/stepflow/internal/errors"
)

// Exit codes for the stepflow CLI
// These codes support programmatic composition and CI/CD integration
const (
	// ExitSuccess indicates successful command execution
	ExitSuccess = 0

	// ExitValidationFailed indicates a features file failed validation
	ExitValidationFailed = 1

	// ExitRuntimeError indicates an unexpected failure while running a command
	ExitRuntimeError = 2

	// ExitInvalidArguments indicates invalid command arguments
	ExitInvalidArguments = 3

	// ExitMissingInput indicates an input file does not exist
	ExitMissingInput = 4

	// ExitInvalidConfig indicates the configuration could not be loaded
	ExitInvalidConfig = 5

	// ExitInterrupted indicates the command was stopped by a signal
	ExitInterrupted = 130
)

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	cliErr := clierrors.AsCLIError(err)
	if cliErr == nil {
		return ExitRuntimeError
	}
	switch cliErr.Category {
	case clierrors.Validation:
		return ExitValidationFailed
	case clierrors.Argument:
		return ExitInvalidArguments
	case clierrors.Prerequisite:
		return ExitMissingInput
	case clierrors.Configuration:
		return ExitInvalidConfig
	default:
		return ExitRuntimeError
	}
}
