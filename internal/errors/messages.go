package errors

import (
	"fmt"
	"strings"
)

// Common error messages for the stepflow CLI.
// These templates ensure consistent, actionable error messages.

// MissingFeatureFiles creates an error when a command needs at least one features file.
func MissingFeatureFiles(command string) *CLIError {
	return NewArgumentErrorWithUsage(
		"at least one features file is required",
		fmt.Sprintf("stepflow %s <features.yml>...", command),
		"Pass one or more YAML files describing features",
	)
}

// FeatureFileNotFound creates an error for a missing features file.
func FeatureFileNotFound(path string) *CLIError {
	return NewPrerequisiteError(
		fmt.Sprintf("features file not found: %s", path),
		"Check the path is correct",
		"Paths are resolved relative to the current directory",
	)
}

// FeatureFileIsDirectory creates an error when a directory was passed instead of a file.
func FeatureFileIsDirectory(path string) *CLIError {
	return NewArgumentError(
		fmt.Sprintf("expected file, got directory: %s", path),
		"Pass the YAML files inside the directory, e.g. "+strings.TrimSuffix(path, "/")+"/*.yml",
	)
}

// FeatureParseError creates an error for a features file that is not valid YAML.
func FeatureParseError(path string, err error) *CLIError {
	return WrapWithMessage(err, Validation,
		fmt.Sprintf("failed to parse features file: %s", path),
		"Check the file for YAML syntax errors",
		"Run 'stepflow validate "+path+"' for line numbers",
	)
}

// FeatureValidationFailed creates an error summarizing structural problems in features files.
func FeatureValidationFailed(count int) *CLIError {
	return NewValidationError(
		fmt.Sprintf("found %d validation error(s)", count),
		"Fix the errors listed above and run 'stepflow validate' again",
	)
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, remediation ...string) *CLIError {
	return &CLIError{
		Category:    Validation,
		Message:     message,
		Remediation: remediation,
	}
}

// ConfigFileNotFound creates an error for a config file given with --config that does not exist.
func ConfigFileNotFound(path string) *CLIError {
	return NewConfigError(
		fmt.Sprintf("config file not found: %s", path),
		"Run 'stepflow config init' to create a default configuration",
		"Or omit --config to use .stepflow/config.yml",
	)
}

// ConfigLoadError creates an error for configuration that failed to load or validate.
func ConfigLoadError(err error) *CLIError {
	return WrapWithMessage(err, Configuration,
		"failed to load configuration",
		"Check the file for YAML syntax errors",
		"List valid keys with: stepflow config keys",
		"Check STEPFLOW_* environment variables",
	)
}

// ConfigExists creates an error when config init would overwrite an existing file.
func ConfigExists(path string) *CLIError {
	return NewConfigError(
		fmt.Sprintf("config file already exists: %s", path),
		"Use --force to overwrite it",
	)
}

// InvalidOverride creates an error for a malformed --set flag.
func InvalidOverride(raw string) *CLIError {
	return NewArgumentErrorWithUsage(
		fmt.Sprintf("invalid override: %q", raw),
		"stepflow --set key=value <command>",
		"List valid keys with: stepflow config keys",
	)
}

// FileNotWritable creates an error when a file cannot be written.
func FileNotWritable(path string, err error) *CLIError {
	return WrapWithMessage(err, Runtime,
		fmt.Sprintf("cannot write to file: %s", path),
		"Check file permissions: ls -la "+path,
		"Ensure parent directory exists and is writable",
	)
}
