package feature

import "fmt"

// ParseError represents an error during YAML parsing with location information.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// MissingFieldError represents a required field that is missing.
type MissingFieldError struct {
	// Field is the name of the missing field.
	Field string
	// Context describes where the field is expected.
	Context string
	// Line is the source line number where the error applies.
	Line int
	// Column is the source column number where the error applies.
	Column int
}

// Error implements the error interface.
func (e *MissingFieldError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: missing required field %q in %s", e.Line, e.Field, e.Context)
	}
	return fmt.Sprintf("missing required field %q in %s", e.Field, e.Context)
}

// DuplicateScenarioError represents two scenarios with the same name in one feature.
type DuplicateScenarioError struct {
	Feature   string
	Scenario  string
	FirstLine int
	Line      int
}

// Error implements the error interface.
func (e *DuplicateScenarioError) Error() string {
	return fmt.Sprintf("line %d: duplicate scenario %q in feature %q (first defined at line %d)",
		e.Line, e.Scenario, e.Feature, e.FirstLine)
}

// InvalidTagError represents a tag that does not start with '@'.
type InvalidTagError struct {
	Tag     string
	Context string
	Line    int
}

// Error implements the error interface.
func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("line %d: tag %q in %s must start with '@'", e.Line, e.Tag, e.Context)
}
