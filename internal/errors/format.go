package errors

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// style is how one error category is rendered.
type style struct {
	label *color.Color
	hint  *color.Color
	// hintLabel introduces remediation lines.
	hintLabel string
}

var (
	usageColor = color.New(color.FgCyan)
	dimColor   = color.New(color.Faint)

	styles = map[ErrorCategory]style{
		Argument:      {label: color.New(color.FgRed, color.Bold), hint: color.New(color.FgCyan), hintLabel: "hint"},
		Configuration: {label: color.New(color.FgMagenta, color.Bold), hint: color.New(color.FgGreen), hintLabel: "hint"},
		Prerequisite:  {label: color.New(color.FgRed, color.Bold), hint: color.New(color.FgGreen), hintLabel: "hint"},
		Runtime:       {label: color.New(color.FgRed, color.Bold), hint: color.New(color.FgGreen), hintLabel: "hint"},
		// Validation failures point at the input, not at stepflow.
		Validation: {label: color.New(color.FgYellow, color.Bold), hint: color.New(color.FgYellow), hintLabel: "fix"},
	}
	fallback = style{label: color.New(color.FgRed, color.Bold), hint: color.New(color.FgGreen), hintLabel: "hint"}
)

func styleFor(c ErrorCategory) style {
	if s, ok := styles[c]; ok {
		return s
	}
	return fallback
}

// FormatError formats a CLIError for display in the terminal.
// Colors follow fatih/color's detection and are dropped when output is not a terminal.
func FormatError(err *CLIError) string {
	if err == nil {
		return ""
	}
	return formatError(err, true)
}

// FormatErrorPlain formats a CLIError without colors.
func FormatErrorPlain(err *CLIError) string {
	if err == nil {
		return ""
	}
	return formatError(err, false)
}

// formatError renders
//
//	validation error: found 2 validation error(s)
//	  usage: stepflow validate <features.yml>...
//	  fix: ...
//
// Continuation lines of a multi-line message are indented under the first.
func formatError(err *CLIError, useColors bool) string {
	st := styleFor(err.Category)
	paint := func(c *color.Color, s string) string {
		if !useColors {
			return s
		}
		return c.Sprint(s)
	}

	var sb strings.Builder
	sb.WriteString(paint(st.label, strings.ToLower(err.Category.String())+":"))
	sb.WriteString(" ")

	lines := strings.Split(strings.TrimRight(err.Message, "\n"), "\n")
	sb.WriteString(lines[0])
	sb.WriteString("\n")
	for _, line := range lines[1:] {
		sb.WriteString("    ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if err.Usage != "" {
		sb.WriteString("  ")
		sb.WriteString(paint(usageColor, "usage:"))
		sb.WriteString(" ")
		sb.WriteString(err.Usage)
		sb.WriteString("\n")
	}

	for _, step := range err.Remediation {
		sb.WriteString("  ")
		sb.WriteString(paint(st.hint, st.hintLabel+":"))
		sb.WriteString(" ")
		sb.WriteString(step)
		sb.WriteString("\n")
	}

	if err.Err != nil && !strings.Contains(err.Message, err.Err.Error()) {
		sb.WriteString("  ")
		sb.WriteString(paint(dimColor, "cause: "+err.Err.Error()))
		sb.WriteString("\n")
	}

	return sb.String()
}

// FprintError prints a formatted CLIError to the given writer.
func FprintError(w io.Writer, err *CLIError) {
	if err == nil {
		return
	}
	fmt.Fprint(w, FormatError(err))
}
