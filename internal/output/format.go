// Package output provides terminal output formatting utilities for the stepflow CLI.
// This package is designed to have minimal dependencies to avoid import cycles.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// GetTerminalWidth returns the terminal width, defaulting to 80 if unavailable.
func GetTerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

// Truncate shortens s to at most width runes, marking the cut with an ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 || utf8.RuneCountInString(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "…"
}

// PrintHeader prints a bold title followed by a dim rule sized to the terminal.
func PrintHeader(out io.Writer, title string) {
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	width := GetTerminalWidth()
	if width > 72 {
		width = 72
	}
	fmt.Fprintf(out, "%s\n%s\n", bold(title), dim(strings.Repeat("─", width)))
}

// PrintSuccess prints a green check mark and message.
func PrintSuccess(out io.Writer, message string) {
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	fmt.Fprintf(out, "%s %s\n", green("✓"), message)
}

// PrintFailure prints a red cross and message.
func PrintFailure(out io.Writer, message string) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	fmt.Fprintf(out, "%s %s\n", red("✗"), message)
}

// Highlight renders s in cyan.
func Highlight(s string) string {
	return color.New(color.FgCyan).Sprint(s)
}

// Warn renders s in yellow.
func Warn(s string) string {
	return color.New(color.FgYellow).Sprint(s)
}

// Dim renders s faint.
func Dim(s string) string {
	return color.New(color.Faint).Sprint(s)
}
