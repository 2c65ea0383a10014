package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// User-facing output functions with status prefixes.
// These write to stdout/stderr directly for CLI output,
// separate from the structured debug logging.

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// Stdout and Stderr are the user output destinations; tests swap them.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

func userPrint(w io.Writer, style lipgloss.Style, glyph, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", style.Render(glyph), fmt.Sprintf(format, args...))
}

// UserInfo prints an info message to stdout.
func UserInfo(format string, args ...interface{}) {
	userPrint(Stdout, infoStyle, "ℹ", format, args...)
}

// UserSuccess prints a success message to stdout.
func UserSuccess(format string, args ...interface{}) {
	userPrint(Stdout, successStyle, "✓", format, args...)
}

// UserWarning prints a warning message to stderr.
func UserWarning(format string, args ...interface{}) {
	userPrint(Stderr, warningStyle, "⚠", format, args...)
}

// UserError prints an error message to stderr.
func UserError(format string, args ...interface{}) {
	userPrint(Stderr, errorStyle, "✗", format, args...)
}
