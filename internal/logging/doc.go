// Package logging provides logging utilities for browserbox.
//
// Two categories of output exist:
//   - Debug logging: structured logs via slog, controlled by --verbose and --json
//   - User output: short status lines for people watching a test run
//
// User functions prepend a styled status glyph (ℹ ✓ ⚠ ✗). Info and success
// go to stdout, warnings and errors to stderr.
package logging
