// Package system provides abstractions for OS process execution to enable testing.
package system

import (
	"context"
	"io"
	"os"
)

// Output holds the captured streams and exit status of a finished command.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Process is a started command that has not necessarily finished.
type Process interface {
	// Pid returns the OS process id, or 0 when unknown.
	Pid() int

	// Signal delivers sig to the process.
	Signal(sig os.Signal) error

	// Kill terminates the process immediately.
	Kill() error

	// Wait blocks until the process exits.
	Wait() error
}

// StartOptions configures a background process.
type StartOptions struct {
	Env    []string // appended to the parent environment
	Stdout io.Writer
	Stderr io.Writer
}

// CommandExecutor abstracts command execution for testability.
type CommandExecutor interface {
	// Execute runs a command and captures stdout and stderr separately.
	// A non-zero exit returns both the Output (with ExitCode set) and an error.
	Execute(ctx context.Context, name string, args ...string) (*Output, error)

	// ExecuteWithStdin runs a command feeding stdin to it.
	ExecuteWithStdin(ctx context.Context, stdin string, name string, args ...string) (*Output, error)

	// ExecuteStreaming runs a command with stdout and stderr copied to w.
	ExecuteStreaming(ctx context.Context, w io.Writer, stdin string, name string, args ...string) error

	// Start launches a command without waiting for it.
	Start(ctx context.Context, opts StartOptions, name string, args ...string) (Process, error)

	// LookPath searches PATH for an executable.
	LookPath(name string) (string, error)
}

var defaultExecutor CommandExecutor = &osExecutor{}

// DefaultExecutor returns the default CommandExecutor implementation.
func DefaultExecutor() CommandExecutor {
	return defaultExecutor
}

// SetDefaultExecutor sets the default CommandExecutor (useful for testing).
func SetDefaultExecutor(exec CommandExecutor) {
	defaultExecutor = exec
}

// ResetDefaults restores the default OS implementation.
func ResetDefaults() {
	defaultExecutor = &osExecutor{}
}
