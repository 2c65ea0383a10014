package logging

import (
	"io"
	"log/slog"
	"os"
)

var (
	// Logger is the process-wide structured logger
	Logger *slog.Logger

	// Verbose enables debug logging
	Verbose bool

	level   = new(slog.LevelVar)
	out     io.Writer = os.Stderr
	jsonOut bool
	worker  = -1
)

func init() {
	Logger = newLogger()
}

func newLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if jsonOut {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}

	l := slog.New(h)
	if worker >= 0 {
		l = l.With("worker", worker)
	}
	return l
}

// Setup configures the logger based on verbosity and output preferences.
// Worker processes spawned by "browserbox run" get the same flags as their
// parent so all output shares one format. Setup clears any worker tag.
func Setup(verbose bool, jsonOutput bool, w io.Writer) {
	Verbose = verbose
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	if w == nil {
		w = os.Stderr
	}
	out, jsonOut, worker = w, jsonOutput, -1
	Logger = newLogger()
}

// SetWorker tags every record of this process with the worker slot, so
// interleaved output of parallel workers can be told apart. A negative
// slot removes the tag.
func SetWorker(slot int) {
	if slot < 0 {
		slot = -1
	}
	worker = slot
	Logger = newLogger()
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// With returns a logger with additional attributes
func With(args ...any) *slog.Logger {
	return Logger.With(args...)
}

// ForWorker returns a logger tagged with the worker slot index. The process
// logger is returned as is when SetWorker already tagged it with slot.
func ForWorker(slot int) *slog.Logger {
	if slot == worker {
		return Logger
	}
	return Logger.With("worker", slot)
}
