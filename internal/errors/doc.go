// Package errors provides typed errors with exit codes for browserbox.
//
// # Error Types
//
// BoxError is the base error type that wraps an error with an exit code and a kind:
//
//	type BoxError struct {
//	    Code    int    // Exit code
//	    Kind    Kind   // configuration, provision, teardown, timeout, ...
//	    Message string // User-facing message
//	    Cause   error  // Wrapped error
//	}
//
// # Taxonomy
//
//	ConfigError      - unsupported browser, missing worker index; nothing was touched yet
//	ProvisionFailed  - image missing, port bind conflict, readiness timeout
//	TeardownFailed   - unexpected runtime failure while removing a container
//	Timeout          - a bounded wait expired (matches ErrTimeout)
//
// A container that is already gone during teardown is not an error at all;
// runtimes report it as ErrNotFound and the lifecycle manager swallows it.
//
// # Extracting Exit Codes
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
package errors
