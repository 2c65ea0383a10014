package errors

import (
	"errors"
	"fmt"
)

// Exit codes for browserbox
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitSessionNotFound = 2
	ExitConfigError     = 3
	ExitProvisionFailed = 4
	ExitContainerFailed = 5
	ExitTeardownFailed  = 6
	ExitTimeout         = 7
	ExitTestsFailed     = 8
	ExitInterrupted     = 130
)

// Kind classifies a BoxError independently of its exit code.
type Kind string

const (
	KindGeneral   Kind = "general"
	KindConfig    Kind = "configuration"
	KindProvision Kind = "provision"
	KindTeardown  Kind = "teardown"
	KindTimeout   Kind = "timeout"
	KindContainer Kind = "container"
	KindNotFound  Kind = "not-found"
)

// Sentinels for errors.Is checks across package boundaries.
var (
	// ErrTimeout marks a wait that ran out of time, as opposed to a refused connection.
	ErrTimeout = errors.New("timed out")

	// ErrNotFound marks a container or image that no longer exists.
	ErrNotFound = errors.New("not found")
)

// BoxError is the base error type for browserbox
type BoxError struct {
	Code    int
	Kind    Kind
	Message string
	Cause   error
}

func (e *BoxError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BoxError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *BoxError) ExitCode() int {
	return e.Code
}

// New creates a new BoxError
func New(code int, message string) *BoxError {
	return &BoxError{
		Code:    code,
		Kind:    KindGeneral,
		Message: message,
	}
}

// Wrap wraps an existing error with a BoxError
func Wrap(code int, message string, cause error) *BoxError {
	return &BoxError{
		Code:    code,
		Kind:    KindGeneral,
		Message: message,
		Cause:   cause,
	}
}

func withKind(e *BoxError, kind Kind) *BoxError {
	e.Kind = kind
	return e
}

// Common error constructors

// ConfigError returns an error for configuration issues. These are raised
// before any container or port is touched.
func ConfigError(message string, cause error) *BoxError {
	return withKind(Wrap(ExitConfigError, message, cause), KindConfig)
}

// ProvisionFailed returns an error for a sandbox that could not be brought to Ready.
func ProvisionFailed(identity string, cause error) *BoxError {
	return withKind(Wrap(ExitProvisionFailed, fmt.Sprintf("failed to provision %s sandbox", identity), cause), KindProvision)
}

// TeardownFailed returns an error for an unexpected failure while removing a container.
func TeardownFailed(container string, cause error) *BoxError {
	return withKind(Wrap(ExitTeardownFailed, fmt.Sprintf("failed to remove container %s", container), cause), KindTeardown)
}

// Timeout returns an error for a wait that exceeded its deadline. The
// result matches ErrTimeout with errors.Is.
func Timeout(message string) *BoxError {
	return withKind(Wrap(ExitTimeout, message, ErrTimeout), KindTimeout)
}

// ContainerFailed returns an error for container operations
func ContainerFailed(op string, cause error) *BoxError {
	return withKind(Wrap(ExitContainerFailed, fmt.Sprintf("container %s failed", op), cause), KindContainer)
}

// SessionNotFound returns an error for a missing sandbox container
func SessionNotFound(name string) *BoxError {
	return withKind(Wrap(ExitSessionNotFound, fmt.Sprintf("sandbox not found: %s", name), ErrNotFound), KindNotFound)
}

// ValidationError returns an error for input validation failures
func ValidationError(message string) *BoxError {
	return withKind(New(ExitConfigError, message), KindConfig)
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var boxErr *BoxError
	if errors.As(err, &boxErr) {
		return boxErr.ExitCode()
	}
	return ExitGeneralError
}

// IsKind reports whether any BoxError in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var boxErr *BoxError
		if !errors.As(err, &boxErr) {
			return false
		}
		if boxErr.Kind == kind {
			return true
		}
		err = boxErr.Cause
	}
	return false
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join wraps errors.Join so callers need only this package.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
