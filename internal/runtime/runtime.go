package runtime

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/firefly-engineering/browserbox/internal/errors"
)

// ContainerStatus represents the state of a container
type ContainerStatus string

const (
	StatusRunning  ContainerStatus = "running"
	StatusStopped  ContainerStatus = "stopped"
	StatusNotFound ContainerStatus = "not-found"
	StatusUnknown  ContainerStatus = "unknown"
)

// ParseStatus maps a runtime state string (running, exited, created...) to a ContainerStatus.
func ParseStatus(state string) ContainerStatus {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "running", "restarting":
		return StatusRunning
	case "exited", "stopped", "created", "paused", "dead", "configured":
		return StatusStopped
	case "":
		return StatusNotFound
	default:
		return StatusUnknown
	}
}

// ContainerInfo holds information about a container
type ContainerInfo struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Image  string          `json:"image"`
	Status ContainerStatus `json:"status"`
	State  string          `json:"state,omitempty"` // raw runtime status text
}

// Mount is a host directory made visible inside the container.
type Mount struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// Spec renders the mount in host:container:mode form.
func (m Mount) Spec() string {
	mode := "rw"
	if m.ReadOnly {
		mode = "ro"
	}
	return fmt.Sprintf("%s:%s:%s", m.HostPath, m.ContainerPath, mode)
}

// RunOptions describes a detached container to start.
type RunOptions struct {
	Name       string
	Image      string
	HostIP     string            // interface published ports bind to; empty means all
	Ports      map[int]int       // host port -> container port
	Mounts     []Mount
	Env        map[string]string
	Labels     map[string]string
	ShmSize    int64 // bytes
	AutoRemove bool
}

// ExecResult holds the result of executing a command in a container
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExecOptions holds options for executing a command in a container
type ExecOptions struct {
	User   string            // User to run as
	Env    map[string]string // Environment variables
	Detach bool              // Return as soon as the command is started
}

// BuildOptions describes an image build from an inline Dockerfile.
type BuildOptions struct {
	Tag        string
	Dockerfile string
	NoCache    bool
}

// Runtime is the interface that container backends must implement.
// All methods should be safe for concurrent use.
type Runtime interface {
	// Name returns the runtime identifier (e.g., "docker", "podman", "api")
	Name() string

	// Run creates and starts a detached container.
	Run(ctx context.Context, opts RunOptions) (*ContainerInfo, error)

	// Exec executes a command inside a container. A non-zero exit is reported
	// in the result, not as an error.
	Exec(ctx context.Context, id string, command []string, opts ExecOptions) (*ExecResult, error)

	// List returns containers whose name contains nameFilter (all when empty).
	List(ctx context.Context, nameFilter string) ([]*ContainerInfo, error)

	// Remove removes a container. An absent container yields an error
	// matching errors.ErrNotFound.
	Remove(ctx context.Context, id string, force bool) error

	// ImageExists reports whether ref is present locally.
	ImageExists(ctx context.Context, ref string) (bool, error)

	// RemoveImage removes a local image. An absent image yields an error
	// matching errors.ErrNotFound.
	RemoveImage(ctx context.Context, ref string, force bool) error

	// Build builds an image, streaming progress to w.
	Build(ctx context.Context, opts BuildOptions, w io.Writer) error
}

// notFound wraps cause so that errors.Is(err, errors.ErrNotFound) holds.
func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, errors.ErrNotFound)
}

var notFoundPattern = regexp.MustCompile(`(?i)no such (container|image|object)|no container with name or id|image not known`)

// isNotFoundMessage reports whether runtime output describes a missing object.
func isNotFoundMessage(msg string) bool {
	return notFoundPattern.MatchString(msg)
}

// sortedEnv renders an env map as KEY=VALUE pairs in key order.
func sortedEnv(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// sortedPorts returns the host ports of a port map in ascending order.
func sortedPorts(ports map[int]int) []int {
	out := make([]int, 0, len(ports))
	for hp := range ports {
		out = append(out, hp)
	}
	sort.Ints(out)
	return out
}
