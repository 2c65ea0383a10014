package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/firefly-engineering/browserbox/internal/logging"
	"github.com/firefly-engineering/browserbox/internal/system"
)

// RuntimeType identifies which container runtime to use
type RuntimeType string

const (
	RuntimeDocker RuntimeType = "docker"
	RuntimePodman RuntimeType = "podman"
	RuntimeAPI    RuntimeType = "api"
	RuntimeAuto   RuntimeType = "auto"
)

// pingTimeout bounds the Engine API probe during auto-detection.
const pingTimeout = 2 * time.Second

// ParseType validates a runtime name from configuration or flags.
func ParseType(s string) (RuntimeType, error) {
	switch RuntimeType(s) {
	case "", RuntimeAuto:
		return RuntimeAuto, nil
	case RuntimeDocker, RuntimePodman, RuntimeAPI:
		return RuntimeType(s), nil
	default:
		return "", fmt.Errorf("unknown runtime type: %s", s)
	}
}

// Detect determines which container runtime is available on the system.
// The Engine API is preferred when the daemon answers a ping; otherwise
// the docker or podman CLI found on PATH is used.
func Detect(ctx context.Context) (RuntimeType, error) {
	if engine, err := NewEngineRuntime(); err == nil {
		pingErr := engine.Ping(ctx, pingTimeout)
		_ = engine.Close()
		if pingErr == nil {
			logging.Debug("detected docker engine API")
			return RuntimeAPI, nil
		}
		logging.Debug("docker engine API not reachable", "error", pingErr)
	}

	exec := system.DefaultExecutor()
	if _, err := exec.LookPath("docker"); err == nil {
		logging.Debug("detected docker CLI")
		return RuntimeDocker, nil
	}
	if _, err := exec.LookPath("podman"); err == nil {
		logging.Debug("detected podman CLI")
		return RuntimePodman, nil
	}

	return "", fmt.Errorf("no supported container runtime found (tried: docker API, docker, podman)")
}

// New creates a new Runtime of the given type.
// If typ is RuntimeAuto, it auto-detects the best runtime.
func New(ctx context.Context, typ RuntimeType) (Runtime, error) {
	if typ == "" || typ == RuntimeAuto {
		detected, err := Detect(ctx)
		if err != nil {
			return nil, err
		}
		typ = detected
	}

	logging.Debug("creating runtime", "type", typ)

	switch typ {
	case RuntimeAPI:
		return NewEngineRuntime()
	case RuntimeDocker, RuntimePodman:
		return NewDockerRuntime(string(typ))
	default:
		return nil, fmt.Errorf("unknown runtime type: %s", typ)
	}
}

// Available returns the CLI runtimes found on PATH.
func Available() []RuntimeType {
	var available []RuntimeType
	exec := system.DefaultExecutor()

	if _, err := exec.LookPath("docker"); err == nil {
		available = append(available, RuntimeDocker)
	}
	if _, err := exec.LookPath("podman"); err == nil {
		available = append(available, RuntimePodman)
	}

	return available
}
