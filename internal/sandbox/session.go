package sandbox

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/firefly-engineering/browserbox/internal/browser"
	"github.com/firefly-engineering/browserbox/internal/health"
	"github.com/firefly-engineering/browserbox/internal/port"
	"github.com/firefly-engineering/browserbox/internal/recording"
	"github.com/firefly-engineering/browserbox/internal/viewer"
)

// State is a sandbox lifecycle state.
type State string

const (
	StateUnprovisioned State = "unprovisioned"
	StateStarting      State = "starting"
	StateReady         State = "ready"
	StateInUse         State = "in-use"
	StateDeleting      State = "deleting"
	StateDeleted       State = "deleted"
)

// Session is one provisioned sandbox. Its state is only changed by the
// Manager that created it.
type Session struct {
	Name          string
	Identity      browser.Identity
	Slot          int
	Ports         port.Pair
	Host          string
	Headless      bool
	RecordingDir  string
	ContainerName string
	ContainerID   string
	CreatedAt     time.Time

	// Recorder drives the recording sidecar. Disabled when recording was
	// not requested or is not possible in headless mode.
	Recorder *recording.Recorder

	manager *Manager

	mu    sync.Mutex
	state State
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// transition moves from one of the given states to next and reports the
// previous state. It fails when the current state is not in from.
func (s *Session) transition(next State, from ...State) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	for _, f := range from {
		if prev == f {
			s.state = next
			return prev, true
		}
	}
	return prev, false
}

// Live reports whether the session still owns a container.
func (s *Session) Live() bool {
	switch s.State() {
	case StateStarting, StateReady, StateInUse:
		return true
	}
	return false
}

// AutomationURL is the remote WebDriver endpoint.
func (s *Session) AutomationURL() string {
	return "http://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Ports.Automation))
}

// StatusURL is the readiness endpoint of the automation server.
func (s *Session) StatusURL() string {
	return health.StatusURL(s.Host, s.Ports.Automation)
}

// DisplayURL is the noVNC page for the session display.
func (s *Session) DisplayURL(viewOnly bool) string {
	return viewer.URL(s.Host, s.Ports.Display, viewOnly)
}

// Env returns the environment an automation client needs to reach the session.
func (s *Session) Env() map[string]string {
	return map[string]string{
		"SELENIUM_REMOTE_URL": s.AutomationURL(),
		"BROWSERBOX_BROWSER":  string(s.Identity.Type),
		"BROWSERBOX_VERSION":  s.Identity.Version,
		"BROWSERBOX_HEADLESS": strconv.FormatBool(s.Headless),
		"BROWSERBOX_SESSION":  s.Name,
	}
}

// Use marks the session in use while fn runs. When name is non-empty and
// recording is enabled, fn runs inside a recording named after it.
func (s *Session) Use(ctx context.Context, name string, fn func(context.Context) error) error {
	if _, ok := s.transition(StateInUse, StateReady); !ok {
		return fmt.Errorf("sandbox %s is %s, not ready", s.Name, s.State())
	}
	defer s.transition(StateReady, StateInUse)

	if name == "" || s.Recorder == nil {
		return fn(ctx)
	}
	return s.Recorder.Record(ctx, name, fn)
}

// Delete removes the sandbox through its manager. Safe to call repeatedly.
func (s *Session) Delete(ctx context.Context) error {
	if s.manager == nil {
		return nil
	}
	return s.manager.Delete(ctx, s)
}

// OpenViewer opens the display page in a browser. Advisory only.
func (s *Session) OpenViewer(viewOnly bool) (string, error) {
	if s.manager == nil {
		return "", fmt.Errorf("sandbox %s has no manager", s.Name)
	}
	return s.manager.OpenViewer(s, viewOnly)
}
