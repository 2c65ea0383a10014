package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/firefly-engineering/browserbox/internal/audit"
	"github.com/firefly-engineering/browserbox/internal/browser"
	"github.com/firefly-engineering/browserbox/internal/config"
	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/health"
	"github.com/firefly-engineering/browserbox/internal/logging"
	"github.com/firefly-engineering/browserbox/internal/port"
	"github.com/firefly-engineering/browserbox/internal/recording"
	"github.com/firefly-engineering/browserbox/internal/runtime"
	"github.com/firefly-engineering/browserbox/internal/viewer"
)

// Labels set on every sandbox container.
const (
	LabelSession  = "browserbox.session"
	LabelIdentity = "browserbox.identity"
	LabelSlot     = "browserbox.slot"
)

// Container environment.
const (
	envNoVNCPassword = "VNC_NO_PASSWORD"
	envStartXvfb     = "START_XVFB"
)

// Manager provisions and deletes sandboxes.
type Manager struct {
	cfg      *config.Config
	rt       runtime.Runtime
	prober   *health.Prober
	registry *Registry
	audit    *audit.Logger
	opener   viewer.Opener
	newID    func() string
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithRegistry sets the registry sessions are registered with.
func WithRegistry(reg *Registry) Option {
	return func(m *Manager) { m.registry = reg }
}

// WithProber sets the readiness prober.
func WithProber(p *health.Prober) Option {
	return func(m *Manager) { m.prober = p }
}

// WithAuditLogger enables per-session audit events.
func WithAuditLogger(l *audit.Logger) Option {
	return func(m *Manager) { m.audit = l }
}

// WithOpener sets how display pages are opened.
func WithOpener(o viewer.Opener) Option {
	return func(m *Manager) { m.opener = o }
}

// WithIDGenerator sets the generator for the random part of session names.
func WithIDGenerator(f func() string) Option {
	return func(m *Manager) { m.newID = f }
}

// NewManager creates a Manager for cfg on rt.
func NewManager(cfg *config.Config, rt runtime.Runtime, opts ...Option) *Manager {
	prober := health.NewProber()
	if cfg.PollInterval.Duration > 0 {
		prober.Interval = cfg.PollInterval.Duration
	}
	m := &Manager{
		cfg:      cfg,
		rt:       rt,
		prober:   prober,
		registry: NewRegistry(),
		opener:   viewer.DefaultOpener,
		newID:    shortID,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the registry this manager registers sessions with.
func (m *Manager) Registry() *Registry {
	return m.registry
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// SessionName returns <browser>-<slot>-<id>.
func SessionName(t browser.Type, slot int, id string) string {
	return fmt.Sprintf("%s-%d-%s", t, slot, id)
}

// Provision starts a sandbox and waits until its automation server is ready.
//
// Configuration errors are returned before any resource is touched. Any
// later failure removes the container, best effort, and returns a
// ProvisionFailed error. The session is registered for teardown from the
// moment its ports are claimed.
func (m *Manager) Provision(ctx context.Context, opts ProvisionOptions) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.ConfigError("invalid sandbox options", err)
	}
	pair, err := port.AllocatePair(m.cfg, opts.Slot)
	if err != nil {
		return nil, errors.ConfigError("port allocation failed", err)
	}

	identity := opts.Identity
	if identity.Version == "" {
		identity.Version = browser.DefaultVersion
	}
	shm, err := m.cfg.ShmBytes()
	if err != nil {
		return nil, errors.ConfigError("invalid shared memory size", err)
	}
	name := SessionName(identity.Type, opts.Slot, m.newID())

	recordingDir := opts.RecordingDir
	if recordingDir == "" {
		recordingDir = m.cfg.RecordingDir
	}
	if recordingDir, err = filepath.Abs(recordingDir); err != nil {
		return nil, errors.ConfigError("invalid recording directory", err)
	}

	s := &Session{
		Name:          name,
		Identity:      identity,
		Slot:          opts.Slot,
		Ports:         pair,
		Host:          m.cfg.Host,
		Headless:      opts.Headless,
		RecordingDir:  recordingDir,
		ContainerName: m.cfg.ContainerPrefix + name,
		CreatedAt:     m.now(),
		manager:       m,
		state:         StateUnprovisioned,
	}

	log := logging.With("sandbox", name, "identity", identity.String(), "ports", pair.String())
	log.Debug("provisioning sandbox")

	if err := m.registry.Register(s); err != nil {
		return nil, errors.ProvisionFailed(identity.String(), err)
	}
	s.setState(StateStarting)

	fail := func(cause error) (*Session, error) {
		log.Debug("provisioning failed, removing sandbox", "error", cause)
		m.logEvent(s, audit.EventError, cause.Error())
		if err := m.Delete(context.WithoutCancel(ctx), s); err != nil {
			log.Warn("cleanup after failed provisioning", "error", err)
		}
		return nil, errors.ProvisionFailed(identity.String(), cause)
	}

	image := identity.Image(m.cfg.ImagePrefix)
	exists, err := m.rt.ImageExists(ctx, image)
	if err != nil {
		return fail(fmt.Errorf("failed to inspect image %s: %w", image, err))
	}
	if !exists {
		return fail(fmt.Errorf("image %s not found (build it with: browserbox build %s)", image, identity.Type))
	}

	if err := os.MkdirAll(recordingDir, 0755); err != nil {
		return fail(fmt.Errorf("failed to create recording directory: %w", err))
	}

	info, err := m.rt.Run(ctx, m.runOptions(s, image, shm))
	if err != nil {
		// Run can fail after the daemon created the container. If a teardown
		// already marked the session deleted, fail() will not remove it.
		if !s.Live() {
			m.removeLeftover(ctx, s.ContainerName, log)
		}
		return fail(fmt.Errorf("failed to start container: %w", err))
	}
	s.mu.Lock()
	s.ContainerID = info.ID
	s.Recorder = m.recorder(s, opts)
	s.mu.Unlock()
	m.logEvent(s, audit.EventProvision, fmt.Sprintf("image=%s ports=%s headless=%t", image, pair, opts.Headless))

	// A teardown that ran while the container was starting found nothing to remove.
	if !s.Live() {
		m.removeLeftover(ctx, info.ID, log)
		return nil, errors.ProvisionFailed(identity.String(), fmt.Errorf("sandbox was deleted during provisioning"))
	}

	timeout := m.cfg.ReadyTimeout.Duration
	log.Debug("waiting for automation server", "url", s.StatusURL(), "timeout", timeout)
	if err := m.prober.AwaitReady(ctx, s.StatusURL(), timeout); err != nil {
		return fail(err)
	}
	if !opts.Headless {
		if err := health.Settle(ctx, m.cfg.SettleDelay.Duration); err != nil {
			return fail(err)
		}
	}

	if _, ok := s.transition(StateReady, StateStarting); !ok {
		return fail(fmt.Errorf("sandbox was deleted during provisioning"))
	}
	m.logEvent(s, audit.EventReady, s.AutomationURL())
	log.Info("sandbox ready", "container", s.ContainerName)
	return s, nil
}

// removeLeftover force-removes a container started for a session that was
// torn down while it was starting.
func (m *Manager) removeLeftover(ctx context.Context, target string, log *slog.Logger) {
	if err := m.rt.Remove(context.WithoutCancel(ctx), target, true); err != nil && !errors.Is(err, errors.ErrNotFound) {
		log.Warn("failed to remove container of deleted sandbox", "container", target, "error", err)
	}
}

func (m *Manager) runOptions(s *Session, image string, shm int64) runtime.RunOptions {
	env := map[string]string{envNoVNCPassword: "1"}
	if s.Headless {
		env[envStartXvfb] = "false"
		if d, ok := browser.Lookup(s.Identity.Type); ok {
			for k, v := range d.HeadlessEnv(m.cfg.WindowWidth, m.cfg.WindowHeight) {
				env[k] = v
			}
		}
	}

	ports := map[int]int{
		s.Ports.Automation: config.ContainerAutomationPort,
		s.Ports.Display:    config.ContainerDisplayPort,
	}
	if s.Ports.VNC != 0 {
		ports[s.Ports.VNC] = config.ContainerVNCPort
	}

	return runtime.RunOptions{
		Name:  s.ContainerName,
		Image: image,
		Ports: ports,
		Mounts: []runtime.Mount{{
			HostPath:      s.RecordingDir,
			ContainerPath: config.ContainerRecordingDir,
		}},
		Env: env,
		Labels: map[string]string{
			LabelSession:  s.Name,
			LabelIdentity: s.Identity.String(),
			LabelSlot:     strconv.Itoa(s.Slot),
		},
		ShmSize:    shm,
		AutoRemove: true,
	}
}

func (m *Manager) recorder(s *Session, opts ProvisionOptions) *recording.Recorder {
	enabled := opts.Record
	if opts.Record && opts.Headless && !m.cfg.RecordInHeadless {
		logging.UserWarning("Recording is ignored in headless mode")
		enabled = false
	}
	return &recording.Recorder{
		Runtime:      m.rt,
		ContainerID:  s.ContainerID,
		Session:      s.Name,
		HostDir:      s.RecordingDir,
		ContainerDir: config.ContainerRecordingDir,
		Width:        m.cfg.WindowWidth,
		Height:       m.cfg.WindowHeight,
		StopGrace:    m.cfg.RecordStopGrace.Duration,
		Enabled:      enabled,
		Audit:        m.audit,
	}
}

// Delete removes the sandbox container and unregisters the session.
//
// Delete is idempotent: deleting a deleted session, or one whose container
// is already gone, succeeds. It is safe to call from the signal path while
// another goroutine is provisioning or using the session. Unexpected runtime
// failures are returned as TeardownFailed and leave the session registered.
func (m *Manager) Delete(ctx context.Context, s *Session) error {
	if s.manager != m {
		return fmt.Errorf("sandbox %s is not managed here", s.Name)
	}

	prev, ok := s.transition(StateDeleting, StateUnprovisioned, StateStarting, StateReady, StateInUse)
	if !ok {
		return nil
	}

	if prev == StateUnprovisioned {
		s.setState(StateDeleted)
		m.registry.Unregister(s)
		return nil
	}

	target := s.ContainerName
	s.mu.Lock()
	if s.ContainerID != "" {
		target = s.ContainerID
	}
	rec := s.Recorder
	s.mu.Unlock()

	if rec != nil && rec.Active() != nil {
		if _, err := rec.Stop(ctx); err != nil {
			logging.Warn("failed to stop recording before delete", "sandbox", s.Name, "error", err)
		}
	}

	logging.Debug("removing sandbox container", "sandbox", s.Name, "container", target)
	err := m.rt.Remove(ctx, target, true)
	switch {
	case err == nil:
		m.logEvent(s, audit.EventDelete, target)
	case errors.Is(err, errors.ErrNotFound):
		logging.Debug("sandbox container already removed", "sandbox", s.Name)
		m.logEvent(s, audit.EventDelete, "already absent")
	default:
		s.setState(prev)
		m.logEvent(s, audit.EventError, "delete: "+err.Error())
		return errors.TeardownFailed(target, err)
	}

	s.setState(StateDeleted)
	m.registry.Unregister(s)
	return nil
}

// OpenViewer opens the session display page. Failures are reported to the
// caller but do not affect the session.
func (m *Manager) OpenViewer(s *Session, viewOnly bool) (string, error) {
	if !s.Live() {
		return "", fmt.Errorf("sandbox %s is %s", s.Name, s.State())
	}
	return viewer.OpenURL(m.opener, s.Host, s.Ports.Display, viewOnly)
}

func (m *Manager) logEvent(s *Session, t audit.EventType, details string) {
	if m.audit == nil {
		return
	}
	if err := m.audit.LogEvent(t, s.Name, s.ContainerName, details); err != nil {
		logging.Debug("failed to write audit event", "error", err)
	}
}
