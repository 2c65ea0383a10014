// Package monitor provides background health monitoring for live sandboxes.
package monitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/firefly-engineering/browserbox/internal/audit"
	"github.com/firefly-engineering/browserbox/internal/health"
	"github.com/firefly-engineering/browserbox/internal/logging"
	"github.com/firefly-engineering/browserbox/internal/runtime"
	"github.com/firefly-engineering/browserbox/internal/sandbox"
)

// DefaultInterval is the delay between two rounds of checks.
const DefaultInterval = 10 * time.Second

// Status is the observed health of a sandbox.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy" // container runs, automation server not ready
	StatusGone      Status = "gone"      // container stopped or removed
)

// CheckResult holds the result of a single sandbox health check.
type CheckResult struct {
	Session string
	Status  Status
	Err     error
}

// Monitor periodically checks the sandboxes of a registry.
type Monitor struct {
	interval time.Duration
	rt       runtime.Runtime
	reg      *sandbox.Registry
	prober   *health.Prober
	auditLog *audit.Logger
	onGone   func(*sandbox.Session)

	mu   sync.Mutex
	last map[string]Status
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithAuditLogger records health changes in the sessions' event logs.
func WithAuditLogger(logger *audit.Logger) Option {
	return func(m *Monitor) {
		m.auditLog = logger
	}
}

// WithProber sets the prober used for readiness checks.
func WithProber(p *health.Prober) Option {
	return func(m *Monitor) {
		if p != nil {
			m.prober = p
		}
	}
}

// WithOnGone sets a callback run once when a sandbox's container disappears.
func WithOnGone(fn func(*sandbox.Session)) Option {
	return func(m *Monitor) {
		m.onGone = fn
	}
}

// New creates a new Monitor.
func New(interval time.Duration, rt runtime.Runtime, reg *sandbox.Registry, opts ...Option) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m := &Monitor{
		interval: interval,
		rt:       rt,
		reg:      reg,
		prober:   health.NewProber(),
		last:     make(map[string]Status),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts the monitoring loop. It blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	logging.Debug("starting health monitor", "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Debug("health monitor stopping")
			return ctx.Err()
		case <-ticker.C:
			m.checkAll(ctx)
		}
	}
}

// checkAll checks every registered sandbox that is ready or in use.
func (m *Monitor) checkAll(ctx context.Context) []CheckResult {
	var results []CheckResult
	for _, s := range m.reg.Live() {
		if ctx.Err() != nil {
			break
		}
		if st := s.State(); st != sandbox.StateReady && st != sandbox.StateInUse {
			continue
		}

		result := m.check(ctx, s)
		results = append(results, result)
		m.record(s, result)
	}
	return results
}

func (m *Monitor) check(ctx context.Context, s *sandbox.Session) CheckResult {
	result := CheckResult{Session: s.Name}

	containers, err := m.rt.List(ctx, s.ContainerName)
	if err != nil {
		// Runtime hiccups say nothing about the sandbox.
		result.Status = StatusHealthy
		result.Err = err
		return result
	}
	running := false
	for _, c := range containers {
		if c.Name == s.ContainerName || strings.HasPrefix(c.ID, s.ContainerID) {
			running = c.Status == runtime.StatusRunning
			break
		}
	}
	if !running {
		result.Status = StatusGone
		return result
	}

	if ok, err := m.prober.Check(ctx, s.StatusURL()); !ok {
		result.Status = StatusUnhealthy
		result.Err = err
		return result
	}
	result.Status = StatusHealthy
	return result
}

// record logs status changes and fires the gone callback once per session.
func (m *Monitor) record(s *sandbox.Session, r CheckResult) {
	m.mu.Lock()
	prev, seen := m.last[s.Name]
	m.last[s.Name] = r.Status
	m.mu.Unlock()

	if r.Err != nil {
		logging.Debug("health check", "session", s.Name, "status", r.Status, "error", r.Err)
	}
	if seen && prev == r.Status || !seen && r.Status == StatusHealthy {
		return
	}

	switch r.Status {
	case StatusHealthy:
		logging.Info("sandbox recovered", "session", s.Name)
	case StatusUnhealthy:
		logging.Warn("sandbox automation server not ready", "session", s.Name, "error", r.Err)
	case StatusGone:
		logging.Warn("sandbox container is gone", "session", s.Name, "container", s.ContainerName)
	}
	if m.auditLog != nil {
		_ = m.auditLog.LogEvent(audit.EventHealth, s.Name, s.ContainerID, string(r.Status))
	}
	if r.Status == StatusGone && m.onGone != nil {
		m.onGone(s)
	}
}
