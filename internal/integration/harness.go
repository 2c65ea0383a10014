package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/firefly-engineering/browserbox/internal/audit"
	"github.com/firefly-engineering/browserbox/internal/browser"
	"github.com/firefly-engineering/browserbox/internal/config"
	"github.com/firefly-engineering/browserbox/internal/runtime"
	"github.com/firefly-engineering/browserbox/internal/sandbox"
)

// EnvIntegration enables tests that use a real container runtime.
const EnvIntegration = "BROWSERBOX_INTEGRATION_TESTS"

// Base ports away from the defaults, so a developer's own sandboxes keep running.
const (
	harnessAutomationBase = 24444
	harnessDisplayBase    = 27900
)

// TestHarness provides utilities for integration testing with real containers.
type TestHarness struct {
	t        *testing.T
	tempDir  string
	cfg      *config.Config
	rt       runtime.Runtime
	registry *sandbox.Registry
	audit    *audit.Logger
	manager  *sandbox.Manager
}

// NewHarness creates a new test harness.
// It will skip the test if BROWSERBOX_INTEGRATION_TESTS is not set.
func NewHarness(t *testing.T) *TestHarness {
	t.Helper()

	if os.Getenv(EnvIntegration) == "" {
		t.Skipf("integration tests disabled (set %s=1 to enable)", EnvIntegration)
	}

	tempDir := t.TempDir()

	cfg := config.Default()
	cfg.AutomationBasePort = harnessAutomationBase
	cfg.DisplayBasePort = harnessDisplayBase
	cfg.StateDir = filepath.Join(tempDir, "state")
	cfg.RecordingDir = filepath.Join(tempDir, "recordings")
	cfg.ReadyTimeout = config.Duration{Duration: 60 * time.Second}
	if rt := os.Getenv("BROWSERBOX_RUNTIME"); rt != "" {
		cfg.Runtime = rt
	}

	typ, err := runtime.ParseType(cfg.Runtime)
	if err != nil {
		t.Fatalf("invalid runtime: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rt, err := runtime.New(ctx, typ)
	if err != nil {
		t.Skipf("no container runtime available: %v", err)
	}

	h := &TestHarness{
		t:        t,
		tempDir:  tempDir,
		cfg:      cfg,
		rt:       rt,
		registry: sandbox.NewRegistry(),
		audit:    audit.NewLogger(cfg.AuditDir()),
	}
	h.manager = sandbox.NewManager(cfg, rt,
		sandbox.WithRegistry(h.registry),
		sandbox.WithAuditLogger(h.audit),
	)

	t.Cleanup(h.Cleanup)

	return h
}

// Config returns the harness configuration.
func (h *TestHarness) Config() *config.Config {
	return h.cfg
}

// Runtime returns the container runtime.
func (h *TestHarness) Runtime() runtime.Runtime {
	return h.rt
}

// Manager returns the sandbox manager.
func (h *TestHarness) Manager() *sandbox.Manager {
	return h.manager
}

// Audit returns the event logger sessions write to.
func (h *TestHarness) Audit() *audit.Logger {
	return h.audit
}

// RecordingDir returns the host directory recordings land in.
func (h *TestHarness) RecordingDir() string {
	return h.cfg.RecordingDir
}

// RequireImage skips the test if the sandbox image for identity is absent.
func (h *TestHarness) RequireImage(identity browser.Identity) {
	h.t.Helper()

	image := identity.Image(h.cfg.ImagePrefix)
	exists, err := h.rt.ImageExists(context.Background(), image)
	if err != nil {
		h.t.Skipf("failed to inspect %s: %v", image, err)
	}
	if !exists {
		h.t.Skipf("image %s not found (run 'browserbox build')", image)
	}
}

// Provision provisions a sandbox and fails the test on error.
func (h *TestHarness) Provision(opts sandbox.ProvisionOptions) *sandbox.Session {
	h.t.Helper()

	h.RequireImage(opts.Identity)
	s, err := h.manager.Provision(context.Background(), opts)
	if err != nil {
		h.t.Fatalf("Provision %s failed: %v", opts.Identity, err)
	}
	return s
}

// Cleanup removes every sandbox still registered.
func (h *TestHarness) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), sandbox.TeardownTimeout)
	defer cancel()

	if err := h.registry.TeardownAll(ctx); err != nil {
		h.t.Logf("Warning: teardown incomplete: %v", err)
	}
}

// DefaultIdentity returns the browser used by integration tests.
func DefaultIdentity() browser.Identity {
	return browser.Identity{Type: browser.Chrome, Version: browser.DefaultVersion}
}
