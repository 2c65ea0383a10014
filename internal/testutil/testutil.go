// Package testutil provides test utilities for command tests
package testutil

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/firefly-engineering/browserbox/internal/app"
	"github.com/firefly-engineering/browserbox/internal/browser"
	"github.com/firefly-engineering/browserbox/internal/config"
	"github.com/firefly-engineering/browserbox/internal/runtime"
	"github.com/firefly-engineering/browserbox/internal/sandbox"
)

// TestEnv holds the test environment
type TestEnv struct {
	T        *testing.T
	TmpDir   string
	Config   *config.Config
	Runtime  *runtime.MockRuntime
	Registry *sandbox.Registry
	App      *app.App

	ready   *atomic.Bool
	mu      sync.Mutex
	opened  []string
	cleanup func()
}

// NewTestEnv creates a test environment with a mock runtime holding every
// sandbox image and a status server answering on slot 0's automation port.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir()
	ready := &atomic.Bool{}
	ready.Store(true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"value":{"ready":%t,"message":"testutil"}}`, ready.Load())
	}))
	t.Cleanup(srv.Close)

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("Failed to parse status server address: %v", err)
	}
	statusPort, _ := strconv.Atoi(portStr)

	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.AutomationBasePort = statusPort
	cfg.DisplayBasePort = 17900
	cfg.StateDir = filepath.Join(tmpDir, "state")
	cfg.RecordingDir = filepath.Join(tmpDir, "recordings")
	cfg.ReadyTimeout = config.Duration{Duration: 500 * time.Millisecond}
	cfg.PollInterval = config.Duration{Duration: 20 * time.Millisecond}
	cfg.SettleDelay = config.Duration{Duration: 10 * time.Millisecond}
	cfg.RecordStopGrace = config.Duration{Duration: time.Second}

	mockRuntime := runtime.NewMockRuntime()
	for _, b := range browser.Supported() {
		mockRuntime.AddImage(browser.Identity{Type: b}.Image(cfg.ImagePrefix))
	}

	env := &TestEnv{
		T:        t,
		TmpDir:   tmpDir,
		Config:   cfg,
		Runtime:  mockRuntime,
		Registry: sandbox.NewRegistry(),
		ready:    ready,
	}

	testApp := app.New(
		app.WithConfig(cfg),
		app.WithRuntime(mockRuntime),
		app.WithRegistry(env.Registry),
		app.WithOpener(env.open),
	)
	env.App = testApp

	// Save original default and set test app
	originalDefault := app.Default
	app.SetDefault(testApp)
	env.cleanup = func() {
		app.SetDefault(originalDefault)
	}
	t.Cleanup(env.Cleanup)

	return env
}

// Cleanup restores the original app default
func (e *TestEnv) Cleanup() {
	if e.cleanup != nil {
		e.cleanup()
	}
}

// SetReady controls what the status server reports.
func (e *TestEnv) SetReady(ready bool) {
	e.ready.Store(ready)
}

func (e *TestEnv) open(u string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opened = append(e.opened, u)
	return nil
}

// Opened returns the URLs passed to the viewer opener.
func (e *TestEnv) Opened() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.opened...)
}

// AddSandbox adds a running sandbox container for identity and returns its
// container name.
func (e *TestEnv) AddSandbox(identity browser.Identity, slot int) string {
	e.T.Helper()

	name := e.Config.ContainerPrefix + sandbox.SessionName(identity.Type, slot, "fixture")
	e.Runtime.AddContainer(name, identity.Image(e.Config.ImagePrefix), runtime.StatusRunning)
	return name
}

// WriteFile writes data under the temp dir and returns its path.
func (e *TestEnv) WriteFile(name string, data []byte) string {
	e.T.Helper()

	path := filepath.Join(e.TmpDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		e.T.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		e.T.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// WriteManifest writes the sample manifest fixture and returns its path.
func (e *TestEnv) WriteManifest() string {
	e.T.Helper()

	data, err := LoadFixture("manifest.yaml")
	if err != nil {
		e.T.Fatalf("Failed to load manifest fixture: %v", err)
	}
	return e.WriteFile("manifest.yaml", data)
}
