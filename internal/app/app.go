// Package app provides the application context for browserbox.
// It allows dependency injection for testing.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/firefly-engineering/browserbox/internal/audit"
	"github.com/firefly-engineering/browserbox/internal/builder"
	"github.com/firefly-engineering/browserbox/internal/config"
	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/health"
	"github.com/firefly-engineering/browserbox/internal/runtime"
	"github.com/firefly-engineering/browserbox/internal/sandbox"
	"github.com/firefly-engineering/browserbox/internal/viewer"
)

// App holds the application dependencies
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// Runtime is the container runtime. Detected on first use when nil.
	Runtime runtime.Runtime

	// Registry tracks the sandboxes this process must tear down
	Registry *sandbox.Registry

	// Audit receives per-session events
	Audit *audit.Logger

	// Prober is used for readiness checks; nil means defaults
	Prober *health.Prober

	// Opener opens viewer pages
	Opener viewer.Opener

	mu sync.Mutex
}

// Option is a function that configures the App
type Option func(*App)

// WithConfig sets the configuration
func WithConfig(cfg *config.Config) Option {
	return func(a *App) {
		a.Config = cfg
	}
}

// WithRuntime sets a custom runtime
func WithRuntime(r runtime.Runtime) Option {
	return func(a *App) {
		a.Runtime = r
	}
}

// WithRegistry sets the sandbox registry
func WithRegistry(reg *sandbox.Registry) Option {
	return func(a *App) {
		a.Registry = reg
	}
}

// WithAuditLogger sets the audit logger
func WithAuditLogger(l *audit.Logger) Option {
	return func(a *App) {
		a.Audit = l
	}
}

// WithProber sets the readiness prober
func WithProber(p *health.Prober) Option {
	return func(a *App) {
		a.Prober = p
	}
}

// WithOpener sets how viewer pages are opened
func WithOpener(o viewer.Opener) Option {
	return func(a *App) {
		a.Opener = o
	}
}

// New creates a new App with the given options.
// The runtime is not detected here; see ContainerRuntime.
func New(opts ...Option) *App {
	app := &App{}

	for _, opt := range opts {
		opt(app)
	}

	if app.Config == nil {
		app.Config = config.Default()
	}
	if app.Registry == nil {
		app.Registry = sandbox.NewRegistry()
	}
	if app.Audit == nil {
		app.Audit = audit.NewLogger(app.Config.AuditDir())
	}
	if app.Opener == nil {
		app.Opener = viewer.DefaultOpener
	}

	return app
}

// ContainerRuntime returns the runtime, detecting it from the configured
// runtime type on first use.
func (a *App) ContainerRuntime(ctx context.Context) (runtime.Runtime, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Runtime != nil {
		return a.Runtime, nil
	}

	typ, err := runtime.ParseType(a.Config.Runtime)
	if err != nil {
		return nil, errors.ConfigError("invalid runtime", err)
	}
	rt, err := runtime.New(ctx, typ)
	if err != nil {
		return nil, errors.ContainerFailed("runtime setup", fmt.Errorf("%w (is the docker daemon running?)", err))
	}
	a.Runtime = rt
	return rt, nil
}

// Manager returns a sandbox manager bound to the app's registry.
func (a *App) Manager(ctx context.Context) (*sandbox.Manager, error) {
	rt, err := a.ContainerRuntime(ctx)
	if err != nil {
		return nil, err
	}
	opts := []sandbox.Option{
		sandbox.WithRegistry(a.Registry),
		sandbox.WithAuditLogger(a.Audit),
		sandbox.WithOpener(a.Opener),
	}
	if a.Prober != nil {
		opts = append(opts, sandbox.WithProber(a.Prober))
	}
	return sandbox.NewManager(a.Config, rt, opts...), nil
}

// Builder returns an image builder writing progress to out.
func (a *App) Builder(ctx context.Context, out io.Writer) (*builder.Builder, error) {
	rt, err := a.ContainerRuntime(ctx)
	if err != nil {
		return nil, err
	}
	return builder.New(rt, a.Config, out), nil
}

// Default is the default application instance
var Default = New()

// SetDefault sets the default application instance (used for testing)
func SetDefault(app *App) {
	Default = app
}

// ResetDefault resets to the default application instance
func ResetDefault() {
	Default = New()
}
