// Package app provides the application context for browserbox.
//
// This package manages application-wide dependencies using the functional
// options pattern, enabling easy testing through dependency injection.
//
// # App Context
//
// The App struct holds core dependencies:
//
//	type App struct {
//	    Config   *config.Config    // Loaded configuration
//	    Runtime  runtime.Runtime   // Container runtime (detected lazily)
//	    Registry *sandbox.Registry // Live sandboxes of this process
//	    Audit    *audit.Logger     // Per-session event log
//	}
//
// # Creating an App
//
// Use New with functional options:
//
//	// Production usage
//	a := app.New(app.WithConfig(cfg))
//
//	// Testing with custom dependencies
//	a := app.New(
//	    app.WithConfig(testConfig),
//	    app.WithRuntime(mockRuntime),
//	    app.WithRegistry(sandbox.NewRegistry()),
//	)
//
// # Available Options
//
//	WithConfig(cfg)          // Configuration
//	WithRuntime(runtime)     // Custom container runtime
//	WithRegistry(registry)   // Sandbox registry
//	WithAuditLogger(logger)  // Audit trail
//	WithProber(prober)       // Readiness prober
//	WithOpener(opener)       // Viewer page opener
package app
