// Package testutil provides test fixtures and utilities.
//
// # Fixtures
//
// Fixtures are embedded using go:embed:
//
//	fixtures/valid_config.toml
//	fixtures/invalid_config.toml
//	fixtures/manifest.yaml
//
// Helper functions load and parse them into typed objects:
//
//	cfg, err := testutil.ValidConfig()
//	_, err := testutil.InvalidConfig() // always an error
//	m, err := testutil.Manifest()
//
// # Test Environment
//
// NewTestEnv wires a temporary config, a mock runtime holding every sandbox
// image, a status server for readiness probes and an app installed as
// app.Default for the duration of the test:
//
//	env := testutil.NewTestEnv(t)
//	env.AddSandbox(browser.Identity{Type: browser.Chrome}, 0)
//	env.SetReady(false) // make provisioning time out
package testutil
