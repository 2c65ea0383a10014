// Package integration provides a test harness for integration tests
// that require a real container runtime.
//
// Integration tests are skipped unless the BROWSERBOX_INTEGRATION_TESTS
// environment variable is set. These tests require:
//   - A reachable docker daemon (or podman / docker CLI on PATH)
//   - The sandbox images, built with 'browserbox build'
//   - Free host ports from 24444 and 27900 upwards
//
// # Test Harness
//
// TestHarness manages test environments:
//
//	func TestMyIntegration(t *testing.T) {
//	    h := integration.NewHarness(t) // Skips if env var not set
//
//	    s := h.Provision(sandbox.ProvisionOptions{Identity: integration.DefaultIdentity()})
//
//	    // Drive the browser at s.AutomationURL()...
//
//	    // Teardown is automatic via t.Cleanup
//	}
//
// # Harness Features
//
// The harness provides:
//   - Isolated temporary directories for state and recordings
//   - A sandbox manager on the detected runtime with its own registry
//   - Image checks that skip instead of failing (RequireImage)
//   - Teardown of every sandbox still registered when the test ends
//
// The workflow tests in this package need no runtime: they run complete
// code paths against the mock runtime.
//
// # Running Integration Tests
//
//	BROWSERBOX_INTEGRATION_TESTS=1 go test -v ./internal/integration/...
package integration
