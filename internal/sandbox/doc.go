// Package sandbox manages the lifecycle of browser sandboxes.
//
// A sandbox is one container running a browser, its automation server and
// an optional recording sidecar, published on a port pair derived from the
// worker slot.
//
// # Manager
//
// Manager provisions and deletes sandboxes:
//
//	mgr := sandbox.NewManager(cfg, rt, sandbox.WithRegistry(reg))
//
//	s, err := mgr.Provision(ctx, sandbox.ProvisionOptions{
//	    Identity: browser.Identity{Type: browser.Chrome, Version: "latest"},
//	    Slot:     1,
//	    Record:   true,
//	})
//	if err != nil {
//	    return err
//	}
//	defer s.Delete(ctx)
//
// # Provisioning Flow
//
// The Manager.Provision method:
//  1. Validates options and allocates the port pair (configuration errors)
//  2. Registers the session, claiming the port pair
//  3. Checks the image exists
//  4. Runs the container with ports, recording mount, shm size and env
//  5. Polls the automation status endpoint until ready
//  6. Waits for the display to settle when not headless
//
// Any failure after step 2 removes the container and unregisters the
// session before returning.
//
// # Teardown
//
// Delete is idempotent and safe from the signal path. Guard ties a
// Registry to SIGINT and SIGTERM so that every live session is removed
// when the process is interrupted, and again on the normal exit path.
// CleanupStale removes containers left behind by processes that could not
// clean up after themselves.
package sandbox
