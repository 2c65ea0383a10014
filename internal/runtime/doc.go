// Package runtime provides the container operations a browser sandbox needs.
//
// Backends:
//   - api: the Docker Engine API (github.com/docker/docker/client)
//   - docker, podman: the respective CLI, driven through system.CommandExecutor
//   - mock: an in-memory implementation for tests
//
// New(ctx, RuntimeAuto) prefers the Engine API when the daemon answers a
// ping and falls back to whichever CLI is on PATH.
//
// # Runtime Interface
//
// The Runtime interface covers exactly one container shape:
//   - Run: start a detached container with published ports, mounts, env and shm size
//   - Exec: run a command inside it, blocking or detached
//   - List, Remove: enumerate and force-remove containers
//   - ImageExists, RemoveImage, Build: the image operations used by the builder
//
// Remove and RemoveImage report absent objects with an error matching
// errors.ErrNotFound so that teardown paths can treat them as already done.
//
// # Mock Runtime
//
// For testing, use NewMockRuntime() to create a mock implementation that can
// be configured with images, injected errors and exec results, and used to
// verify the calls made against it.
package runtime
