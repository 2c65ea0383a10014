// Package viewer opens a human view onto a running sandbox.
//
// Two surfaces are supported. OpenURL launches the system browser on the
// noVNC page the sandbox publishes on its display port. Connect starts a
// native VNC viewer against a published VNC port and returns a release
// function that kills it; callers defer the release so the viewer never
// outlives the sandbox.
//
// Both are advisory: a missing viewer binary or browser is reported but
// does not affect the sandbox.
package viewer
