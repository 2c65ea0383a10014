// Package recording controls the screen-recording sidecar of a sandbox.
//
// Recording runs ffmpeg inside the browser container, grabbing the X display
// into the directory mounted from the host. Start launches it detached; Stop
// sends SIGINT so ffmpeg writes a valid trailer, then waits a bounded grace
// period for it to exit. Record wraps both around a function:
//
//	err := rec.Record(ctx, "login flow", func(ctx context.Context) error {
//		return runTest(ctx)
//	})
//
// File names carry a timestamp and are normalized by ConvertToFilename.
// A Recorder with Enabled false does nothing, which is how headless sessions
// skip recording.
package recording
