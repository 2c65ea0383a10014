// Package port derives host ports for sandboxes from the worker slot.
//
// Each worker process owns one slot and at most one live sandbox, so the
// mapping is arithmetic rather than a scan of existing state:
//
//	automation = automation_base_port + slot   // 4444, 4445, ...
//	display    = display_base_port + slot      // 7900, 7901, ...
//
// Two workers with different slots therefore never collide, and no
// coordination between worker processes is needed.
package port
