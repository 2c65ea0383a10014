// Package config provides configuration types and loading for browserbox.
//
// # Configuration File
//
// Settings are read from browserbox.toml (or --config, or $BROWSERBOX_CONFIG)
// and layered over Default(). A missing file is not an error.
//
//	image_prefix = "selenium"          # images are <prefix>-<browser>:<version>
//	automation_base_port = 4444        # + worker slot
//	display_base_port = 7900           # + worker slot
//	vnc_base_port = 0                  # publish raw VNC (5900) at base + slot when non-zero
//	shm_size = "2g"
//	recording_dir = "videos"
//	ready_timeout = "30s"
//	record_in_headless = false
//	runtime = "auto"                   # auto, docker, podman, api
//
// # Worker Slots
//
// WorkerSlot reads BROWSERBOX_WORKER (integer) or PYTEST_XDIST_WORKER ("gw3").
// A malformed value is an error rather than a silent default.
package config
