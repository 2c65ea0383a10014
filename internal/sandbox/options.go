package sandbox

import (
	"fmt"

	"github.com/firefly-engineering/browserbox/internal/browser"
)

// ProvisionOptions holds all options for provisioning a sandbox.
type ProvisionOptions struct {
	// Identity is the browser and version to run (required)
	Identity browser.Identity

	// Slot is the worker slot; host ports are base + Slot
	Slot int

	// Headless starts the browser without a virtual display
	Headless bool

	// Record enables the recording sidecar. Ignored in headless mode
	// unless record_in_headless is set.
	Record bool

	// RecordingDir is the host directory mounted for recordings.
	// Defaults to the configured recording_dir.
	RecordingDir string
}

// Validate checks the options before any resource is touched.
func (o ProvisionOptions) Validate() error {
	if err := o.Identity.Validate(); err != nil {
		return err
	}
	if o.Slot < 0 {
		return fmt.Errorf("worker slot must be non-negative (got %d)", o.Slot)
	}
	return nil
}
