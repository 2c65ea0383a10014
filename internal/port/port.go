package port

import (
	"fmt"

	"github.com/firefly-engineering/browserbox/internal/config"
)

const maxPort = 65535

// Pair holds the host ports a single sandbox publishes.
type Pair struct {
	Automation int `json:"automation" yaml:"automation"`
	Display    int `json:"display" yaml:"display"`
	VNC        int `json:"vnc,omitempty" yaml:"vnc,omitempty"` // 0 when not published
}

// Key identifies the pair for uniqueness checks; VNC follows from the slot.
func (p Pair) Key() string {
	return fmt.Sprintf("%d/%d", p.Automation, p.Display)
}

func (p Pair) String() string {
	if p.VNC != 0 {
		return fmt.Sprintf("%d/%d/%d", p.Automation, p.Display, p.VNC)
	}
	return p.Key()
}

// Allocate returns the host port for a worker slot: base + slot.
// Distinct slots always get distinct ports for the same base.
func Allocate(base, slot int) (int, error) {
	if slot < 0 {
		return 0, fmt.Errorf("worker slot must be non-negative (got %d)", slot)
	}
	if base < 1 {
		return 0, fmt.Errorf("base port must be positive (got %d)", base)
	}
	p := base + slot
	if p > maxPort {
		return 0, fmt.Errorf("port %d for slot %d exceeds %d", p, slot, maxPort)
	}
	return p, nil
}

// AllocatePair allocates both the automation and display ports for a slot.
func AllocatePair(cfg *config.Config, slot int) (Pair, error) {
	automation, err := Allocate(cfg.AutomationBasePort, slot)
	if err != nil {
		return Pair{}, fmt.Errorf("automation port: %w", err)
	}
	display, err := Allocate(cfg.DisplayBasePort, slot)
	if err != nil {
		return Pair{}, fmt.Errorf("display port: %w", err)
	}
	if automation == display {
		return Pair{}, fmt.Errorf("automation and display ports collide at %d", automation)
	}

	pair := Pair{Automation: automation, Display: display}
	if cfg.VNCBasePort > 0 {
		vnc, err := Allocate(cfg.VNCBasePort, slot)
		if err != nil {
			return Pair{}, fmt.Errorf("vnc port: %w", err)
		}
		if vnc == automation || vnc == display {
			return Pair{}, fmt.Errorf("vnc port %d collides with another port", vnc)
		}
		pair.VNC = vnc
	}
	return pair, nil
}
