package sandbox

import (
	"context"
	"testing"

	"github.com/firefly-engineering/browserbox/internal/port"
)

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()

	a := &Session{Name: "a", Ports: port.Pair{Automation: 4444, Display: 7900}}
	b := &Session{Name: "b", Ports: port.Pair{Automation: 4445, Display: 7901}}
	clash := &Session{Name: "c", Ports: port.Pair{Automation: 4444, Display: 7900}}
	dup := &Session{Name: "a", Ports: port.Pair{Automation: 4446, Display: 7902}}

	if err := reg.Register(a); err != nil {
		t.Fatalf("Register(a) failed: %v", err)
	}
	if err := reg.Register(b); err != nil {
		t.Fatalf("Register(b) failed: %v", err)
	}
	if err := reg.Register(clash); err == nil {
		t.Error("expected error registering a held port pair")
	}
	if err := reg.Register(dup); err == nil {
		t.Error("expected error registering a duplicate name")
	}

	live := reg.Live()
	if len(live) != 2 || live[0].Name != "a" || live[1].Name != "b" {
		t.Errorf("Live() = %v", live)
	}

	reg.Unregister(a)
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
	if err := reg.Register(clash); err != nil {
		t.Errorf("port pair should be free after Unregister: %v", err)
	}
}

func TestRegistry_UnregisterUnknown(t *testing.T) {
	reg := NewRegistry()
	a := &Session{Name: "a", Ports: port.Pair{Automation: 4444, Display: 7900}}
	impostor := &Session{Name: "a", Ports: port.Pair{Automation: 4444, Display: 7900}}

	if err := reg.Register(a); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	reg.Unregister(impostor)
	if reg.Len() != 1 {
		t.Error("Unregister of a different session with the same name should be ignored")
	}
}

func TestRegistry_TeardownAllEmpty(t *testing.T) {
	if err := NewRegistry().TeardownAll(context.Background()); err != nil {
		t.Errorf("TeardownAll on empty registry: %v", err)
	}
}
