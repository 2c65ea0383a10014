package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firefly-engineering/browserbox/internal/audit"
	"github.com/firefly-engineering/browserbox/internal/browser"
	"github.com/firefly-engineering/browserbox/internal/sandbox"
	"github.com/firefly-engineering/browserbox/internal/testutil"
)

func provision(t *testing.T, env *testutil.TestEnv) *sandbox.Session {
	t.Helper()

	mgr, err := env.App.Manager(context.Background())
	if err != nil {
		t.Fatalf("Manager failed: %v", err)
	}
	s, err := mgr.Provision(context.Background(), sandbox.ProvisionOptions{
		Identity: browser.Identity{Type: browser.Chrome},
		Slot:     0,
	})
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Delete(context.Background()) })
	return s
}

func healthEvents(t *testing.T, l *audit.Logger, session string) []string {
	t.Helper()

	events, err := l.Events(session)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	var out []string
	for _, e := range events {
		if e.Type == audit.EventHealth {
			out = append(out, e.Details)
		}
	}
	return out
}

func TestMonitor_New(t *testing.T) {
	env := testutil.NewTestEnv(t)

	m := New(0, env.Runtime, env.Registry)
	if m.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", m.interval, DefaultInterval)
	}
	if m.auditLog != nil {
		t.Error("auditLog should default to nil")
	}
	if m.prober == nil {
		t.Error("prober should default to a new prober")
	}
}

func TestMonitor_CheckAllEmpty(t *testing.T) {
	env := testutil.NewTestEnv(t)

	m := New(time.Second, env.Runtime, env.Registry)
	if results := m.checkAll(context.Background()); len(results) != 0 {
		t.Errorf("got %d results, want 0 for an empty registry", len(results))
	}
}

func TestMonitor_StatusTransitions(t *testing.T) {
	env := testutil.NewTestEnv(t)
	s := provision(t, env)

	gone := 0
	m := New(time.Second, env.Runtime, env.Registry,
		WithAuditLogger(env.App.Audit),
		WithOnGone(func(got *sandbox.Session) {
			if got != s {
				t.Errorf("onGone called with %s", got.Name)
			}
			gone++
		}),
	)
	ctx := context.Background()

	results := m.checkAll(ctx)
	if len(results) != 1 || results[0].Status != StatusHealthy {
		t.Fatalf("expected one healthy result, got %+v", results)
	}
	if got := healthEvents(t, env.App.Audit, s.Name); len(got) != 0 {
		t.Errorf("an initially healthy sandbox should not be logged, got %v", got)
	}

	env.SetReady(false)
	results = m.checkAll(ctx)
	if results[0].Status != StatusUnhealthy {
		t.Errorf("status = %s, want %s", results[0].Status, StatusUnhealthy)
	}

	env.SetReady(true)
	m.checkAll(ctx)

	if err := env.Runtime.Remove(ctx, s.ContainerID, true); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	results = m.checkAll(ctx)
	if results[0].Status != StatusGone {
		t.Errorf("status = %s, want %s", results[0].Status, StatusGone)
	}
	m.checkAll(ctx)

	if gone != 1 {
		t.Errorf("onGone called %d times, want 1", gone)
	}
	want := []string{"unhealthy", "healthy", "gone"}
	got := healthEvents(t, env.App.Audit, s.Name)
	if len(got) != len(want) {
		t.Fatalf("health events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestMonitor_SkipsSessionsNotReady(t *testing.T) {
	env := testutil.NewTestEnv(t)
	s := provision(t, env)

	m := New(time.Second, env.Runtime, env.Registry)
	err := s.Use(context.Background(), "", func(ctx context.Context) error {
		if results := m.checkAll(ctx); len(results) != 1 {
			t.Errorf("sessions in use should be checked, got %d results", len(results))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Use failed: %v", err)
	}

	if err := s.Delete(context.Background()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if results := m.checkAll(context.Background()); len(results) != 0 {
		t.Errorf("deleted sessions should not be checked, got %d results", len(results))
	}
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	env := testutil.NewTestEnv(t)

	m := New(10*time.Millisecond, env.Runtime, env.Registry)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := m.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run returned %v, want deadline exceeded", err)
	}
}
