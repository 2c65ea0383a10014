package audit

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLogger_LogAndEvents(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)

	now := time.Now().Truncate(time.Millisecond)

	events := []Event{
		{Timestamp: now, Type: EventProvision, Session: "chrome-0", Details: "chrome:latest ports=4444/7900"},
		{Timestamp: now.Add(time.Second), Type: EventReady, Session: "chrome-0", Container: "abc"},
		{Timestamp: now.Add(2 * time.Second), Type: EventRecordStart, Session: "chrome-0", Details: "login_20240101-120000.mp4"},
		{Timestamp: now.Add(3 * time.Second), Type: EventDelete, Session: "chrome-0", Container: "abc"},
	}

	for _, e := range events {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	result, err := logger.Events("chrome-0")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	if len(result) != len(events) {
		t.Fatalf("got %d events, want %d", len(result), len(events))
	}

	for i, e := range result {
		if e.Type != events[i].Type {
			t.Errorf("event %d: type = %q, want %q", i, e.Type, events[i].Type)
		}
		if e.Session != events[i].Session {
			t.Errorf("event %d: session = %q, want %q", i, e.Session, events[i].Session)
		}
		if e.Details != events[i].Details {
			t.Errorf("event %d: details = %q, want %q", i, e.Details, events[i].Details)
		}
	}
}

func TestLogger_EventsEmpty(t *testing.T) {
	logger := NewLogger(t.TempDir())

	result, err := logger.Events("nonexistent")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	if len(result) != 0 {
		t.Errorf("got %d events, want 0", len(result))
	}
}

func TestLogger_LogEvent(t *testing.T) {
	logger := NewLogger(t.TempDir())

	if err := logger.LogEvent(EventError, "edge-1", "c1", "readiness timeout"); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	events, err := logger.Events("edge-1")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if events[0].Container != "c1" {
		t.Errorf("container = %q, want %q", events[0].Container, "c1")
	}
}

func TestLogger_RejectsEmptySession(t *testing.T) {
	logger := NewLogger(t.TempDir())
	if err := logger.Log(Event{Type: EventReady}); err == nil {
		t.Error("Log should reject events without a session")
	}
}

func TestLogger_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)

	_ = logger.LogEvent(EventProvision, "s", "", "")
	f, err := os.OpenFile(filepath.Join(dir, "s.events.jsonl"), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, _ = f.WriteString("{not json\n\n")
	f.Close()
	_ = logger.LogEvent(EventDelete, "s", "", "")

	events, err := logger.Events("s")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2", len(events))
	}
}

func TestLogger_Sessions(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)

	_ = logger.LogEvent(EventProvision, "firefox-1", "", "")
	_ = logger.LogEvent(EventProvision, "chrome-0", "", "")
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)

	sessions, err := logger.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0] != "chrome-0" || sessions[1] != "firefox-1" {
		t.Errorf("Sessions = %v, want [chrome-0 firefox-1]", sessions)
	}

	empty := NewLogger(filepath.Join(dir, "missing"))
	if got, err := empty.Sessions(); err != nil || got != nil {
		t.Errorf("Sessions on missing dir = %v, %v", got, err)
	}
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	logger := NewLogger(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = logger.LogEvent(EventInterrupt, "shared", "", "")
		}()
	}
	wg.Wait()

	events, err := logger.Events("shared")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(events) != 20 {
		t.Errorf("got %d events, want 20", len(events))
	}
}

func TestLogger_Remove(t *testing.T) {
	logger := NewLogger(t.TempDir())
	_ = logger.LogEvent(EventDelete, "gone", "", "")

	if err := logger.Remove("gone"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := logger.Remove("gone"); err != nil {
		t.Errorf("second Remove = %v, want nil", err)
	}
	events, _ := logger.Events("gone")
	if len(events) != 0 {
		t.Errorf("events after Remove = %d, want 0", len(events))
	}
}

func TestLogger_SessionNameStaysInDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "events")
	logger := NewLogger(dir)

	if err := logger.LogEvent(EventDelete, "../../escape", "", "removed by down"); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "escape"+eventSuffix)); !os.IsNotExist(err) {
		t.Errorf("event log written outside %s", dir)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape"+eventSuffix)); err != nil {
		t.Errorf("event log should be clamped into %s: %v", dir, err)
	}

	events, err := logger.Events("../../escape")
	if err != nil || len(events) != 1 {
		t.Errorf("Events = %d, %v; want 1 event", len(events), err)
	}
	if err := logger.Remove("../../escape"); err != nil {
		t.Errorf("Remove failed: %v", err)
	}
}
