// Package audit records sandbox lifecycle events as JSON Lines, one file per session.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// EventType classifies a lifecycle event.
type EventType string

const (
	EventProvision   EventType = "provision"
	EventReady       EventType = "ready"
	EventRecordStart EventType = "record-start"
	EventRecordStop  EventType = "record-stop"
	EventDelete      EventType = "delete"
	EventInterrupt   EventType = "interrupt"
	EventHealth      EventType = "health"
	EventError       EventType = "error"
)

const eventSuffix = ".events.jsonl"

// Event represents a single audit log entry.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Session   string    `json:"session"`
	Container string    `json:"container,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Logger writes and reads audit events for sessions.
// Events are stored in {dir}/{session}.events.jsonl.
type Logger struct {
	dir string
	mu  sync.Mutex
}

// NewLogger creates a new audit logger rooted at dir.
func NewLogger(dir string) *Logger {
	return &Logger{dir: dir}
}

// Dir returns the directory holding event logs.
func (l *Logger) Dir() string {
	return l.dir
}

// eventPath resolves the log file of session inside dir. Session names come
// from the command line, so the result is clamped to dir.
func (l *Logger) eventPath(session string) (string, error) {
	path, err := securejoin.SecureJoin(l.dir, session+eventSuffix)
	if err != nil {
		return "", fmt.Errorf("invalid session name %q: %w", session, err)
	}
	return path, nil
}

// Log appends an event to the session's audit log.
func (l *Logger) Log(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Session == "" {
		return fmt.Errorf("audit event has no session")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	path, err := l.eventPath(event.Session)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogEvent is a convenience method that creates and logs an event.
func (l *Logger) LogEvent(eventType EventType, session, container, details string) error {
	return l.Log(Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Session:   session,
		Container: container,
		Details:   details,
	})
}

// Events reads all events for a session in chronological order.
func (l *Logger) Events(session string) ([]Event, error) {
	path, err := l.eventPath(session)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading audit log: %w", err)
	}

	return events, nil
}

// Sessions lists the sessions that have an event log, sorted by name.
func (l *Logger) Sessions() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sessions []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), eventSuffix) {
			continue
		}
		sessions = append(sessions, strings.TrimSuffix(e.Name(), eventSuffix))
	}
	sort.Strings(sessions)
	return sessions, nil
}

// Remove deletes the audit log for a session.
func (l *Logger) Remove(session string) error {
	path, err := l.eventPath(session)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
