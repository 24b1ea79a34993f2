// Package audit records session lifecycle events.
// Events are stored as JSON Lines (JSONL) files, one per user.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/jonboulle/clockwork"
)

// EventType classifies a lifecycle event.
type EventType string

const (
	EventLaunch      EventType = "launch"
	EventRotate      EventType = "rotate-credential"
	EventReboot      EventType = "reboot"
	EventReset       EventType = "reset"
	EventDestroy     EventType = "destroy"
	EventSave        EventType = "save"
	EventPromote     EventType = "promote"
	EventDeleteImage EventType = "delete-image"
	EventReconcile   EventType = "reconcile"
	EventHealth      EventType = "health"
	EventError       EventType = "error"
)

// SystemUser owns events that are not tied to one user.
const SystemUser = "_system"

// Event represents a single audit log entry.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	User      string    `json:"user"`
	Session   string    `json:"session,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Logger writes and reads audit events.
// Events are stored in {stateDir}/audit/{user}.events.jsonl.
type Logger struct {
	stateDir string
	clock    clockwork.Clock
	mu       sync.Mutex
}

// NewLogger creates a new audit logger rooted at stateDir.
func NewLogger(stateDir string, clock clockwork.Clock) *Logger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Logger{stateDir: stateDir, clock: clock}
}

// eventPath returns the path to the JSONL event log for a user.
func (l *Logger) eventPath(user string) (string, error) {
	if user == "" {
		user = SystemUser
	}
	return securejoin.SecureJoin(filepath.Join(l.stateDir, "audit"), user+".events.jsonl")
}

// Log appends an event to the user's audit log.
func (l *Logger) Log(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.clock.Now()
	}

	path, err := l.eventPath(event.User)
	if err != nil {
		return fmt.Errorf("invalid audit log path: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogEvent is a convenience method that creates and logs an event.
func (l *Logger) LogEvent(eventType EventType, user, session, details string) error {
	return l.Log(Event{
		Type:    eventType,
		User:    user,
		Session: session,
		Details: details,
	})
}

// Events reads all events for a user in chronological order.
func (l *Logger) Events(user string) ([]Event, error) {
	path, err := l.eventPath(user)
	if err != nil {
		return nil, fmt.Errorf("invalid audit log path: %w", err)
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

// Remove deletes the audit log for a user.
func (l *Logger) Remove(user string) error {
	path, err := l.eventPath(user)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
