package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event levels.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Event is one line of the event log.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Type    string         `json:"type"` // e.g. "measurement.saved", "session.trashed"
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// SessionID returns the session_id attribute of the event, if any.
func (e Event) SessionID() string {
	id, _ := e.Data["session_id"].(string)
	return id
}

// EventFilter specifies criteria for reading events. Empty fields match
// everything.
type EventFilter struct {
	Since      *time.Time
	Until      *time.Time
	Type       string
	TypePrefix string // e.g. "session." for every session lifecycle event
	Level      string
	SessionID  string
}

// EventLog defines the interface for writing and reading events.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// jsonlEventLog implements EventLog using an append-only JSONL file.
type jsonlEventLog struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewJSONLEventLog opens, creating if needed, the JSONL event log at path.
func NewJSONLEventLog(path string) (EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating event log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{path: path, file: f}, nil
}

// Write appends the event as a single JSON line.
func (l *jsonlEventLog) Write(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event %s: %w", event.Type, err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing event %s: %w", event.Type, err)
	}
	return nil
}

// Read scans the whole log and returns the events matching filter, in
// write order. Malformed lines are skipped.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		if filter.matches(event) {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}
	return events, nil
}

func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

func (f EventFilter) matches(event Event) bool {
	if f.Since != nil && event.Time.Before(*f.Since) {
		return false
	}
	if f.Until != nil && event.Time.After(*f.Until) {
		return false
	}
	if f.Type != "" && event.Type != f.Type {
		return false
	}
	if f.TypePrefix != "" && !strings.HasPrefix(event.Type, f.TypePrefix) {
		return false
	}
	if f.Level != "" && event.Level != f.Level {
		return false
	}
	if f.SessionID != "" && event.SessionID() != f.SessionID {
		return false
	}
	return true
}

var eventMessages = map[string]string{
	"session.created":         "capture session started",
	"session.discarded":       "empty session discarded on exit",
	"session.trashed":         "session moved to trash",
	"session.restored":        "session restored from trash",
	"session.purged":          "session permanently deleted",
	"trash.emptied":           "trash emptied",
	"measurement.saved":       "measurement saved",
	"measurement.save_failed": "measurement could not be saved",
	"position.persist_failed": "last position could not be saved",
	"position.read_failed":    "last position could not be read",
	"export.completed":        "export written",
	"export.failed":           "export failed",
	"config.fallback":         "unrecognized setting replaced by default",
}

// LevelFor returns the level recorded for an event type: failures are
// errors, fallbacks are warnings, everything else is informational.
func LevelFor(eventType string) string {
	switch {
	case strings.HasSuffix(eventType, "failed"):
		return LevelError
	case strings.HasSuffix(eventType, "fallback"):
		return LevelWarn
	default:
		return LevelInfo
	}
}

// Recorder turns LogEvent calls from the capture engine into log events.
type Recorder struct {
	log   EventLog
	clock func() time.Time
}

// NewRecorder creates a Recorder writing to log.
func NewRecorder(log EventLog) *Recorder {
	return &Recorder{log: log, clock: func() time.Time { return time.Now().UTC() }}
}

// LogEvent writes an event of the given type with its level and message
// derived from the type.
func (r *Recorder) LogEvent(eventType string, data map[string]any) error {
	msg, ok := eventMessages[eventType]
	if !ok {
		msg = eventType
	}
	return r.log.Write(Event{
		Time:    r.clock(),
		Level:   LevelFor(eventType),
		Type:    eventType,
		Message: msg,
		Data:    data,
	})
}
