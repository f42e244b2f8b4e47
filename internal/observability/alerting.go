package observability

import (
	"fmt"
	"sort"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered health condition of the capture store.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts fire.
type AlertThresholds struct {
	// WindowHours bounds how far back failures are counted.
	WindowHours     int `yaml:"window_hours" json:"window_hours"`
	MaxSaveFailures int `yaml:"max_save_failures" json:"max_save_failures"`
	// StaleTrashDays flags sessions left in the trash longer than this.
	StaleTrashDays int `yaml:"stale_trash_days" json:"stale_trash_days"`
}

// DefaultAlertThresholds returns the standard thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		WindowHours:     24,
		MaxSaveFailures: 3,
		StaleTrashDays:  30,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	clock      func() time.Time
}

// NewAlertEngine creates an AlertEngine reading eventLog.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate runs every check and returns alerts ordered by id.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.clock()
	var alerts []Alert

	checks := []struct {
		name string
		fn   func(time.Time) ([]Alert, error)
	}{
		{"save failures", ae.checkSaveFailures},
		{"export failures", ae.checkExportFailures},
		{"config fallbacks", ae.checkConfigFallbacks},
		{"stale trash", ae.checkStaleTrash},
	}
	for _, c := range checks {
		found, err := c.fn(now)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", c.name, err)
		}
		alerts = append(alerts, found...)
	}

	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID < alerts[j].ID })
	return alerts, nil
}

func (ae *alertEngine) window(now time.Time) *time.Time {
	since := now.Add(-time.Duration(ae.thresholds.WindowHours) * time.Hour)
	return &since
}

// checkSaveFailures fires when saves keep failing within the window.
func (ae *alertEngine) checkSaveFailures(now time.Time) ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{Type: "measurement.save_failed", Since: ae.window(now)})
	if err != nil {
		return nil, err
	}
	if len(events) < ae.thresholds.MaxSaveFailures || len(events) == 0 {
		return nil, nil
	}
	return []Alert{{
		ID:          "save-failures",
		Condition:   "repeated_save_failures",
		Severity:    SeverityHigh,
		Message:     fmt.Sprintf("%d measurement saves failed in the last %d hours", len(events), ae.thresholds.WindowHours),
		TriggeredAt: now,
	}}, nil
}

func (ae *alertEngine) checkExportFailures(now time.Time) ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{Type: "export.failed", Since: ae.window(now)})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	last := events[len(events)-1]
	reason, _ := last.Data["error"].(string)
	return []Alert{{
		ID:          "export-failures",
		Condition:   "export_failed",
		Severity:    SeverityMedium,
		Message:     fmt.Sprintf("%d exports failed in the last %d hours, last error: %s", len(events), ae.thresholds.WindowHours, reason),
		TriggeredAt: now,
	}}, nil
}

// checkConfigFallbacks reports each setting that was replaced by its
// default within the window.
func (ae *alertEngine) checkConfigFallbacks(now time.Time) ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{Type: "config.fallback", Since: ae.window(now)})
	if err != nil {
		return nil, err
	}
	latest := make(map[string]Event)
	for _, e := range events {
		key, _ := e.Data["key"].(string)
		if key == "" {
			continue
		}
		latest[key] = e
	}

	var alerts []Alert
	for key, e := range latest {
		value, _ := e.Data["value"].(string)
		used, _ := e.Data["used"].(string)
		alerts = append(alerts, Alert{
			ID:          "config-" + key,
			Condition:   "config_fallback",
			Severity:    SeverityLow,
			Message:     fmt.Sprintf("setting %s has unrecognized value %q, using %q", key, value, used),
			TriggeredAt: now,
		})
	}
	return alerts, nil
}

// checkStaleTrash replays trash and restore events to find sessions that
// have sat in the trash past the threshold.
func (ae *alertEngine) checkStaleTrash(now time.Time) ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{TypePrefix: "session."})
	if err != nil {
		return nil, err
	}

	trashedAt := make(map[string]time.Time)
	for _, e := range events {
		id := e.SessionID()
		if id == "" {
			continue
		}
		switch e.Type {
		case "session.trashed":
			trashedAt[id] = e.Time
		case "session.restored", "session.purged":
			delete(trashedAt, id)
		}
	}

	threshold := time.Duration(ae.thresholds.StaleTrashDays) * 24 * time.Hour
	var alerts []Alert
	for id, at := range trashedAt {
		if now.Sub(at) > threshold {
			alerts = append(alerts, Alert{
				ID:          "trash-" + id,
				Condition:   "trash_stale",
				Severity:    SeverityLow,
				Message:     fmt.Sprintf("session %s has been in the trash for more than %d days", id, ae.thresholds.StaleTrashDays),
				TriggeredAt: now,
			})
		}
	}
	return alerts, nil
}
