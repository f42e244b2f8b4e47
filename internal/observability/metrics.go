package observability

import (
	"fmt"
	"time"
)

// Metrics holds capture activity derived from the event log.
type Metrics struct {
	SessionsCreated        int            `json:"sessions_created"`
	SessionsDiscarded      int            `json:"sessions_discarded"`
	SessionsTrashed        int            `json:"sessions_trashed"`
	SessionsRestored       int            `json:"sessions_restored"`
	SessionsPurged         int            `json:"sessions_purged"`
	MeasurementsSaved      int            `json:"measurements_saved"`
	SaveFailures           int            `json:"save_failures"`
	MeasurementsByModality map[string]int `json:"measurements_by_modality"`
	Exports                int            `json:"exports"`
	ExportFailures         int            `json:"export_failures"`
	ConfigFallbacks        int            `json:"config_fallbacks"`
	EventCount             int            `json:"event_count"`
	OldestEvent            *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent            *time.Time     `json:"newest_event,omitempty"`
}

// SaveFailureRate returns failed saves over attempted saves, or 0 when
// nothing was attempted.
func (m *Metrics) SaveFailureRate() float64 {
	attempts := m.MeasurementsSaved + m.SaveFailures
	if attempts == 0 {
		return 0
	}
	return float64(m.SaveFailures) / float64(attempts)
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator reading from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate aggregates every event at or after since.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{MeasurementsByModality: make(map[string]int)}
	m.EventCount = len(events)

	for _, event := range events {
		t := event.Time
		if m.OldestEvent == nil || t.Before(*m.OldestEvent) {
			m.OldestEvent = &t
		}
		if m.NewestEvent == nil || t.After(*m.NewestEvent) {
			m.NewestEvent = &t
		}

		switch event.Type {
		case "session.created":
			m.SessionsCreated++
		case "session.discarded":
			m.SessionsDiscarded++
		case "session.trashed":
			m.SessionsTrashed++
		case "session.restored":
			m.SessionsRestored++
		case "session.purged":
			m.SessionsPurged++
		case "measurement.saved":
			m.MeasurementsSaved++
			if modality, ok := event.Data["modality"].(string); ok {
				m.MeasurementsByModality[modality]++
			}
		case "measurement.save_failed":
			m.SaveFailures++
		case "export.completed":
			m.Exports++
		case "export.failed":
			m.ExportFailures++
		case "config.fallback":
			m.ConfigFallbacks++
		}
	}

	return m, nil
}
