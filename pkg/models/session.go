package models

import (
	"fmt"
	"time"
)

// Measurement is a single captured value. PrimaryValue is always within
// [0, 1]; construct through core.NewMeasurement so the clamp is applied.
type Measurement struct {
	ID              string             `yaml:"id" json:"id"`
	Timestamp       time.Time          `yaml:"timestamp" json:"timestamp"`
	PrimaryValue    float64            `yaml:"primary_value" json:"primary_value"`
	SecondaryValues map[string]float64 `yaml:"secondary_values,omitempty" json:"secondary_values,omitempty"`
}

// Secondary returns the secondary value stored under key.
func (m Measurement) Secondary(key string) (float64, bool) {
	if m.SecondaryValues == nil {
		return 0, false
	}
	v, ok := m.SecondaryValues[key]
	return v, ok
}

// Clone returns a copy that does not share the secondary map.
func (m Measurement) Clone() Measurement {
	cp := m
	if m.SecondaryValues != nil {
		cp.SecondaryValues = make(map[string]float64, len(m.SecondaryValues))
		for k, v := range m.SecondaryValues {
			cp.SecondaryValues[k] = v
		}
	}
	return cp
}

// SessionStatus is the tag of a SessionState.
type SessionStatus string

const (
	StatusActive  SessionStatus = "active"
	StatusTrashed SessionStatus = "trashed"
)

// SessionState is either Active or Trashed{at}. The fields are unexported so
// a trashed state without a timestamp, or any third status, cannot be built.
type SessionState struct {
	trashedAt time.Time
}

// ActiveState returns the state of a session that is not in the trash.
func ActiveState() SessionState {
	return SessionState{}
}

// TrashedState returns the state of a session moved to the trash at the given
// instant. A zero instant is replaced by the Unix epoch so the state stays
// distinguishable from Active.
func TrashedState(at time.Time) SessionState {
	if at.IsZero() {
		at = time.Unix(0, 0).UTC()
	}
	return SessionState{trashedAt: at}
}

// Status returns the tag of the state.
func (s SessionState) Status() SessionStatus {
	if s.trashedAt.IsZero() {
		return StatusActive
	}
	return StatusTrashed
}

// IsTrashed reports whether the session is in the trash.
func (s SessionState) IsTrashed() bool {
	return !s.trashedAt.IsZero()
}

// TrashedAt returns the instant the session was trashed.
func (s SessionState) TrashedAt() (time.Time, bool) {
	return s.trashedAt, !s.trashedAt.IsZero()
}

type sessionStateYAML struct {
	Status    SessionStatus `yaml:"status"`
	TrashedAt *time.Time    `yaml:"trashed_at,omitempty"`
}

// MarshalYAML encodes the state as a status tag plus optional timestamp.
func (s SessionState) MarshalYAML() (interface{}, error) {
	out := sessionStateYAML{Status: s.Status()}
	if at, ok := s.TrashedAt(); ok {
		out.TrashedAt = &at
	}
	return out, nil
}

// UnmarshalYAML decodes and validates a status tag.
func (s *SessionState) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw sessionStateYAML
	if err := unmarshal(&raw); err != nil {
		return err
	}
	st, err := ParseSessionState(raw.Status, raw.TrashedAt)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseSessionState rebuilds a state from its persisted parts.
func ParseSessionState(status SessionStatus, trashedAt *time.Time) (SessionState, error) {
	switch status {
	case "", StatusActive:
		return ActiveState(), nil
	case StatusTrashed:
		if trashedAt == nil {
			return SessionState{}, fmt.Errorf("trashed session state without trashed_at")
		}
		return TrashedState(*trashedAt), nil
	default:
		return SessionState{}, fmt.Errorf("unknown session status %q", status)
	}
}

// Session is a bounded capture flow under one modality.
type Session struct {
	ID           string        `yaml:"id"`
	Modality     Modality      `yaml:"modality"`
	CreatedAt    time.Time     `yaml:"created_at"`
	Notes        string        `yaml:"notes,omitempty"`
	State        SessionState  `yaml:"state"`
	Measurements []Measurement `yaml:"-"`
}

// Clone returns a deep copy so callers never share measurement slices or
// secondary maps with the store.
func (s Session) Clone() Session {
	cp := s
	if s.Measurements != nil {
		cp.Measurements = make([]Measurement, len(s.Measurements))
		for i, m := range s.Measurements {
			cp.Measurements[i] = m.Clone()
		}
	}
	return cp
}

// SortOrder selects the ordering of query results.
type SortOrder string

const (
	SortNewestFirst           SortOrder = "newest"
	SortOldestFirst           SortOrder = "oldest"
	SortMostMeasurementsFirst SortOrder = "most-measurements"
	SortModalityName          SortOrder = "modality"
)

// SessionQuery specifies criteria for querying sessions.
type SessionQuery struct {
	ActiveOnly  bool
	TrashedOnly bool
	Modality    Modality
	TextFilter  string
	Sort        SortOrder
}

// SessionSummary holds display statistics over primary values.
type SessionSummary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}
