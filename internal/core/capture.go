package core

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// ErrFlowClosed is returned when a finished or exited capture flow is used.
var ErrFlowClosed = errors.New("capture flow already closed")

// SessionRepository is the subset of the session store the capture flow
// needs. It is defined here to avoid importing storage.
type SessionRepository interface {
	CreateSession(modality models.Modality) models.Session
	AppendMeasurement(sessionID string, primary float64, secondary map[string]float64) (models.Measurement, error)
	Persist(sessionID string) error
	DiscardIfEmpty(sessionID string) (bool, error)
}

// CaptureService starts capture flows.
type CaptureService interface {
	Start(modality models.Modality) (*CaptureFlow, error)
}

type captureService struct {
	sessions  SessionRepository
	positions PositionRepository
	settings  SettingsProvider
	events    EventLogger
	rnd       func() float64
}

// NewCaptureService wires a CaptureService. events may be nil.
func NewCaptureService(sessions SessionRepository, positions PositionRepository, settings SettingsProvider, events EventLogger) CaptureService {
	return &captureService{
		sessions:  sessions,
		positions: positions,
		settings:  settings,
		events:    events,
		rnd:       rand.Float64,
	}
}

// Start creates a session for modality and positions the mapper according
// to the current reset behavior.
func (s *captureService) Start(modality models.Modality) (*CaptureFlow, error) {
	desc, err := Descriptor(modality)
	if err != nil {
		return nil, fmt.Errorf("starting capture: %w", err)
	}

	start := s.nextPosition(desc)
	session := s.sessions.CreateSession(modality)

	s.logEvent("session.created", map[string]any{
		"session_id": session.ID,
		"modality":   string(modality),
	})

	return &CaptureFlow{
		svc:       s,
		sessionID: session.ID,
		desc:      desc,
		mapper:    NewValueMapper(desc, start),
	}, nil
}

// resetBehavior reads the policy at evaluation time. A settings read
// failure falls back to resetToDefault.
func (s *captureService) resetBehavior() models.ResetBehavior {
	cfg, err := s.settings.LoadSettings()
	if err != nil {
		s.logEvent("config.fallback", map[string]any{
			"key":   KeyResetBehavior,
			"error": err.Error(),
			"used":  string(models.ResetToDefault),
		})
		return models.ResetToDefault
	}
	return cfg.ResetBehavior
}

func (s *captureService) nextPosition(desc ModalityDescriptor) models.Position {
	policy := s.resetBehavior()

	var last *models.Position
	if policy == models.ResetKeepPosition {
		p, err := s.positions.GetPosition(desc.Modality)
		if err != nil {
			s.logEvent("position.read_failed", map[string]any{
				"modality": string(desc.Modality),
				"error":    err.Error(),
			})
		} else {
			last = p
		}
	}
	return NextPosition(policy, last, desc, s.rnd)
}

// logEvent emits an event if an EventLogger is configured.
func (s *captureService) logEvent(eventType string, data map[string]any) {
	if s.events != nil {
		_ = s.events.LogEvent(eventType, data)
	}
}

// CaptureFlow is one in-progress capture of a session. It has a single
// owner and is not safe for concurrent use.
type CaptureFlow struct {
	svc       *captureService
	sessionID string
	desc      ModalityDescriptor
	mapper    ValueMapper
	saved     int
	finished  bool
	closed    bool
}

// SessionID returns the id of the session being captured.
func (f *CaptureFlow) SessionID() string { return f.sessionID }

// Descriptor returns the modality descriptor of the flow.
func (f *CaptureFlow) Descriptor() ModalityDescriptor { return f.desc }

// Mapper returns the live value mapper fed by gesture input.
func (f *CaptureFlow) Mapper() ValueMapper { return f.mapper }

// SavedCount returns the number of measurements saved in this flow.
func (f *CaptureFlow) SavedCount() int { return f.saved }

// Finished reports whether the flow ended with an explicit save request.
func (f *CaptureFlow) Finished() bool { return f.finished }

// Closed reports whether Finish or Exit has been called.
func (f *CaptureFlow) Closed() bool { return f.closed }

// Save appends the live value as a measurement. On failure the live value
// and the saved counter are left untouched so the user can retry. On
// success the last position is recorded and the mapper moves to the start
// value the reset behavior picks for the next measurement.
func (f *CaptureFlow) Save() (models.Measurement, error) {
	if f.closed {
		return models.Measurement{}, ErrFlowClosed
	}

	pos := f.mapper.Position()
	m, err := f.svc.sessions.AppendMeasurement(f.sessionID, pos.Primary, pos.Secondary)
	if err != nil {
		f.svc.logEvent("measurement.save_failed", map[string]any{
			"session_id": f.sessionID,
			"error":      err.Error(),
		})
		return models.Measurement{}, fmt.Errorf("saving measurement: %w", err)
	}
	f.saved++

	if err := f.svc.positions.SetPosition(f.desc.Modality, pos); err != nil {
		f.svc.logEvent("position.persist_failed", map[string]any{
			"modality": string(f.desc.Modality),
			"error":    err.Error(),
		})
	}

	f.mapper.StartMeasurement(f.svc.nextPosition(f.desc))

	f.svc.logEvent("measurement.saved", map[string]any{
		"session_id":     f.sessionID,
		"measurement_id": m.ID,
		"modality":       string(f.desc.Modality),
		"primary_value":  m.PrimaryValue,
	})
	return m, nil
}

// Finish ends the flow with an explicit save request: the session is kept
// even when it holds no measurements.
func (f *CaptureFlow) Finish() error {
	if f.closed {
		return ErrFlowClosed
	}
	if err := f.svc.sessions.Persist(f.sessionID); err != nil {
		return fmt.Errorf("finishing capture: %w", err)
	}
	f.finished = true
	f.closed = true
	return nil
}

// Exit ends the flow without a save request. A session with no
// measurements is discarded. Exit after Finish or Exit is a no-op.
func (f *CaptureFlow) Exit() (bool, error) {
	if f.closed {
		return false, nil
	}
	discarded, err := f.svc.sessions.DiscardIfEmpty(f.sessionID)
	if err != nil {
		return false, fmt.Errorf("exiting capture: %w", err)
	}
	f.closed = true
	if discarded {
		f.svc.logEvent("session.discarded", map[string]any{
			"session_id": f.sessionID,
			"modality":   string(f.desc.Modality),
		})
	}
	return discarded, nil
}
