package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/ios-scale/internal/core"
	"github.com/valter-silva-au/ios-scale/pkg/models"
	"golang.org/x/text/cases"
)

// ErrSessionNotFound is returned for operations on an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// PersistError reports a failure of the underlying persistence. The
// in-memory state is left as it was before the failed operation.
type PersistError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// SessionStoreManager defines the interface for the session and
// measurement store.
type SessionStoreManager interface {
	// CreateSession inserts an empty active session. It is kept in memory
	// only until a measurement is appended or it is persisted explicitly.
	CreateSession(modality models.Modality) models.Session
	AppendMeasurement(sessionID string, primary float64, secondary map[string]float64) (models.Measurement, error)
	Persist(sessionID string) error
	SetNotes(sessionID, notes string) error
	GetSession(sessionID string) (models.Session, error)
	DiscardIfEmpty(sessionID string) (bool, error)
	SoftDelete(sessionID string) error
	Restore(sessionID string) error
	HardDelete(sessionID string) error
	EmptyTrash() (int, error)
	Query(q models.SessionQuery) []models.Session
	Load() error
	Close() error
}

// sessionBackend is the durable side of the store.
type sessionBackend interface {
	LoadAll() ([]models.Session, error)
	// SaveSession writes the session metadata.
	SaveSession(s models.Session) error
	// AppendMeasurement writes m, the last element of s.Measurements.
	AppendMeasurement(s models.Session, m models.Measurement) error
	// DeleteSession removes the session and all of its measurements.
	DeleteSession(id string) error
	Close() error
}

// sessionStore keeps every session in memory and writes each mutation
// through to its backend. Mutations of one session are serialized by a
// per-session lock; different sessions proceed independently.
type sessionStore struct {
	backend sessionBackend
	clock   func() time.Time
	newID   func() string

	mu        sync.RWMutex
	sessions  map[string]*models.Session
	persisted map[string]bool

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func newSessionStore(backend sessionBackend) *sessionStore {
	return &sessionStore{
		backend:   backend,
		clock:     func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		sessions:  make(map[string]*models.Session),
		persisted: make(map[string]bool),
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *sessionStore) sessionLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *sessionStore) dropLock(id string) {
	s.locksMu.Lock()
	delete(s.locks, id)
	s.locksMu.Unlock()
}

// snapshot returns a deep copy of the session and whether it is persisted.
func (s *sessionStore) snapshot(id string) (models.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.sessions[id]
	if !ok {
		return models.Session{}, false, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return cur.Clone(), s.persisted[id], nil
}

func (s *sessionStore) commit(updated models.Session) {
	s.mu.Lock()
	s.sessions[updated.ID] = &updated
	s.persisted[updated.ID] = true
	s.mu.Unlock()
}

func (s *sessionStore) remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	delete(s.persisted, id)
	s.mu.Unlock()
}

func (s *sessionStore) CreateSession(modality models.Modality) models.Session {
	session := models.Session{
		ID:        s.newID(),
		Modality:  modality,
		CreatedAt: s.clock(),
		State:     models.ActiveState(),
	}
	s.mu.Lock()
	s.sessions[session.ID] = &session
	s.mu.Unlock()
	return session.Clone()
}

// AppendMeasurement clamps and appends a measurement. Its timestamp is
// never earlier than the previous measurement of the session.
func (s *sessionStore) AppendMeasurement(sessionID string, primary float64, secondary map[string]float64) (models.Measurement, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	updated, _, err := s.snapshot(sessionID)
	if err != nil {
		return models.Measurement{}, err
	}

	ts := s.clock()
	if n := len(updated.Measurements); n > 0 && ts.Before(updated.Measurements[n-1].Timestamp) {
		ts = updated.Measurements[n-1].Timestamp
	}
	m := core.NewMeasurement(s.newID(), ts, primary, secondary)
	updated.Measurements = append(updated.Measurements, m)

	if err := s.backend.AppendMeasurement(updated, m); err != nil {
		return models.Measurement{}, &PersistError{Op: "appending measurement to", SessionID: sessionID, Err: err}
	}
	s.commit(updated)
	return m.Clone(), nil
}

// Persist writes the session even when it has no measurements.
func (s *sessionStore) Persist(sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	cur, _, err := s.snapshot(sessionID)
	if err != nil {
		return err
	}
	if err := s.backend.SaveSession(cur); err != nil {
		return &PersistError{Op: "persisting session", SessionID: sessionID, Err: err}
	}
	s.commit(cur)
	return nil
}

func (s *sessionStore) SetNotes(sessionID, notes string) error {
	return s.update(sessionID, "updating notes of", func(sess *models.Session) bool {
		if sess.Notes == notes {
			return false
		}
		sess.Notes = notes
		return true
	})
}

func (s *sessionStore) SoftDelete(sessionID string) error {
	return s.update(sessionID, "trashing session", func(sess *models.Session) bool {
		if sess.State.IsTrashed() {
			return false
		}
		sess.State = models.TrashedState(s.clock())
		return true
	})
}

func (s *sessionStore) Restore(sessionID string) error {
	return s.update(sessionID, "restoring session", func(sess *models.Session) bool {
		if !sess.State.IsTrashed() {
			return false
		}
		sess.State = models.ActiveState()
		return true
	})
}

// update applies fn to a copy of the session and writes the metadata when
// fn reports a change. Measurements are never touched.
func (s *sessionStore) update(sessionID, op string, fn func(*models.Session) bool) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	updated, _, err := s.snapshot(sessionID)
	if err != nil {
		return err
	}
	if !fn(&updated) {
		return nil
	}
	if err := s.backend.SaveSession(updated); err != nil {
		return &PersistError{Op: op, SessionID: sessionID, Err: err}
	}
	s.commit(updated)
	return nil
}

func (s *sessionStore) GetSession(sessionID string) (models.Session, error) {
	cur, _, err := s.snapshot(sessionID)
	return cur, err
}

// DiscardIfEmpty hard-deletes the session iff it has no measurements. An
// unknown session counts as already discarded.
func (s *sessionStore) DiscardIfEmpty(sessionID string) (bool, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	cur, persisted, err := s.snapshot(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	if len(cur.Measurements) > 0 {
		return false, nil
	}
	if persisted {
		if err := s.backend.DeleteSession(sessionID); err != nil {
			return false, &PersistError{Op: "discarding session", SessionID: sessionID, Err: err}
		}
	}
	s.remove(sessionID)
	s.dropLock(sessionID)
	return true, nil
}

// HardDelete permanently removes the session and its measurements.
func (s *sessionStore) HardDelete(sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	_, persisted, err := s.snapshot(sessionID)
	if err != nil {
		return err
	}
	if persisted {
		if err := s.backend.DeleteSession(sessionID); err != nil {
			return &PersistError{Op: "deleting session", SessionID: sessionID, Err: err}
		}
	}
	s.remove(sessionID)
	s.dropLock(sessionID)
	return nil
}

// EmptyTrash hard-deletes every trashed session and returns how many were
// removed. Failures do not stop the sweep; they are joined in the error.
func (s *sessionStore) EmptyTrash() (int, error) {
	trashed := s.Query(models.SessionQuery{TrashedOnly: true})
	var errs []error
	removed := 0
	for _, sess := range trashed {
		if err := s.HardDelete(sess.ID); err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// Query filters and sorts sessions in memory. Both ActiveOnly and
// TrashedOnly set yields no sessions.
func (s *sessionStore) Query(q models.SessionQuery) []models.Session {
	folder := cases.Fold()
	needle := folder.String(strings.TrimSpace(q.TextFilter))

	s.mu.RLock()
	result := make([]models.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if q.ActiveOnly && sess.State.IsTrashed() {
			continue
		}
		if q.TrashedOnly && !sess.State.IsTrashed() {
			continue
		}
		if q.Modality != "" && sess.Modality != q.Modality {
			continue
		}
		if needle != "" &&
			!strings.Contains(folder.String(core.DisplayName(sess.Modality)), needle) &&
			!strings.Contains(folder.String(sess.Notes), needle) {
			continue
		}
		result = append(result, sess.Clone())
	}
	s.mu.RUnlock()

	SortSessions(result, q.Sort)
	return result
}

// SortSessions orders sessions in place. Ties fall back to newest first,
// then id, so the order is deterministic.
func SortSessions(sessions []models.Session, order models.SortOrder) {
	newer := func(a, b models.Session) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		switch order {
		case models.SortOldestFirst:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		case models.SortMostMeasurementsFirst:
			if len(a.Measurements) != len(b.Measurements) {
				return len(a.Measurements) > len(b.Measurements)
			}
		case models.SortModalityName:
			an, bn := core.DisplayName(a.Modality), core.DisplayName(b.Modality)
			if an != bn {
				return an < bn
			}
		}
		return newer(a, b)
	})
}

// Load replaces the in-memory sessions with the backend contents.
// Primary values are clamped again on the way in.
func (s *sessionStore) Load() error {
	loaded, err := s.backend.LoadAll()
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}

	sessions := make(map[string]*models.Session, len(loaded))
	persisted := make(map[string]bool, len(loaded))
	for i := range loaded {
		sess := loaded[i]
		for j, m := range sess.Measurements {
			sess.Measurements[j] = core.NewMeasurement(m.ID, m.Timestamp, m.PrimaryValue, m.SecondaryValues)
		}
		sessions[sess.ID] = &sess
		persisted[sess.ID] = true
	}

	s.mu.Lock()
	s.sessions = sessions
	s.persisted = persisted
	s.mu.Unlock()
	return nil
}

func (s *sessionStore) Close() error {
	return s.backend.Close()
}
