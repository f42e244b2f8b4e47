package core

import (
	"fmt"

	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// SessionStore is the full session store surface: the capture side plus
// browsing and trash management.
type SessionStore interface {
	SessionRepository
	SetNotes(sessionID, notes string) error
	GetSession(sessionID string) (models.Session, error)
	SoftDelete(sessionID string) error
	Restore(sessionID string) error
	HardDelete(sessionID string) error
	EmptyTrash() (int, error)
	Query(q models.SessionQuery) []models.Session
}

// SessionLibrary manages stored sessions outside of a capture flow and
// records their lifecycle events.
type SessionLibrary struct {
	store  SessionStore
	events EventLogger
}

// NewSessionLibrary creates a SessionLibrary. events may be nil.
func NewSessionLibrary(store SessionStore, events EventLogger) *SessionLibrary {
	return &SessionLibrary{store: store, events: events}
}

func (l *SessionLibrary) logEvent(eventType string, data map[string]any) {
	if l.events != nil {
		_ = l.events.LogEvent(eventType, data)
	}
}

// List returns the sessions matching q.
func (l *SessionLibrary) List(q models.SessionQuery) []models.Session {
	return l.store.Query(q)
}

// Get returns one session with its measurements.
func (l *SessionLibrary) Get(sessionID string) (models.Session, error) {
	return l.store.GetSession(sessionID)
}

// Resolve returns the sessions with the given ids, in that order.
func (l *SessionLibrary) Resolve(ids []string) ([]models.Session, error) {
	out := make([]models.Session, 0, len(ids))
	for _, id := range ids {
		s, err := l.store.GetSession(id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (l *SessionLibrary) SetNotes(sessionID, notes string) error {
	return l.store.SetNotes(sessionID, notes)
}

// Trash moves a session to the trash. Its measurements are kept.
func (l *SessionLibrary) Trash(sessionID string) error {
	if err := l.store.SoftDelete(sessionID); err != nil {
		return fmt.Errorf("trashing session: %w", err)
	}
	l.logEvent("session.trashed", map[string]any{"session_id": sessionID})
	return nil
}

// Restore brings a trashed session back.
func (l *SessionLibrary) Restore(sessionID string) error {
	if err := l.store.Restore(sessionID); err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}
	l.logEvent("session.restored", map[string]any{"session_id": sessionID})
	return nil
}

// Purge permanently deletes a session and its measurements.
func (l *SessionLibrary) Purge(sessionID string) error {
	if err := l.store.HardDelete(sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	l.logEvent("session.purged", map[string]any{"session_id": sessionID})
	return nil
}

// EmptyTrash permanently deletes every trashed session. Sessions that
// could not be deleted stay in the trash and are reported in the error.
func (l *SessionLibrary) EmptyTrash() (int, error) {
	trashed := l.store.Query(models.SessionQuery{TrashedOnly: true})
	n, err := l.store.EmptyTrash()
	for _, s := range trashed {
		if _, getErr := l.store.GetSession(s.ID); getErr != nil {
			l.logEvent("session.purged", map[string]any{"session_id": s.ID})
		}
	}
	l.logEvent("trash.emptied", map[string]any{"count": n})
	if err != nil {
		return n, fmt.Errorf("emptying trash: %w", err)
	}
	return n, nil
}

// Stats summarizes the primary values of the sessions matching q.
func (l *SessionLibrary) Stats(q models.SessionQuery) models.SessionSummary {
	return SummarizeSessions(l.store.Query(q))
}
