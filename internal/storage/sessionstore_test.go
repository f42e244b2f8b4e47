package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// flakyBackend wraps a real backend and fails writes while fail is set.
type flakyBackend struct {
	sessionBackend
	mu   sync.Mutex
	fail bool
}

var errDiskFull = errors.New("disk full")

func (b *flakyBackend) setFail(v bool) {
	b.mu.Lock()
	b.fail = v
	b.mu.Unlock()
}

func (b *flakyBackend) failing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fail
}

func (b *flakyBackend) SaveSession(s models.Session) error {
	if b.failing() {
		return errDiskFull
	}
	return b.sessionBackend.SaveSession(s)
}

func (b *flakyBackend) AppendMeasurement(s models.Session, m models.Measurement) error {
	if b.failing() {
		return errDiskFull
	}
	return b.sessionBackend.AppendMeasurement(s, m)
}

func (b *flakyBackend) DeleteSession(id string) error {
	if b.failing() {
		return errDiskFull
	}
	return b.sessionBackend.DeleteSession(id)
}

func newFlakyStore(t *testing.T) (*sessionStore, *flakyBackend) {
	t.Helper()
	fb := &flakyBackend{sessionBackend: &yamlBackend{basePath: t.TempDir()}}
	return newSessionStore(fb), fb
}

func mustAppend(t *testing.T, store SessionStoreManager, id string, v float64) models.Measurement {
	t.Helper()
	m, err := store.AppendMeasurement(id, v, nil)
	if err != nil {
		t.Fatalf("AppendMeasurement(%s, %v): %v", id, v, err)
	}
	return m
}

func TestSessionStore_CreateSessionIsActiveAndEmpty(t *testing.T) {
	store := NewSessionStoreManager(t.TempDir())

	s := store.CreateSession(models.ModalityBasicIOS)
	if s.ID == "" {
		t.Fatal("expected a generated id")
	}
	if s.State.IsTrashed() {
		t.Error("new session should be active")
	}
	if len(s.Measurements) != 0 {
		t.Errorf("expected no measurements, got %d", len(s.Measurements))
	}
	if s.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestSessionStore_CreatedSessionNotWrittenUntilAppend(t *testing.T) {
	dir := t.TempDir()
	store := NewSessionStoreManager(dir)
	s := store.CreateSession(models.ModalityBasicIOS)

	sessionDir := filepath.Join(dir, "sessions", s.ID)
	if _, err := os.Stat(sessionDir); !os.IsNotExist(err) {
		t.Fatalf("expected no directory before first append, stat err = %v", err)
	}

	mustAppend(t, store, s.ID, 0.5)

	for _, name := range []string{"session.yaml", "measurements.yaml"} {
		if _, err := os.Stat(filepath.Join(sessionDir, name)); err != nil {
			t.Errorf("expected %s after append: %v", name, err)
		}
	}
}

func TestSessionStore_AppendClampsPrimaryValue(t *testing.T) {
	store := NewSessionStoreManager(t.TempDir())
	s := store.CreateSession(models.ModalityBasicIOS)

	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{1.7, 1},
		{0.42, 0.42},
	}
	for _, tt := range tests {
		m := mustAppend(t, store, s.ID, tt.in)
		if m.PrimaryValue != tt.want {
			t.Errorf("append %v: PrimaryValue = %v, want %v", tt.in, m.PrimaryValue, tt.want)
		}
	}
}

func TestSessionStore_AppendUnknownSession(t *testing.T) {
	store := NewSessionStoreManager(t.TempDir())
	_, err := store.AppendMeasurement("missing", 0.5, nil)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionStore_TimestampsNonDecreasing(t *testing.T) {
	store, _ := newFlakyStore(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(-time.Minute), base.Add(time.Second)}
	i := 0
	store.clock = func() time.Time {
		ts := ticks[i%len(ticks)]
		i++
		return ts
	}

	s := store.CreateSession(models.ModalityBasicIOS) // consumes ticks[0]
	i = 0
	for range ticks {
		mustAppend(t, store, s.ID, 0.5)
	}

	got, err := store.GetSession(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	for j := 1; j < len(got.Measurements); j++ {
		if got.Measurements[j].Timestamp.Before(got.Measurements[j-1].Timestamp) {
			t.Errorf("measurement %d timestamp %v before previous %v",
				j, got.Measurements[j].Timestamp, got.Measurements[j-1].Timestamp)
		}
	}
}

func TestSessionStore_AppendFailureLeavesSessionUnchanged(t *testing.T) {
	store, fb := newFlakyStore(t)
	s := store.CreateSession(models.ModalityBasicIOS)
	mustAppend(t, store, s.ID, 0.1)

	fb.setFail(true)
	_, err := store.AppendMeasurement(s.ID, 0.9, nil)
	var perr *PersistError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PersistError, got %T: %v", err, err)
	}
	if perr.SessionID != s.ID {
		t.Errorf("PersistError.SessionID = %q, want %q", perr.SessionID, s.ID)
	}
	if !errors.Is(err, errDiskFull) {
		t.Errorf("expected wrapped errDiskFull, got %v", err)
	}

	got, _ := store.GetSession(s.ID)
	if len(got.Measurements) != 1 {
		t.Errorf("expected 1 measurement after failed append, got %d", len(got.Measurements))
	}

	fb.setFail(false)
	mustAppend(t, store, s.ID, 0.9)
	got, _ = store.GetSession(s.ID)
	if len(got.Measurements) != 2 {
		t.Errorf("expected 2 measurements after retry, got %d", len(got.Measurements))
	}
}

func TestSessionStore_SoftDeleteRestore(t *testing.T) {
	store := NewSessionStoreManager(t.TempDir())
	s := store.CreateSession(models.ModalityProximity)
	mustAppend(t, store, s.ID, 0.3)
	mustAppend(t, store, s.ID, 0.6)
	before, _ := store.GetSession(s.ID)

	if err := store.SoftDelete(s.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	trashed, _ := store.GetSession(s.ID)
	if !trashed.State.IsTrashed() {
		t.Fatal("expected trashed state")
	}
	if _, ok := trashed.State.TrashedAt(); !ok {
		t.Error("expected trashed timestamp")
	}
	if active := store.Query(models.SessionQuery{ActiveOnly: true}); len(active) != 0 {
		t.Errorf("expected no active sessions, got %d", len(active))
	}

	// Trashing twice is a no-op.
	if err := store.SoftDelete(s.ID); err != nil {
		t.Fatalf("second SoftDelete: %v", err)
	}

	if err := store.Restore(s.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	after, _ := store.GetSession(s.ID)
	if after.State.IsTrashed() {
		t.Error("expected active state after restore")
	}
	if len(after.Measurements) != len(before.Measurements) {
		t.Fatalf("measurements changed: %d -> %d", len(before.Measurements), len(after.Measurements))
	}
	for i := range before.Measurements {
		if before.Measurements[i].ID != after.Measurements[i].ID ||
			before.Measurements[i].PrimaryValue != after.Measurements[i].PrimaryValue {
			t.Errorf("measurement %d changed through trash cycle", i)
		}
	}

	// Restoring an active session is a no-op.
	if err := store.Restore(s.ID); err != nil {
		t.Fatalf("second Restore: %v", err)
	}
}

func TestSessionStore_DiscardIfEmpty(t *testing.T) {
	store := NewSessionStoreManager(t.TempDir())

	empty := store.CreateSession(models.ModalityBasicIOS)
	discarded, err := store.DiscardIfEmpty(empty.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !discarded {
		t.Error("expected empty session to be discarded")
	}
	if all := store.Query(models.SessionQuery{}); len(all) != 0 {
		t.Errorf("expected no sessions, got %d", len(all))
	}
	if trash := store.Query(models.SessionQuery{TrashedOnly: true}); len(trash) != 0 {
		t.Errorf("expected empty trash, got %d", len(trash))
	}
	if _, err := store.GetSession(empty.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	full := store.CreateSession(models.ModalityBasicIOS)
	mustAppend(t, store, full.ID, 0.5)
	discarded, err = store.DiscardIfEmpty(full.ID)
	if err != nil {
		t.Fatal(err)
	}
	if discarded {
		t.Error("session with measurements must not be discarded")
	}

	discarded, err = store.DiscardIfEmpty("unknown")
	if err != nil || discarded {
		t.Errorf("DiscardIfEmpty(unknown) = %v, %v; want false, nil", discarded, err)
	}
}

func TestSessionStore_DiscardPersistedEmptySession(t *testing.T) {
	dir := t.TempDir()
	store := NewSessionStoreManager(dir)
	s := store.CreateSession(models.ModalityBasicIOS)
	if err := store.Persist(s.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sessions", s.ID, "session.yaml")); err != nil {
		t.Fatalf("expected persisted session.yaml: %v", err)
	}

	discarded, err := store.DiscardIfEmpty(s.ID)
	if err != nil || !discarded {
		t.Fatalf("DiscardIfEmpty = %v, %v", discarded, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sessions", s.ID)); !os.IsNotExist(err) {
		t.Errorf("expected session directory removed, stat err = %v", err)
	}
}

func TestSessionStore_HardDeleteAndEmptyTrash(t *testing.T) {
	store := NewSessionStoreManager(t.TempDir())
	var ids []string
	for i := 0; i < 3; i++ {
		s := store.CreateSession(models.ModalityBasicIOS)
		mustAppend(t, store, s.ID, 0.5)
		ids = append(ids, s.ID)
	}

	if err := store.HardDelete(ids[0]); err != nil {
		t.Fatal(err)
	}
	if err := store.HardDelete(ids[0]); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second delete, got %v", err)
	}

	if err := store.SoftDelete(ids[1]); err != nil {
		t.Fatal(err)
	}
	n, err := store.EmptyTrash()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("EmptyTrash removed %d, want 1", n)
	}
	remaining := store.Query(models.SessionQuery{})
	if len(remaining) != 1 || remaining[0].ID != ids[2] {
		t.Errorf("unexpected remaining sessions: %+v", remaining)
	}
}

func TestSessionStore_EmptyTrashReportsFailures(t *testing.T) {
	store, fb := newFlakyStore(t)
	s := store.CreateSession(models.ModalityBasicIOS)
	mustAppend(t, store, s.ID, 0.5)
	if err := store.SoftDelete(s.ID); err != nil {
		t.Fatal(err)
	}

	fb.setFail(true)
	n, err := store.EmptyTrash()
	if n != 0 {
		t.Errorf("EmptyTrash removed %d, want 0", n)
	}
	var perr *PersistError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PersistError, got %v", err)
	}
	if trash := store.Query(models.SessionQuery{TrashedOnly: true}); len(trash) != 1 {
		t.Errorf("failed purge must keep the session, trash has %d", len(trash))
	}
}

func TestSessionStore_QueryFiltersAndSorts(t *testing.T) {
	store, _ := newFlakyStore(t)
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	n := 0
	store.clock = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Hour)
	}

	basic := store.CreateSession(models.ModalityBasicIOS)
	mustAppend(t, store, basic.ID, 0.1)

	overlap := store.CreateSession(models.ModalityOverlapIOS)
	mustAppend(t, store, overlap.ID, 0.1)
	mustAppend(t, store, overlap.ID, 0.2)
	mustAppend(t, store, overlap.ID, 0.3)
	if err := store.SetNotes(overlap.ID, "Morning Check-in"); err != nil {
		t.Fatal(err)
	}

	prox := store.CreateSession(models.ModalityProximity)
	mustAppend(t, store, prox.ID, 0.4)
	mustAppend(t, store, prox.ID, 0.5)
	if err := store.SoftDelete(prox.ID); err != nil {
		t.Fatal(err)
	}

	ids := func(ss []models.Session) []string {
		out := make([]string, len(ss))
		for i, s := range ss {
			out[i] = s.ID
		}
		return out
	}
	equal := func(a, b []string) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}

	tests := []struct {
		name  string
		query models.SessionQuery
		want  []string
	}{
		{"newest first", models.SessionQuery{}, []string{prox.ID, overlap.ID, basic.ID}},
		{"oldest first", models.SessionQuery{Sort: models.SortOldestFirst}, []string{basic.ID, overlap.ID, prox.ID}},
		{"most measurements", models.SessionQuery{Sort: models.SortMostMeasurementsFirst}, []string{overlap.ID, prox.ID, basic.ID}},
		{"modality name", models.SessionQuery{Sort: models.SortModalityName}, []string{basic.ID, overlap.ID, prox.ID}},
		{"active only", models.SessionQuery{ActiveOnly: true}, []string{overlap.ID, basic.ID}},
		{"trashed only", models.SessionQuery{TrashedOnly: true}, []string{prox.ID}},
		{"both flags", models.SessionQuery{ActiveOnly: true, TrashedOnly: true}, []string{}},
		{"modality", models.SessionQuery{Modality: models.ModalityBasicIOS}, []string{basic.ID}},
		{"text matches notes", models.SessionQuery{TextFilter: "check-IN"}, []string{overlap.ID}},
		{"text matches display name", models.SessionQuery{TextFilter: "proximity"}, []string{prox.ID}},
		{"text no match", models.SessionQuery{TextFilter: "nothing"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(store.Query(tt.query))
			if !equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionStore_QueryReturnsCopies(t *testing.T) {
	store := NewSessionStoreManager(t.TempDir())
	s := store.CreateSession(models.ModalityBasicIOS)
	mustAppend(t, store, s.ID, 0.5)

	got := store.Query(models.SessionQuery{})
	got[0].Measurements[0].PrimaryValue = 0.99
	got[0].Notes = "mutated"

	fresh, _ := store.GetSession(s.ID)
	if fresh.Measurements[0].PrimaryValue != 0.5 || fresh.Notes != "" {
		t.Error("mutating a query result changed the store")
	}
}

func TestSessionStore_ConcurrentAppendsSameSession(t *testing.T) {
	store := NewSessionStoreManager(t.TempDir())
	s := store.CreateSession(models.ModalityBasicIOS)

	const workers, perWorker = 8, 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := store.AppendMeasurement(s.ID, float64(w)/10, nil); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("append failed: %v", err)
	}

	got, _ := store.GetSession(s.ID)
	if len(got.Measurements) != workers*perWorker {
		t.Errorf("expected %d measurements, got %d", workers*perWorker, len(got.Measurements))
	}

	reloaded := NewSessionStoreManager(filepath.Dir(filepath.Dir(sessionPath(t, store, s.ID))))
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	again, err := reloaded.GetSession(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Measurements) != workers*perWorker {
		t.Errorf("expected %d persisted measurements, got %d", workers*perWorker, len(again.Measurements))
	}
}

// sessionPath returns the sessions/<id> directory of a YAML-backed store.
func sessionPath(t *testing.T, store SessionStoreManager, id string) string {
	t.Helper()
	ss, ok := store.(*sessionStore)
	if !ok {
		t.Fatalf("unexpected store type %T", store)
	}
	yb, ok := ss.backend.(*yamlBackend)
	if !ok {
		t.Fatalf("unexpected backend type %T", ss.backend)
	}
	return yb.sessionDir(id)
}

func TestSessionStore_LoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewSessionStoreManager(dir)

	adv := store.CreateSession(models.ModalityAdvancedIOS)
	if _, err := store.AppendMeasurement(adv.ID, 0.4, map[string]float64{
		models.SecondarySelfScale:  1.2,
		models.SecondaryOtherScale: 0.7,
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.SetNotes(adv.ID, "notes: with \"quotes\""); err != nil {
		t.Fatal(err)
	}
	trashed := store.CreateSession(models.ModalityBasicIOS)
	mustAppend(t, store, trashed.ID, 0.8)
	if err := store.SoftDelete(trashed.ID); err != nil {
		t.Fatal(err)
	}
	pending := store.CreateSession(models.ModalityBasicIOS) // never persisted

	reloaded := NewSessionStoreManager(dir)
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}

	got, err := reloaded.GetSession(adv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Notes != "notes: with \"quotes\"" {
		t.Errorf("Notes = %q", got.Notes)
	}
	if v, _ := got.Measurements[0].Secondary(models.SecondarySelfScale); v != 1.2 {
		t.Errorf("selfScale = %v, want 1.2", v)
	}

	tr, err := reloaded.GetSession(trashed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !tr.State.IsTrashed() {
		t.Error("trashed state lost across reload")
	}

	if _, err := reloaded.GetSession(pending.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("pending session should not survive reload, got %v", err)
	}
}

func TestSessionStore_LoadReclampsValues(t *testing.T) {
	dir := t.TempDir()
	sessionDir := filepath.Join(dir, "sessions", "manual")
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, filepath.Join(sessionDir, "session.yaml"), `id: manual
modality: basicIOS
created_at: 2026-01-01T00:00:00Z
state:
  status: active
`)
	writeTestFile(t, filepath.Join(sessionDir, "measurements.yaml"), `measurements:
  - id: m1
    timestamp: 2026-01-01T00:00:01Z
    primary_value: 1.5
`)

	store := NewSessionStoreManager(dir)
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetSession("manual")
	if err != nil {
		t.Fatal(err)
	}
	if got.Measurements[0].PrimaryValue != 1 {
		t.Errorf("PrimaryValue = %v, want 1", got.Measurements[0].PrimaryValue)
	}
}

func TestSessionStore_LoadRejectsUnknownStatus(t *testing.T) {
	dir := t.TempDir()
	sessionDir := filepath.Join(dir, "sessions", "bad")
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, filepath.Join(sessionDir, "session.yaml"), `id: bad
modality: basicIOS
created_at: 2026-01-01T00:00:00Z
state:
  status: archived
`)

	if err := NewSessionStoreManager(dir).Load(); err == nil {
		t.Error("expected error for unknown session status")
	}
}

func TestSQLiteSessionStore_RoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db", "sessions.db")
	store, err := NewSQLiteSessionStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}

	s := store.CreateSession(models.ModalitySetMembership)
	for i := 0; i < 3; i++ {
		if _, err := store.AppendMeasurement(s.ID, 0.5, map[string]float64{
			models.SecondarySelfInSet:  1,
			models.SecondaryOtherInSet: 0,
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.SetNotes(s.ID, "sqlite"); err != nil {
		t.Fatal(err)
	}
	if err := store.SoftDelete(s.ID); err != nil {
		t.Fatal(err)
	}
	other := store.CreateSession(models.ModalityBasicIOS)
	mustAppend(t, store, other.ID, 0.25)
	if err := store.HardDelete(other.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteSessionStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if err := reopened.Load(); err != nil {
		t.Fatal(err)
	}

	all := reopened.Query(models.SessionQuery{})
	if len(all) != 1 {
		t.Fatalf("expected 1 session, got %d", len(all))
	}
	got := all[0]
	if got.Notes != "sqlite" || !got.State.IsTrashed() {
		t.Errorf("metadata lost: notes=%q trashed=%v", got.Notes, got.State.IsTrashed())
	}
	if len(got.Measurements) != 3 {
		t.Fatalf("expected 3 measurements, got %d", len(got.Measurements))
	}
	if v, ok := got.Measurements[2].Secondary(models.SecondarySelfInSet); !ok || v != 1 {
		t.Errorf("selfInSet = %v, %v", v, ok)
	}
	if v, ok := got.Measurements[2].Secondary(models.SecondaryOtherInSet); !ok || v != 0 {
		t.Errorf("otherInSet = %v, %v", v, ok)
	}
}

func TestPersistError_Message(t *testing.T) {
	err := &PersistError{Op: "persisting session", SessionID: "abc", Err: fmt.Errorf("boom")}
	if got := err.Error(); got != "persisting session abc: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
