package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/ios-scale/pkg/models"

	_ "modernc.org/sqlite"
)

const sqliteTimeLayout = time.RFC3339Nano

// sqliteBackend stores sessions and measurements in two tables of a single
// SQLite database.
type sqliteBackend struct {
	db *sql.DB
}

// NewSQLiteSessionStore creates a SessionStoreManager backed by the SQLite
// database at dbPath, creating the file and schema when missing.
func NewSQLiteSessionStore(dbPath string) (SessionStoreManager, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// A single connection serializes writers instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	b := &sqliteBackend{db: db}
	if err := b.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return newSessionStore(b), nil
}

func (b *sqliteBackend) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  modality TEXT NOT NULL,
  created_at TEXT NOT NULL,
  notes TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  trashed_at TEXT
);
CREATE TABLE IF NOT EXISTS measurements (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  timestamp TEXT NOT NULL,
  primary_value REAL NOT NULL,
  secondary_values TEXT
);
CREATE INDEX IF NOT EXISTS idx_measurements_session ON measurements(session_id, seq);
`
	if _, err := b.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (b *sqliteBackend) LoadAll() ([]models.Session, error) {
	ctx := context.Background()

	rows, err := b.db.QueryContext(ctx, `SELECT id, modality, created_at, notes, status, trashed_at FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	index := make(map[string]int)
	for rows.Next() {
		var (
			sess      models.Session
			modality  string
			createdAt string
			status    string
			trashedAt sql.NullString
		)
		if err := rows.Scan(&sess.ID, &modality, &createdAt, &sess.Notes, &status, &trashedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.Modality = models.Modality(modality)
		if sess.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at of %s: %w", sess.ID, err)
		}
		var at *time.Time
		if trashedAt.Valid {
			t, err := time.Parse(sqliteTimeLayout, trashedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing trashed_at of %s: %w", sess.ID, err)
			}
			at = &t
		}
		if sess.State, err = models.ParseSessionState(models.SessionStatus(status), at); err != nil {
			return nil, fmt.Errorf("session %s: %w", sess.ID, err)
		}
		index[sess.ID] = len(sessions)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	mrows, err := b.db.QueryContext(ctx,
		`SELECT id, session_id, timestamp, primary_value, secondary_values FROM measurements ORDER BY session_id, seq`)
	if err != nil {
		return nil, fmt.Errorf("querying measurements: %w", err)
	}
	defer mrows.Close()

	for mrows.Next() {
		var (
			m         models.Measurement
			sessionID string
			ts        string
			secondary sql.NullString
		)
		if err := mrows.Scan(&m.ID, &sessionID, &ts, &m.PrimaryValue, &secondary); err != nil {
			return nil, fmt.Errorf("scanning measurement: %w", err)
		}
		if m.Timestamp, err = time.Parse(sqliteTimeLayout, ts); err != nil {
			return nil, fmt.Errorf("parsing timestamp of %s: %w", m.ID, err)
		}
		if secondary.Valid && secondary.String != "" {
			if err := json.Unmarshal([]byte(secondary.String), &m.SecondaryValues); err != nil {
				return nil, fmt.Errorf("parsing secondary values of %s: %w", m.ID, err)
			}
		}
		i, ok := index[sessionID]
		if !ok {
			continue // Orphan row of a deleted session.
		}
		sessions[i].Measurements = append(sessions[i].Measurements, m)
	}
	if err := mrows.Err(); err != nil {
		return nil, fmt.Errorf("iterating measurements: %w", err)
	}
	return sessions, nil
}

const upsertSession = `
INSERT INTO sessions (id, modality, created_at, notes, status, trashed_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  modality=excluded.modality,
  created_at=excluded.created_at,
  notes=excluded.notes,
  status=excluded.status,
  trashed_at=excluded.trashed_at;
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveSessionRow(ctx context.Context, db execer, s models.Session) error {
	var trashedAt sql.NullString
	if at, ok := s.State.TrashedAt(); ok {
		trashedAt = sql.NullString{String: at.UTC().Format(sqliteTimeLayout), Valid: true}
	}
	_, err := db.ExecContext(ctx, upsertSession,
		s.ID,
		string(s.Modality),
		s.CreatedAt.UTC().Format(sqliteTimeLayout),
		s.Notes,
		string(s.State.Status()),
		trashedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

func (b *sqliteBackend) SaveSession(s models.Session) error {
	return saveSessionRow(context.Background(), b.db, s)
}

func (b *sqliteBackend) AppendMeasurement(s models.Session, m models.Measurement) error {
	ctx := context.Background()

	var secondary sql.NullString
	if len(m.SecondaryValues) > 0 {
		data, err := json.Marshal(m.SecondaryValues)
		if err != nil {
			return fmt.Errorf("encoding secondary values: %w", err)
		}
		secondary = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveSessionRow(ctx, tx, s); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO measurements (id, session_id, seq, timestamp, primary_value, secondary_values) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID,
		s.ID,
		len(s.Measurements)-1,
		m.Timestamp.UTC().Format(sqliteTimeLayout),
		m.PrimaryValue,
		secondary,
	)
	if err != nil {
		return fmt.Errorf("inserting measurement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing measurement: %w", err)
	}
	return nil
}

func (b *sqliteBackend) DeleteSession(id string) error {
	ctx := context.Background()
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM measurements WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("deleting measurements: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
