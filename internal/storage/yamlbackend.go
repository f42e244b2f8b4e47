package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/ios-scale/pkg/models"
	"gopkg.in/yaml.v3"
)

// yamlBackend stores each session in its own directory under sessions/:
// session.yaml holds the metadata and measurements.yaml the measurements.
type yamlBackend struct {
	basePath string
}

type measurementsFile struct {
	Measurements []models.Measurement `yaml:"measurements"`
}

// NewSessionStoreManager creates a SessionStoreManager backed by YAML files
// under sessions/ in the given base directory.
func NewSessionStoreManager(basePath string) SessionStoreManager {
	return newSessionStore(&yamlBackend{basePath: basePath})
}

func (b *yamlBackend) sessionsDir() string {
	return filepath.Join(b.basePath, "sessions")
}

func (b *yamlBackend) sessionDir(id string) string {
	return filepath.Join(b.sessionsDir(), id)
}

func (b *yamlBackend) LoadAll() ([]models.Session, error) {
	entries, err := os.ReadDir(b.sessionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading sessions directory: %w", err)
	}

	var sessions []models.Session
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(b.sessionsDir(), entry.Name())

		var sess models.Session
		found, err := loadYAML(filepath.Join(dir, "session.yaml"), &sess)
		if err != nil {
			return nil, fmt.Errorf("parsing session %s: %w", entry.Name(), err)
		}
		if !found {
			continue // Partially deleted directory.
		}

		var mf measurementsFile
		if _, err := loadYAML(filepath.Join(dir, "measurements.yaml"), &mf); err != nil {
			return nil, fmt.Errorf("parsing measurements of %s: %w", entry.Name(), err)
		}
		sess.Measurements = mf.Measurements
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (b *yamlBackend) SaveSession(s models.Session) error {
	dir := b.sessionDir(s.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	if err := saveYAML(filepath.Join(dir, "session.yaml"), &s); err != nil {
		return fmt.Errorf("writing session metadata: %w", err)
	}
	return nil
}

// AppendMeasurement rewrites measurements.yaml with the full list. The
// rename in WriteFileAtomic keeps a crash from leaving a truncated file.
func (b *yamlBackend) AppendMeasurement(s models.Session, _ models.Measurement) error {
	dir := b.sessionDir(s.ID)
	if _, err := os.Stat(filepath.Join(dir, "session.yaml")); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("checking session metadata: %w", err)
		}
		if err := b.SaveSession(s); err != nil {
			return err
		}
	}
	mf := measurementsFile{Measurements: s.Measurements}
	if err := saveYAML(filepath.Join(dir, "measurements.yaml"), &mf); err != nil {
		return fmt.Errorf("writing measurements: %w", err)
	}
	return nil
}

func (b *yamlBackend) DeleteSession(id string) error {
	if err := os.RemoveAll(b.sessionDir(id)); err != nil {
		return fmt.Errorf("removing session directory: %w", err)
	}
	return nil
}

func (b *yamlBackend) Close() error {
	return nil
}

// loadYAML decodes path into target. found is false when the file does not
// exist.
func loadYAML(path string, target interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, yaml.Unmarshal(data, target)
}

func saveYAML(path string, source interface{}) error {
	data, err := yaml.Marshal(source)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// WriteFileAtomic writes data to a temporary file in the target directory
// and renames it over path, so readers see either the old or the new
// contents.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Chmod(perm); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
