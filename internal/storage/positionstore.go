package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// PositionStoreManager persists the last saved position of each modality.
type PositionStoreManager interface {
	GetPosition(modality models.Modality) (*models.Position, error)
	SetPosition(modality models.Modality, p models.Position) error
	All() (map[models.Modality]models.Position, error)
}

type filePositionStore struct {
	basePath string
	mu       sync.Mutex
}

type positionsFile struct {
	Positions map[models.Modality]models.Position `yaml:"positions"`
}

// NewPositionStoreManager creates a PositionStoreManager backed by
// positions.yaml in the given base directory. The file is read on every
// call so several processes observe each other's saves.
func NewPositionStoreManager(basePath string) PositionStoreManager {
	return &filePositionStore{basePath: basePath}
}

func (s *filePositionStore) path() string {
	return filepath.Join(s.basePath, "positions.yaml")
}

func (s *filePositionStore) read() (positionsFile, error) {
	var pf positionsFile
	if _, err := loadYAML(s.path(), &pf); err != nil {
		return pf, fmt.Errorf("reading positions: %w", err)
	}
	if pf.Positions == nil {
		pf.Positions = make(map[models.Modality]models.Position)
	}
	return pf, nil
}

// GetPosition returns the last position of modality, or nil when none was
// ever saved.
func (s *filePositionStore) GetPosition(modality models.Modality) (*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pf, err := s.read()
	if err != nil {
		return nil, err
	}
	p, ok := pf.Positions[modality]
	if !ok {
		return nil, nil
	}
	cp := p.Clone()
	return &cp, nil
}

// SetPosition records p for modality. The read-modify-write runs under a
// file lock so concurrent processes saving different modalities do not
// drop each other's entries.
func (s *filePositionStore) SetPosition(modality models.Modality, p models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return fmt.Errorf("saving positions: creating directory: %w", err)
	}
	unlock, err := lockFile(s.path() + ".lock")
	if err != nil {
		return fmt.Errorf("saving positions: %w", err)
	}
	defer unlock()

	pf, err := s.read()
	if err != nil {
		return err
	}
	pf.Positions[modality] = p.Clone()

	if err := saveYAML(s.path(), &pf); err != nil {
		return fmt.Errorf("saving positions: %w", err)
	}
	return nil
}

func (s *filePositionStore) All() (map[models.Modality]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pf, err := s.read()
	if err != nil {
		return nil, err
	}
	return pf.Positions, nil
}
