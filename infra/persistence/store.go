package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kilianp07/csim/core/model"
)

// FileStore persists connector state as one JSON file per station. Writes
// are serialized per store; callers treat failures as best-effort.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates the state directory when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

type connectorState struct {
	Status                     string  `json:"status"`
	Availability               string  `json:"availability"`
	TransactionStarted         bool    `json:"transactionStarted"`
	TransactionID              int     `json:"transactionId,omitempty"`
	IdTag                      string  `json:"idTag,omitempty"`
	EnergyActiveImportRegister float64 `json:"energyActiveImportRegister"`
}

func (s *FileStore) path(stationID string) string {
	return filepath.Join(s.dir, stationID+".json")
}

// SaveConnectorState upserts one connector's snapshot into the station file.
func (s *FileStore) SaveConnectorState(stationID string, connectorID int, c *model.Connector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	states, err := s.readLocked(stationID)
	if err != nil {
		states = map[int]connectorState{}
	}
	states[connectorID] = connectorState{
		Status:                     string(c.Status),
		Availability:               string(c.Availability),
		TransactionStarted:         c.TransactionStarted,
		TransactionID:              c.TransactionID,
		IdTag:                      c.IdTag,
		EnergyActiveImportRegister: c.EnergyActiveImportRegister,
	}
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(stationID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(stationID))
}

// LoadEnergyRegister restores the lifetime register of one connector, zero
// when no state is on disk.
func (s *FileStore) LoadEnergyRegister(stationID string, connectorID int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	states, err := s.readLocked(stationID)
	if err != nil {
		return 0
	}
	return states[connectorID].EnergyActiveImportRegister
}

func (s *FileStore) readLocked(stationID string) (map[int]connectorState, error) {
	data, err := os.ReadFile(s.path(stationID))
	if err != nil {
		return nil, err
	}
	var states map[int]connectorState
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, err
	}
	return states, nil
}
