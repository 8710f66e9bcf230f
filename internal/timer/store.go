package timer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Snapshot is the persisted timer state. The field names match the blob the
// web client keeps in local storage so both clients can share one format.
type Snapshot struct {
	TimeLeft         int       `json:"timeLeft"`
	IsActive         bool      `json:"isActive"`
	IsBreak          bool      `json:"isBreak"`
	CurrentTask      *Task     `json:"currentTask"`
	SessionCount     int       `json:"sessionCount"`
	CurrentSessionID string    `json:"currentSessionId,omitempty"`
	SavedAt          time.Time `json:"savedAt"`
}

// Store persists a single snapshot. Load returns nil, nil when nothing has
// been saved.
type Store interface {
	Load() (*Snapshot, error)
	Save(s Snapshot) error
	Clear() error
}

// FileStore keeps the snapshot in one JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read timer state: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		// A corrupt snapshot is dropped rather than blocking the timer.
		return nil, f.Clear()
	}
	return &s, nil
}

// Save writes to a temporary file and renames it over the snapshot so a
// crash mid-write never leaves a truncated file behind.
func (f *FileStore) Save(s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".timer-*.json")
	if err != nil {
		return fmt.Errorf("write timer state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write timer state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write timer state: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write timer state: %w", err)
	}
	return nil
}

func (f *FileStore) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear timer state: %w", err)
	}
	return nil
}

type MemoryStore struct {
	mu   sync.Mutex
	snap *Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, nil
	}
	s := *m.snap
	return &s, nil
}

func (m *MemoryStore) Save(s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = &s
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = nil
	return nil
}
