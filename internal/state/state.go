package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Manager persists the watch state. Every method is safe for concurrent
// use; file states handed out are copies.
type Manager struct {
	state    *WatchState
	filePath string
	mu       sync.RWMutex
}

// NewManager creates a new state manager
func NewManager(filePath string) *Manager {
	return &Manager{
		state:    NewWatchState(),
		filePath: filePath,
	}
}

// Load reads the state file. A missing file yields an empty state.
// Entries left in progress by a run that never finished are requeued.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if os.IsNotExist(err) {
		m.state = NewWatchState()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var state WatchState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}
	if state.Version != StateFileVersion {
		return fmt.Errorf("unsupported state file version %d (expected %d)", state.Version, StateFileVersion)
	}
	if state.Files == nil {
		state.Files = make(map[string]*FileState)
	}

	for _, file := range state.Files {
		if file.Status == ConversionStatusInProgress {
			file.Status = ConversionStatusPending
		}
	}

	m.state = &state
	return nil
}

// Save writes the state file atomically through a temp file and rename
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.save()
}

func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmpFile := m.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := os.Rename(tmpFile, m.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp state file: %w", err)
	}
	return nil
}

// Check returns the tracked state of an input, or a fresh pending entry for
// an input seen for the first time, and whether it must be converted given
// its current content hash. Size is refreshed on the returned copy.
func (m *Manager) Check(path, hash string, size int64) (*FileState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	existing := m.state.GetFile(path)
	if existing == nil {
		return NewFileState(path, hash, size), true
	}

	file := *existing
	file.Size = size
	return &file, file.NeedsConversion(hash)
}

// Record stores a copy of file and saves the state, so progress survives
// an interrupted scan
func (m *Manager) Record(file *FileState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *file
	m.state.AddFile(&c)
	return m.save()
}

// Prune forgets inputs that are no longer present and returns their paths.
// Converted outputs are left alone.
func (m *Manager) Prune(present []string) []string {
	keep := make(map[string]struct{}, len(present))
	for _, path := range present {
		keep[path] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	for path := range m.state.Files {
		if _, ok := keep[path]; !ok {
			removed = append(removed, path)
		}
	}
	for _, path := range removed {
		m.state.RemoveFile(path)
	}
	return removed
}

// FinishScan stamps the scan time and saves the state
func (m *Manager) FinishScan() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.UpdateLastScan()
	return m.save()
}

// Counts returns the number of tracked inputs per status
func (m *Manager) Counts() map[ConversionStatus]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[ConversionStatus]int)
	for _, file := range m.state.Files {
		counts[file.Status]++
	}
	return counts
}

// GetState returns the current watch state
func (m *Manager) GetState() *WatchState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// GetFile returns a copy of the file state for a path, or nil if not found
func (m *Manager) GetFile(path string) *FileState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	file := m.state.GetFile(path)
	if file == nil {
		return nil
	}
	c := *file
	return &c
}

// AddFile adds or updates a file without saving
func (m *Manager) AddFile(file *FileState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *file
	m.state.AddFile(&c)
}

// LoadOrCreate loads the state file, creating it when it does not exist yet
func LoadOrCreate(filePath string) (*Manager, error) {
	manager := NewManager(filePath)

	if err := manager.Load(); err != nil {
		return nil, err
	}

	if len(manager.state.Files) == 0 && manager.state.LastScan.IsZero() {
		if err := manager.Save(); err != nil {
			return nil, fmt.Errorf("failed to save initial state: %w", err)
		}
	}

	return manager, nil
}

// Reset clears all state in memory
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = NewWatchState()
}

// Count returns the total number of files in the state
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.state.Files)
}
