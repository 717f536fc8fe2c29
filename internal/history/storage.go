package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage is the durable medium behind a Store
type Storage interface {
	// Load returns the persisted payload; a missing payload is (nil, nil).
	Load() ([]byte, error)
	// Save replaces the persisted payload before returning.
	Save(data []byte) error
}

// Quarantiner is implemented by storages that can move an unreadable payload aside.
type Quarantiner interface {
	Quarantine() (string, error)
}

// FileStorage keeps the log in a single JSON file
type FileStorage struct {
	path string
}

// NewFileStorage creates a file-backed storage at path
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the log file location
func (f *FileStorage) Path() string {
	return f.path
}

// Load reads the log file. A file that does not exist yet is an empty log.
func (f *FileStorage) Load() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	return data, nil
}

// Save writes data to a temp file and renames it over the log
func (f *FileStorage) Save(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, f.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Quarantine renames the current file to <path>.corrupt so the next save starts fresh
func (f *FileStorage) Quarantine() (string, error) {
	backupPath := f.path + ".corrupt"
	if err := os.Rename(f.path, backupPath); err != nil {
		return "", fmt.Errorf("failed to move corrupted history aside: %w", err)
	}
	return backupPath, nil
}

// MemoryStorage keeps the payload in memory. Useful for tests and ephemeral sessions.
type MemoryStorage struct {
	mu    sync.Mutex
	data  []byte
	saves int
	err   error
}

// NewMemoryStorage creates a storage preloaded with data (may be nil)
func NewMemoryStorage(data []byte) *MemoryStorage {
	return &MemoryStorage{data: data}
}

// Load returns the stored payload
func (m *MemoryStorage) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...), nil
}

// Save replaces the payload, or fails with the error set by FailWith
func (m *MemoryStorage) Save(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

// FailWith makes subsequent saves return err (nil restores normal behaviour)
func (m *MemoryStorage) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Data returns a copy of the stored payload
func (m *MemoryStorage) Data() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// Saves counts successful saves
func (m *MemoryStorage) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
