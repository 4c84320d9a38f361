package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// State keys
const (
	keyGuestUsed   = "guest_used"
	keyPendingGoal = "pending_goal"
	keyAuthToken   = "auth_token"
)

// StateStore is the injected key-value capability backing client-local
// state: the guest-credit flag, the pending goal, and the auth token.
// Browser clients keep this in localStorage; non-browser consumers
// substitute a file-backed or in-memory store.
type StateStore interface {
	Get(key string) string
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStore is an in-process StateStore for tests
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates a new in-memory state store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// FileStore persists state as a JSON document, one file per consumer
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file-backed state store at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultStatePath returns the per-user state file location
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".kynto", "state.json"), nil
}

func (s *FileStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return ""
	}
	return values[key]
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		values = make(map[string]string)
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *FileStore) save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
