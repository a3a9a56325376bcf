// Package utxostore persists the wallet state that survives restarts: the
// last known balance and the next derive index of each address type.
package utxostore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/fileutil"
)

const (
	// stateFileName is the name of the state file inside a wallet directory.
	stateFileName = "state.json"

	// currentVersion is the current file format version.
	currentVersion = 1

	filePermissions = 0o600
	dirPermissions  = 0o700
)

// ErrUnsupportedVersion is returned when the state file was written by a
// newer release.
var ErrUnsupportedVersion = errors.New("unsupported state file version")

// KV is a string key-value store with an explicit flush.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Save() error
	Close() error
}

// stateFile represents the JSON file structure (versioned).
type stateFile struct {
	Version   int               `json:"version"`
	UpdatedAt time.Time         `json:"updated_at"`
	Values    map[string]string `json:"values"`
}

// Store keeps values in memory and writes them to a JSON file on Save.
// A Store without a path never touches the disk.
type Store struct {
	path string
	mu   sync.RWMutex
	data *stateFile
}

// New creates a Store for the given wallet directory. The store is not
// loaded until Load is called.
func New(walletPath string) *Store {
	s := NewMemory()
	s.path = filepath.Join(walletPath, stateFileName)
	return s
}

// NewMemory returns a Store that is never written to disk.
func NewMemory() *Store {
	return &Store{
		data: &stateFile{
			Version: currentVersion,
			Values:  make(map[string]string),
		},
	}
}

// Load reads the state file. A missing file leaves the store empty.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	raw, ok, err := fileutil.ReadOptional(s.path)
	if err != nil || !ok {
		return err
	}

	var data stateFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}
	if data.Version > currentVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, data.Version)
	}
	if data.Values == nil {
		data.Values = make(map[string]string)
	}

	s.mu.Lock()
	s.data = &data
	s.mu.Unlock()
	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.Values[key]
	return v, ok, nil
}

// Set stores value under key in memory.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Values[key] = value
	s.data.UpdatedAt = time.Now().UTC()
	return nil
}

// IsEmpty reports whether nothing has been stored.
func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Values) == 0
}

// Save writes the state file atomically.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	data := *s.data
	data.Version = currentVersion
	raw, err := json.MarshalIndent(&data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), dirPermissions); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return fileutil.WriteAtomic(s.path, raw, filePermissions)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
