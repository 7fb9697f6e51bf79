// Package storage persists the last alert state per symbol, one store per
// namespace (e.g. "Crypto-Price-Drawdown").
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gosimple/slug"
)

// ErrPersistence wraps every read, write, or backup failure of a store.
// A missing key is not an error.
var ErrPersistence = errors.New("persistence failure")

const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Store maps symbol names to opaque state records.
type Store interface {
	// Lookup returns the record stored under name, or nil if there is none.
	Lookup(name string) ([]byte, error)
	// Update overwrites the record stored under name.
	Update(name string, record []byte) error
	// Backup copies the whole store to the backup location. It is a no-op
	// for an empty store.
	Backup() error
	Close() error
}

// Options selects the backend and where it keeps its files.
type Options struct {
	Backend string
	DataDir string
}

// Open opens the store for namespace with the configured backend.
func Open(opts Options, namespace string) (Store, error) {
	if namespace == "" {
		return nil, errors.New("store namespace must not be empty")
	}
	switch opts.Backend {
	case BackendSQLite, "":
		return NewSQLite(opts.DataDir, namespace)
	case BackendBadger:
		return NewBadger(opts.DataDir, namespace)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// Slug turns a namespace into a file-system safe name.
func Slug(namespace string) string {
	return slug.Make(namespace)
}

// BackupDir is where backups of every namespace under dataDir are written.
func BackupDir(dataDir string) string {
	return filepath.Join(dataDir, "backups")
}

func ensureDirs(dataDir string) error {
	if err := os.MkdirAll(BackupDir(dataDir), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

func persistenceError(op, name string, err error) error {
	if name == "" {
		return fmt.Errorf("%w: failed to %s: %w", ErrPersistence, op, err)
	}
	return fmt.Errorf("%w: failed to %s %q: %w", ErrPersistence, op, name, err)
}

// Memory is an in-process store. Backup is a no-op.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

func (m *Memory) Lookup(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[name]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), record...), nil
}

func (m *Memory) Update(name string, record []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[name] = append([]byte(nil), record...)
	return nil
}

func (m *Memory) Backup() error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
