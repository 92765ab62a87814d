// Package memory implements the ability to read and write the ledger to
// memory. It is used for tests and for nodes that don't need to survive a
// restart.
package memory

import (
	"errors"
	"sync"

	"github.com/safeguard/fraudledger/foundation/blockchain/storage"
)

// Memory represents the storage implementation for reading and storing the
// ledger in memory. This implements the storage.Storage interface.
type Memory struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	closed bool
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{
		blobs: make(map[string][]byte),
	}
}

// Close marks the storage as closed. Data is kept so a test can inspect it.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// Write stores a copy of the data under the specified key.
func (m *Memory) Write(key string, data []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New("storage is closed")
	}

	blob := make([]byte, len(data))
	copy(blob, data)
	m.blobs[key] = blob

	return nil
}

// Read returns a copy of the data stored under the specified key.
func (m *Memory) Read(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, exists := m.blobs[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	data := make([]byte, len(blob))
	copy(data, blob)

	return data, nil
}
