// Package storage defines the behavior required to durably keep the ledger.
// The ledger is written as a single named blob so the same engine works over
// a local file, an embedded key value store, or memory.
package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the requested key has never been written.
var ErrNotFound = errors.New("key not found")

// Storage interface represents the behavior required to be implemented by
// any package providing support for storing and reading the ledger. A Write
// must be atomic from the point of view of a later Read: either the old or
// the new value is returned, never a partial one.
type Storage interface {
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
	Close() error
}

// =============================================================================

// ValidateKey checks the key can be used by every storage implementation.
func ValidateKey(key string) error {
	if key == "" {
		return errors.New("storage key is required")
	}

	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("storage key %q contains invalid character %q", key, r)
		}
	}

	if key == "." || key == ".." {
		return fmt.Errorf("storage key %q is invalid", key)
	}

	return nil
}
