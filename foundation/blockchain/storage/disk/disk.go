// Package disk implements the ability to read and write the ledger to files
// on disk. Every key is kept in its own JSON file.
package disk

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/safeguard/fraudledger/foundation/blockchain/storage"
)

// Disk represents the storage implementation for reading and storing the
// ledger in files on disk. This implements the storage.Storage interface.
type Disk struct {
	dbPath string
}

// New constructs a Disk value for use, creating the directory if needed.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since a file is opened and
// closed on every write.
func (d *Disk) Close() error {
	return nil
}

// Write replaces the file for the specified key. The data is written to a
// temporary file in the same directory, synced, and then renamed over the
// existing file so a crash never leaves a partial ledger behind.
func (d *Disk) Write(key string, data []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	f, err := os.CreateTemp(d.dbPath, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp, d.getPath(key)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing ledger file: %w", err)
	}

	// Sync the directory so the rename itself is durable. Not every platform
	// supports this, so a failure here is not reported.
	if dir, err := os.Open(d.dbPath); err == nil {
		dir.Sync()
		dir.Close()
	}

	return nil
}

// Read returns the contents of the file for the specified key.
func (d *Disk) Read(key string) ([]byte, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(d.getPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	return data, nil
}

// getPath forms the path to the file for the specified key.
func (d *Disk) getPath(key string) string {
	return filepath.Join(d.dbPath, key+".json")
}
