// Package bolt implements the ability to read and write the ledger to an
// embedded bbolt key value database.
package bolt

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/safeguard/fraudledger/foundation/blockchain/storage"
	"go.etcd.io/bbolt"
)

// bucketLedger is the bucket holding every ledger blob.
var bucketLedger = []byte("ledger")

// Bolt represents the storage implementation for reading and storing the
// ledger in a bbolt database. This implements the storage.Storage interface.
type Bolt struct {
	db *bbolt.DB
}

// New opens or creates the database file at the specified path.
func New(dbPath string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLedger)
		return err
	})
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to create bucket: %w (additionally failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Bolt{db: db}, nil
}

// NewReadOnly opens an existing database file without taking the write lock.
// Every write returns an error.
func NewReadOnly(dbPath string) (*Bolt, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Close closes the database.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// Write stores the data under the specified key inside a single transaction.
func (b *Bolt) Write(key string, data []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLedger).Put([]byte(key), data)
	})
}

// Read returns the data stored under the specified key.
func (b *Bolt) Read(key string) ([]byte, error) {
	var data []byte

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketLedger)
		if bucket == nil {
			return storage.ErrNotFound
		}

		v := bucket.Get([]byte(key))
		if v == nil {
			return storage.ErrNotFound
		}

		// The slice is only valid inside the transaction.
		data = make([]byte, len(v))
		copy(data, v)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}
