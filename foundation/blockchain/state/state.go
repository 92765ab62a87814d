// Package state is the core API for the ledger and implements all the
// business rules and processing.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/safeguard/fraudledger/foundation/blockchain/database"
	"github.com/safeguard/fraudledger/foundation/blockchain/digest"
	"github.com/safeguard/fraudledger/foundation/blockchain/mempool"
	"github.com/safeguard/fraudledger/foundation/blockchain/storage"
)

// Set of defaults used when the configuration leaves a value unset.
const (
	DefaultKey            = "ledger"
	DefaultBatchSize      = 5
	DefaultNetworkName    = "SafeGuard Fraud Registry"
	DefaultNetworkVersion = "1.0.0"
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of the ledger.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for background sealing.
type Worker interface {
	Shutdown()
	SignalSeal()
}

// =============================================================================

// Config represents the configuration required to start the ledger.
type Config struct {
	Storage        storage.Storage
	Key            string
	Difficulty     uint
	BatchSize      int
	Workers        int
	HashAlgorithm  string
	NetworkName    string
	NetworkVersion string
	Clock          func() time.Time
	EvHandler      EventHandler

	// ReadOnly opens an existing ledger for inspection. A missing or corrupt
	// ledger is an error and nothing is ever written to storage.
	ReadOnly bool
}

// State manages the ledger. A State is safe for concurrent use.
type State struct {
	key        string
	difficulty uint
	batchSize  int
	workers    int
	clock      func() time.Time
	evHandler  EventHandler

	hasher      digest.Hasher
	storage     storage.Storage
	networkInfo database.NetworkInfo
	readOnly    bool

	// integrity is the verification of the chain when it was loaded. Sealed
	// blocks always extend the tip so appending never changes it.
	integrity database.Verification

	shut       context.Context
	shutCancel context.CancelFunc

	// sealMu serializes seals so two seals never drain overlapping sets.
	sealMu sync.Mutex

	// mu guards the chain, the inflight batch and the generation counter.
	// The pool has its own lock, but it is only changed while holding mu so
	// a snapshot sees the pool and the chain at the same moment.
	mu       sync.RWMutex
	chain    []database.Block
	inflight []database.Tx
	mempool  *mempool.Mempool
	gen      uint64

	persistMu sync.Mutex
	savedGen  uint64

	Worker Worker
}

// New constructs the ledger. The ledger is read from storage and when it
// doesn't exist, or can't be read, a new ledger holding only the genesis
// block is created and saved.
func New(cfg Config) (*State, error) {
	if cfg.Storage == nil {
		return nil, errors.New("storage is required")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Difficulty > digest.Size {
		return nil, fmt.Errorf("difficulty %d is above the maximum of %d", cfg.Difficulty, digest.Size)
	}

	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if err := storage.ValidateKey(cfg.Key); err != nil {
		return nil, err
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.NetworkName == "" {
		cfg.NetworkName = DefaultNetworkName
	}
	if cfg.NetworkVersion == "" {
		cfg.NetworkVersion = DefaultNetworkVersion
	}
	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = digest.SHA256
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	hasher, err := digest.New(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	shut, shutCancel := context.WithCancel(context.Background())

	s := State{
		key:        cfg.Key,
		difficulty: cfg.Difficulty,
		batchSize:  cfg.BatchSize,
		workers:    cfg.Workers,
		clock:      cfg.Clock,
		evHandler:  ev,

		hasher:   hasher,
		storage:  cfg.Storage,
		readOnly: cfg.ReadOnly,

		shut:       shut,
		shutCancel: shutCancel,
	}

	doc, loaded, err := s.load()
	if err != nil {
		shutCancel()
		return nil, err
	}
	if !loaded {
		doc = s.genesisDocument(cfg)
	}

	// New blocks are sealed with the configured difficulty.
	s.networkInfo = doc.NetworkInfo
	s.networkInfo.Difficulty = cfg.Difficulty
	s.networkInfo.HashAlgorithm = s.hasher.Name()

	s.chain = doc.Chain
	s.mempool = mempool.New(s.hasher)
	s.mempool.Load(doc.PendingTransactions)

	s.integrity = database.VerifyChain(s.hasher, s.chain)

	if loaded {
		if !s.integrity.Valid {
			ev("state: New: WARNING: loaded chain fails verification: index[%d]: %s", *s.integrity.FirstBadIndex, s.integrity.Reason)
		}

		ev("state: New: loaded ledger: blocks[%d]: pending[%d]", len(s.chain), s.mempool.Count())
		return &s, nil
	}

	// A fresh ledger is written right away. Startup never fails because of
	// storage, the next mutation will try again.
	s.gen++
	if err := s.Persist(context.Background()); err != nil {
		ev("state: New: WARNING: unable to save genesis ledger: %s", err)
	}

	ev("state: New: created genesis ledger: hash[%s]", s.chain[0].Hash)

	return &s, nil
}

// Shutdown cancels any seal in progress, stops the worker, makes a last
// attempt to save unsaved changes and closes the storage.
func (s *State) Shutdown() error {
	s.evHandler("state: Shutdown: started")
	defer s.evHandler("state: Shutdown: completed")

	s.shutCancel()

	// Stop all ledger writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	// Wait for a seal that is already running to give up.
	s.sealMu.Lock()
	defer s.sealMu.Unlock()

	persistErr := s.Persist(context.Background())

	if err := s.storage.Close(); err != nil {
		return err
	}

	return persistErr
}

// =============================================================================

// load reads the ledger from storage. It returns false when a new ledger
// needs to be created. A read only ledger must exist and decode.
func (s *State) load() (database.Document, bool, error) {
	data, err := s.storage.Read(s.key)
	if err != nil {
		if s.readOnly {
			return database.Document{}, false, fmt.Errorf("reading ledger %q: %w", s.key, err)
		}

		if errors.Is(err, storage.ErrNotFound) {
			s.evHandler("state: load: no ledger found: key[%s]", s.key)
		} else {
			s.evHandler("state: load: WARNING: unable to read ledger: key[%s]: %s", s.key, err)
		}
		return database.Document{}, false, nil
	}

	doc, err := database.DecodeDocument(data)
	if err == nil {
		err = s.useLedgerHasher(doc.NetworkInfo.HashAlgorithm)
	}

	if err != nil {
		if s.readOnly {
			return database.Document{}, false, fmt.Errorf("%w: %q: %w", ErrCorrupt, s.key, err)
		}

		s.evHandler("state: load: WARNING: ledger is corrupt, starting over: key[%s]: %s", s.key, err)

		// Keep the bad bytes around for a human to look at.
		if err := s.storage.Write(s.key+".corrupt", data); err != nil {
			s.evHandler("state: load: WARNING: unable to back up corrupt ledger: %s", err)
		}

		return database.Document{}, false, nil
	}

	return doc, true, nil
}

// useLedgerHasher switches to the algorithm recorded in a loaded ledger so
// existing hashes keep verifying when the configuration changes.
func (s *State) useLedgerHasher(algorithm string) error {
	if algorithm == "" || algorithm == s.hasher.Name() {
		return nil
	}

	hasher, err := digest.New(algorithm)
	if err != nil {
		return err
	}

	s.evHandler("state: load: using ledger hash algorithm: %s", algorithm)
	s.hasher = hasher

	return nil
}

// genesisDocument constructs a new ledger holding the genesis block.
func (s *State) genesisDocument(cfg Config) database.Document {
	genesis := database.Genesis(s.hasher, s.clock())

	return database.Document{
		Chain:               []database.Block{genesis},
		PendingTransactions: []database.Tx{},
		NetworkInfo: database.NetworkInfo{
			Name:             cfg.NetworkName,
			Version:          cfg.NetworkVersion,
			GenesisTimestamp: genesis.Timestamp,
			Difficulty:       cfg.Difficulty,
			MiningReward:     0,
			HashAlgorithm:    s.hasher.Name(),
		},
	}
}
