package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/safeguard/fraudledger/foundation/blockchain/database"
)

// ErrPersist is returned when the ledger changed in memory but could not be
// written to storage. The in-memory ledger is still valid and Persist can be
// called to try again.
var ErrPersist = errors.New("unable to persist ledger")

// ErrReadOnly is returned when a ledger opened for inspection is asked to
// change.
var ErrReadOnly = errors.New("ledger is read only")

// ErrCorrupt is returned when a ledger opened for inspection can't be decoded.
var ErrCorrupt = errors.New("ledger is corrupt")

// Persist writes the current ledger to storage if it has changes that were
// not saved yet.
func (s *State) Persist(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	gen, doc := s.snapshot()
	s.mu.RUnlock()

	return s.save(gen, doc)
}

// =============================================================================

// snapshot captures the ledger at this moment. The caller must hold mu. The
// blocks are never changed after they are appended so sharing them is safe.
func (s *State) snapshot() (uint64, database.Document) {
	chain := s.chain[:len(s.chain):len(s.chain)]

	pending := make([]database.Tx, 0, len(s.inflight)+s.mempool.Count())
	pending = append(pending, s.inflight...)
	pending = append(pending, s.mempool.Copy()...)

	doc := database.Document{
		Chain:               chain,
		PendingTransactions: pending,
		NetworkInfo:         s.networkInfo,
	}

	return s.gen, doc
}

// save writes the snapshot taken at the specified generation. A snapshot
// older than the last successful write is dropped so a slow writer never
// replaces newer data.
func (s *State) save(gen uint64, doc database.Document) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if gen <= s.savedGen {
		return nil
	}

	if s.readOnly {
		return ErrReadOnly
	}

	doc.Stats = database.CountStats(doc.Chain, len(doc.PendingTransactions), s.integrity)

	data, err := database.EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("%w: encoding: %w", ErrPersist, err)
	}

	if err := s.storage.Write(s.key, data); err != nil {
		s.evHandler("state: save: ERROR: gen[%d]: %s", gen, err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	s.savedGen = gen
	s.evHandler("state: save: gen[%d]: blocks[%d]: pending[%d]", gen, len(doc.Chain), len(doc.PendingTransactions))

	return nil
}
