package state

import (
	"context"
	"errors"

	"github.com/safeguard/fraudledger/foundation/blockchain/database"
)

// SealIfDue seals a new block when the number of pending transactions has
// reached the batch size. The bool reports if a block was appended.
func (s *State) SealIfDue(ctx context.Context) (database.Block, bool, error) {
	block, sealed, err := s.seal(ctx, s.batchSize)
	if errors.Is(err, database.ErrNoTransactions) {
		return database.Block{}, false, nil
	}

	return block, sealed, err
}

// ForceSeal seals every pending transaction into a new block regardless of
// the batch size. It returns database.ErrNoTransactions when the pool is
// empty. When the error is ErrPersist the returned block is part of the
// chain, only the write to storage failed.
func (s *State) ForceSeal(ctx context.Context) (database.Block, error) {
	block, _, err := s.seal(ctx, 1)
	return block, err
}

// =============================================================================

// seal drains the pool when it holds at least threshold transactions, solves
// the proof of work for the batch and appends the new block to the chain.
// The proof of work runs without holding the state lock, new transactions
// added during the search wait in the pool for the next block.
func (s *State) seal(ctx context.Context, threshold int) (database.Block, bool, error) {
	if s.readOnly {
		return database.Block{}, false, ErrReadOnly
	}

	s.sealMu.Lock()
	defer s.sealMu.Unlock()

	// Mining must stop when the ledger is shutting down.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.shut, cancel)
	defer stop()

	s.mu.Lock()

	n := s.mempool.Count()
	if n == 0 || n < threshold {
		s.mu.Unlock()
		if n == 0 {
			return database.Block{}, false, database.ErrNoTransactions
		}
		return database.Block{}, false, nil
	}

	trans := s.mempool.Drain()
	s.inflight = trans
	prevBlock := s.chain[len(s.chain)-1]

	s.mu.Unlock()

	s.evHandler("state: seal: MINING: perform POW: trans[%d]", len(trans))

	block, err := database.POW(ctx, database.POWArgs{
		Hasher:     s.hasher,
		Difficulty: s.difficulty,
		PrevBlock:  prevBlock,
		Trans:      trans,
		Workers:    s.workers,
		TimeStamp:  s.clock(),
		EvHandler:  s.evHandler,
	})
	if err != nil {
		s.evHandler("state: seal: MINING: returning trans to pool: %s", err)

		// Nothing was appended so the persisted ledger, which lists the
		// batch as pending, is still accurate.
		s.mu.Lock()
		s.mempool.Restore(trans)
		s.inflight = nil
		s.mu.Unlock()

		return database.Block{}, false, err
	}

	s.mu.Lock()
	s.chain = append(s.chain, block)
	s.inflight = nil
	s.gen++
	gen, doc := s.snapshot()
	s.mu.Unlock()

	s.evHandler("state: seal: MINING: appended: %s", block)

	if err := s.save(gen, doc); err != nil {
		return block, true, err
	}

	return block, true, nil
}
