package state

import (
	"github.com/safeguard/fraudledger/foundation/blockchain/database"
)

// RetrieveLatestBlock returns a copy of the last block in the chain.
func (s *State) RetrieveLatestBlock() database.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain[len(s.chain)-1].Clone()
}

// RetrieveBlocks returns the blocks between the from and to index inclusive.
// The range is clipped to the chain.
func (s *State) RetrieveBlocks(from uint64, to uint64) []database.Block {
	chain := s.chainSnapshot()

	last := uint64(len(chain) - 1)
	if to > last {
		to = last
	}

	if from > to {
		return []database.Block{}
	}

	blocks := make([]database.Block, 0, to-from+1)
	for _, block := range chain[from : to+1] {
		blocks = append(blocks, block.Clone())
	}

	return blocks
}

// RetrieveChain returns a copy of the whole chain.
func (s *State) RetrieveChain() []database.Block {
	chain := s.chainSnapshot()

	return s.RetrieveBlocks(0, uint64(len(chain)-1))
}

// RetrievePending returns the transactions waiting to be sealed, including a
// batch a seal is working on, in the order they will be sealed.
func (s *State) RetrievePending() []database.Tx {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, doc := s.snapshot()

	return doc.PendingTransactions
}

// RetrieveNetworkInfo returns the ledger metadata.
func (s *State) RetrieveNetworkInfo() database.NetworkInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.networkInfo
}

// RetrieveHashAlgorithm returns the name of the hash algorithm the ledger
// was built with.
func (s *State) RetrieveHashAlgorithm() string {
	return s.hasher.Name()
}

// RetrieveDocument returns the ledger in its persisted form.
func (s *State) RetrieveDocument() database.Document {
	s.mu.RLock()
	_, doc := s.snapshot()
	s.mu.RUnlock()

	doc.Stats = database.CountStats(doc.Chain, len(doc.PendingTransactions), s.integrity)

	return doc
}

// RetrieveBatchSize returns the number of pending transactions that makes a
// seal due.
func (s *State) RetrieveBatchSize() int {
	return s.batchSize
}
