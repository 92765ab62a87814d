package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/safeguard/fraudledger/foundation/blockchain/database"
)

// AddTransaction stamps the transaction with an id and timestamp, adds it to
// the pool and saves the ledger. A high priority transaction is sealed right
// away, anything else is sealed once the batch size is reached.
//
// The returned transaction is valid whenever it carries an id. An error
// together with a stored transaction means the transaction is in the ledger
// but a save or the follow up seal failed.
func (s *State) AddTransaction(ctx context.Context, tx database.Tx) (database.Tx, error) {
	if s.readOnly {
		return database.Tx{}, ErrReadOnly
	}

	s.mu.Lock()

	stored, n, err := s.mempool.Add(tx, s.clock())
	if err != nil {
		s.mu.Unlock()
		return database.Tx{}, err
	}

	s.gen++
	gen, doc := s.snapshot()

	s.mu.Unlock()

	s.evHandler("state: AddTransaction: %s: pending[%d]", stored, n)

	persistErr := s.save(gen, doc)

	switch {
	case stored.HighPriority():
		s.evHandler("state: AddTransaction: high priority, sealing: tx[%s]", stored.ID)

		_, err := s.ForceSeal(ctx)
		switch {
		case errors.Is(err, database.ErrNoTransactions):

			// Another seal already took this transaction.
			return stored, persistErr

		case err != nil:
			return stored, fmt.Errorf("sealing: %w", err)
		}

		// The seal saved the ledger including this transaction.
		return stored, nil

	case n >= s.batchSize:
		_, sealed, err := s.SealIfDue(ctx)
		switch {
		case err != nil:
			return stored, fmt.Errorf("sealing: %w", err)
		case sealed:
			return stored, nil
		}
	}

	return stored, persistErr
}
