// Package mempool maintains the pool of transactions waiting to be sealed
// into a block.
package mempool

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/safeguard/fraudledger/foundation/blockchain/database"
	"github.com/safeguard/fraudledger/foundation/blockchain/digest"
)

// idLength is the number of hex characters kept for a transaction id.
const idLength = 16

// Mempool represents an ordered cache of unsealed transactions. Insertion
// order is the order the transactions will be sealed in.
type Mempool struct {
	mu     sync.RWMutex
	pool   []database.Tx
	hasher digest.Hasher
	seq    uint64
}

// New constructs a new mempool that derives transaction ids with the
// specified hasher.
func New(hasher digest.Hasher) *Mempool {
	return &Mempool{
		pool:   []database.Tx{},
		hasher: hasher,
	}
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Add stamps the transaction with an id and timestamp and appends it to the
// pool. It returns the stored transaction and the new pool size.
func (mp *Mempool) Add(tx database.Tx, now time.Time) (database.Tx, int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.seq++

	tx.ID = ""
	tx.Timestamp = now.UTC()

	content, err := json.Marshal(tx)
	if err != nil {
		return database.Tx{}, 0, fmt.Errorf("encoding tx: %w", err)
	}

	// The sequence keeps identical payloads submitted at the same instant
	// from getting the same id.
	nanos := strconv.AppendInt(nil, tx.Timestamp.UnixNano(), 10)
	seq := strconv.AppendUint(nil, mp.seq, 10)
	tx.ID = mp.hasher.Sum(content, nanos, seq)[:idLength]

	tx, err = database.Canonicalize(tx)
	if err != nil {
		return database.Tx{}, 0, err
	}

	mp.pool = append(mp.pool, tx)

	return tx, len(mp.pool), nil
}

// Load replaces the contents of the pool. This is used when the ledger is
// read back from storage.
func (mp *Mempool) Load(trans []database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make([]database.Tx, len(trans))
	copy(mp.pool, trans)
}

// Drain returns the current contents of the pool and leaves it empty.
func (mp *Mempool) Drain() []database.Tx {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	trans := mp.pool
	mp.pool = []database.Tx{}

	return trans
}

// Restore puts a previously drained set of transactions back at the front of
// the pool, ahead of anything added since the drain.
func (mp *Mempool) Restore(trans []database.Tx) {
	if len(trans) == 0 {
		return
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	pool := make([]database.Tx, 0, len(trans)+len(mp.pool))
	pool = append(pool, trans...)
	pool = append(pool, mp.pool...)

	mp.pool = pool
}

// Copy returns a copy of the pool in insertion order.
func (mp *Mempool) Copy() []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	trans := make([]database.Tx, len(mp.pool))
	copy(trans, mp.pool)

	return trans
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = []database.Tx{}
}
