package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/safeguard/fraudledger/foundation/blockchain/digest"
)

// Block represents a group of transactions sealed together. A block is never
// changed once it is part of the chain.
type Block struct {
	Index        uint64    `json:"index"`
	Timestamp    time.Time `json:"timestamp"`
	Transactions []Tx      `json:"transactions"`
	PreviousHash string    `json:"previous_hash"`
	Nonce        uint64    `json:"nonce"`
	Hash         string    `json:"hash"`
}

// Genesis constructs the first block of a new chain. The genesis block holds
// no transactions and is exempt from the proof of work target.
func Genesis(hasher digest.Hasher, now time.Time) Block {
	b := Block{
		Index:        0,
		Timestamp:    now.UTC(),
		Transactions: []Tx{},
		PreviousHash: digest.GenesisPrevHash,
		Nonce:        0,
	}

	// An empty list always encodes, the error can be ignored.
	b.Hash, _ = Digest(hasher, 0, nil, digest.GenesisPrevHash, 0)

	return b
}

// Digest computes the block hash for the specified block fields.
func Digest(hasher digest.Hasher, index uint64, trans []Tx, prevHash string, nonce uint64) (string, error) {
	data, err := EncodeTrans(trans)
	if err != nil {
		return "", err
	}

	return hasher.Block(index, data, prevHash, nonce), nil
}

// ComputeHash recomputes the hash from the stored block fields.
func (b Block) ComputeHash(hasher digest.Hasher) (string, error) {
	return Digest(hasher, b.Index, b.Transactions, b.PreviousHash, b.Nonce)
}

// Clone returns a copy of the block that doesn't share the transaction slice.
func (b Block) Clone() Block {
	trans := make([]Tx, len(b.Transactions))
	copy(trans, b.Transactions)
	b.Transactions = trans

	return b
}

// MarshalJSON makes sure an empty block writes its transactions as [] and the
// timestamp in UTC.
func (b Block) MarshalJSON() ([]byte, error) {
	type block Block

	bb := block(b)
	if bb.Transactions == nil {
		bb.Transactions = []Tx{}
	}
	bb.Timestamp = bb.Timestamp.UTC()

	return json.Marshal(bb)
}

// String implements the fmt.Stringer interface for logging.
func (b Block) String() string {
	return fmt.Sprintf("blk[%d] hash[%s] trans[%d]", b.Index, b.Hash, len(b.Transactions))
}
