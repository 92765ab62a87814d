package database

import (
	"fmt"

	"github.com/safeguard/fraudledger/foundation/blockchain/digest"
)

// Verification is the result of checking the hash linkage of a chain.
type Verification struct {
	Valid         bool   `json:"valid"`
	FirstBadIndex *int   `json:"first_bad_index,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// VerifyChain recomputes the hash of every block and checks each block points
// at the hash of the block before it. It stops at the first block that fails
// and never changes the chain.
func VerifyChain(hasher digest.Hasher, chain []Block) Verification {
	if len(chain) == 0 {
		return invalid(0, "chain has no genesis block")
	}

	genesis := chain[0]
	if genesis.Index != 0 || genesis.PreviousHash != digest.GenesisPrevHash {
		return invalid(0, "genesis block is malformed")
	}

	if err := checkHash(hasher, genesis); err != nil {
		return invalid(0, err.Error())
	}

	for i := 1; i < len(chain); i++ {
		block := chain[i]

		if block.Index != uint64(i) {
			return invalid(i, fmt.Sprintf("block index is %d, exp %d", block.Index, i))
		}

		if block.PreviousHash != chain[i-1].Hash {
			return invalid(i, fmt.Sprintf("previous hash doesn't match parent, got %s, exp %s", block.PreviousHash, chain[i-1].Hash))
		}

		if err := checkHash(hasher, block); err != nil {
			return invalid(i, err.Error())
		}
	}

	return Verification{Valid: true}
}

// checkHash compares the stored hash against the recomputed digest.
func checkHash(hasher digest.Hasher, block Block) error {
	hash, err := block.ComputeHash(hasher)
	if err != nil {
		return fmt.Errorf("unable to compute hash: %w", err)
	}

	if hash != block.Hash {
		return fmt.Errorf("stored hash doesn't match content, got %s, exp %s", block.Hash, hash)
	}

	return nil
}

func invalid(index int, reason string) Verification {
	return Verification{
		Valid:         false,
		FirstBadIndex: &index,
		Reason:        reason,
	}
}
