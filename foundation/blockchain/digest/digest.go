// Package digest provides the hashing support for the ledger. Every block hash
// and transaction id is produced through a Hasher so sealing and verification
// always agree on the bytes being hashed.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Set of supported hashing algorithms.
const (
	SHA256    = "sha256"
	Keccak256 = "keccak256"
)

// GenesisPrevHash is the previous hash value recorded in the genesis block.
const GenesisPrevHash = "0"

// Size is the length of a hex encoded digest.
const Size = 64

// =============================================================================

// Hasher produces hex encoded 256 bit digests using a named algorithm.
type Hasher struct {
	name string
	new  func() hash.Hash
}

// New returns the hasher for the specified algorithm. An empty name selects
// the default SHA256 algorithm.
func New(algorithm string) (Hasher, error) {
	switch strings.ToLower(algorithm) {
	case "", SHA256:
		return Hasher{name: SHA256, new: sha256.New}, nil

	case Keccak256:
		return Hasher{name: Keccak256, new: func() hash.Hash { return crypto.NewKeccakState() }}, nil
	}

	return Hasher{}, fmt.Errorf("unknown hash algorithm %q", algorithm)
}

// Default returns the SHA256 hasher.
func Default() Hasher {
	return Hasher{name: SHA256, new: sha256.New}
}

// Name returns the algorithm name.
func (h Hasher) Name() string {
	return h.name
}

// Sum hashes the concatenation of the specified parts.
func (h Hasher) Sum(parts ...[]byte) string {
	hh := h.new()
	for _, p := range parts {
		hh.Write(p)
	}

	return hex.EncodeToString(hh.Sum(nil))
}

// Block computes the digest for the block fields. The transactions must already
// be in their canonical encoding.
func (h Hasher) Block(index uint64, canonicalTrans []byte, prevHash string, nonce uint64) string {
	return h.Sum(h.prefix(index, canonicalTrans, prevHash), strconv.AppendUint(nil, nonce, 10))
}

// prefix builds the nonce independent part of the block digest input.
func (h Hasher) prefix(index uint64, canonicalTrans []byte, prevHash string) []byte {
	b := make([]byte, 0, 20+len(canonicalTrans)+len(prevHash))
	b = strconv.AppendUint(b, index, 10)
	b = append(b, canonicalTrans...)
	b = append(b, prevHash...)

	return b
}

// =============================================================================

// Searcher hashes the same block content with different nonce values. It
// avoids rebuilding the nonce independent input on every attempt and is not
// safe for concurrent use.
type Searcher struct {
	hh     hash.Hash
	prefix []byte
	buf    []byte
	sum    []byte
}

// NewSearcher constructs a searcher for the specified block content.
func (h Hasher) NewSearcher(index uint64, canonicalTrans []byte, prevHash string) *Searcher {
	return &Searcher{
		hh:     h.new(),
		prefix: h.prefix(index, canonicalTrans, prevHash),
		buf:    make([]byte, 0, 20),
		sum:    make([]byte, 0, 32),
	}
}

// Hash returns the hex digest for the content using the specified nonce.
func (s *Searcher) Hash(nonce uint64) string {
	s.hh.Reset()
	s.hh.Write(s.prefix)
	s.buf = strconv.AppendUint(s.buf[:0], nonce, 10)
	s.hh.Write(s.buf)
	s.sum = s.hh.Sum(s.sum[:0])

	return hex.EncodeToString(s.sum)
}

// =============================================================================

// Solved checks the hash complies with the proof of work rules. The hash must
// start with a difficulty number of 0's.
func Solved(difficulty uint, hash string) bool {
	if len(hash) != Size {
		return false
	}

	if int(difficulty) > Size {
		return false
	}

	for i := 0; i < int(difficulty); i++ {
		if hash[i] != '0' {
			return false
		}
	}

	return true
}
