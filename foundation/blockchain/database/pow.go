package database

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/safeguard/fraudledger/foundation/blockchain/digest"
	"golang.org/x/sync/errgroup"
)

// ErrNoTransactions is returned when a block is requested to be sealed and
// there are no transactions to seal.
var ErrNoTransactions = errors.New("no pending transactions")

// ErrNonceExhausted is returned when the whole nonce space was searched
// without finding a solution.
var ErrNonceExhausted = errors.New("nonce space exhausted")

// errSolved is used to stop the other workers once a solution is found.
var errSolved = errors.New("solved")

// checkEvery is how many attempts are made between cancellation checks.
const checkEvery = 4096

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	Hasher     digest.Hasher
	Difficulty uint
	PrevBlock  Block
	Trans      []Tx
	Workers    int
	TimeStamp  time.Time
	EvHandler  func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the proof of work puzzle. The search can be cancelled through the
// context.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	if len(args.Trans) == 0 {
		return Block{}, ErrNoTransactions
	}

	ev := func(v string, a ...any) {
		if args.EvHandler != nil {
			args.EvHandler(v, a...)
		}
	}

	if args.TimeStamp.IsZero() {
		args.TimeStamp = time.Now()
	}

	data, err := EncodeTrans(args.Trans)
	if err != nil {
		return Block{}, err
	}

	trans := make([]Tx, len(args.Trans))
	copy(trans, args.Trans)

	nb := Block{
		Index:        args.PrevBlock.Index + 1,
		Timestamp:    args.TimeStamp.UTC(),
		Transactions: trans,
		PreviousHash: args.PrevBlock.Hash,
	}

	ev("database: POW: MINING: started: blk[%d]: trans[%d]: difficulty[%d]: workers[%d]", nb.Index, len(trans), args.Difficulty, args.Workers)
	defer ev("database: POW: MINING: completed: blk[%d]", nb.Index)

	var nonce uint64
	var hash string

	switch {
	case args.Workers <= 1:
		nonce, hash, err = search(ctx, args.Hasher.NewSearcher(nb.Index, data, nb.PreviousHash), args.Difficulty, 0, 1, ev)
	default:
		nonce, hash, err = parallelSearch(ctx, args, nb, data, ev)
	}

	if err != nil {
		if ctx.Err() != nil {
			ev("database: POW: MINING: CANCELLED: blk[%d]", nb.Index)
		}
		return Block{}, err
	}

	nb.Nonce = nonce
	nb.Hash = hash

	ev("database: POW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: nonce[%d]", nb.PreviousHash, nb.Hash, nb.Nonce)

	return nb, nil
}

// parallelSearch stripes the nonce space across the configured number of
// workers. The first worker to find a solution wins and the others are
// cancelled.
func parallelSearch(ctx context.Context, args POWArgs, nb Block, data []byte, ev func(v string, a ...any)) (uint64, string, error) {
	g, gctx := errgroup.WithContext(ctx)

	var once sync.Once
	var nonce uint64
	var hash string

	step := uint64(args.Workers)
	for w := 0; w < args.Workers; w++ {
		w := w
		g.Go(func() error {
			s := args.Hasher.NewSearcher(nb.Index, data, nb.PreviousHash)

			n, h, err := search(gctx, s, args.Difficulty, uint64(w), step, ev)
			if err != nil {
				return err
			}

			once.Do(func() {
				nonce = n
				hash = h
			})

			return errSolved
		})
	}

	if err := g.Wait(); !errors.Is(err, errSolved) {
		return 0, "", err
	}

	return nonce, hash, nil
}

// search scans the nonce space from start in increments of step until a
// hash that matches the difficulty is found.
func search(ctx context.Context, s *digest.Searcher, difficulty uint, start uint64, step uint64, ev func(v string, a ...any)) (uint64, string, error) {
	var attempts uint64
	for nonce := start; ; nonce += step {
		attempts++
		if attempts%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return 0, "", err
			}
			if attempts%1_000_000 == 0 {
				ev("database: POW: MINING: start[%d]: attempts[%d]", start, attempts)
			}
		}

		hash := s.Hash(nonce)
		if digest.Solved(difficulty, hash) {
			return nonce, hash, nil
		}

		if nonce > math.MaxUint64-step {
			return 0, "", ErrNonceExhausted
		}
	}
}
