package database_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/safeguard/fraudledger/foundation/blockchain/database"
	"github.com/safeguard/fraudledger/foundation/blockchain/digest"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var now = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// =============================================================================

func Test_POW(t *testing.T) {
	type table struct {
		name       string
		difficulty uint
		workers    int
	}

	tt := []table{
		{name: "zero", difficulty: 0, workers: 1},
		{name: "sequential", difficulty: 2, workers: 1},
		{name: "parallel", difficulty: 2, workers: 4},
	}

	hasher := digest.Default()

	t.Log("Given the need to seal transactions into a block.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen sealing with difficulty %d and %d workers.", testID, tst.difficulty, tst.workers)
				{
					genesis := database.Genesis(hasher, now)
					trans := newTrans(t, 3)

					block, err := database.POW(context.Background(), database.POWArgs{
						Hasher:     hasher,
						Difficulty: tst.difficulty,
						PrevBlock:  genesis,
						Trans:      trans,
						Workers:    tst.workers,
						TimeStamp:  now,
					})
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to seal a block: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to seal a block.", success, testID)

					if block.Index != 1 || block.PreviousHash != genesis.Hash {
						t.Fatalf("\t%s\tTest %d:\tShould link to the genesis block: idx %d prev %s", failed, testID, block.Index, block.PreviousHash)
					}
					t.Logf("\t%s\tTest %d:\tShould link to the genesis block.", success, testID)

					if !digest.Solved(tst.difficulty, block.Hash) {
						t.Fatalf("\t%s\tTest %d:\tShould have a hash that solves the difficulty: %s", failed, testID, block.Hash)
					}
					t.Logf("\t%s\tTest %d:\tShould have a hash that solves the difficulty.", success, testID)

					hash, err := block.ComputeHash(hasher)
					if err != nil || hash != block.Hash {
						t.Fatalf("\t%s\tTest %d:\tShould be able to recompute the same hash: %s %v", failed, testID, hash, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to recompute the same hash.", success, testID)

					if tst.workers <= 1 {
						for nonce := uint64(0); nonce < block.Nonce; nonce++ {
							h, _ := database.Digest(hasher, block.Index, block.Transactions, block.PreviousHash, nonce)
							if digest.Solved(tst.difficulty, h) {
								t.Fatalf("\t%s\tTest %d:\tShould find the first nonce in sequence, %d also solves.", failed, testID, nonce)
							}
						}
						t.Logf("\t%s\tTest %d:\tShould find the first nonce in sequence.", success, testID)
					}
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_POWNoTransactions(t *testing.T) {
	t.Log("Given the need to refuse sealing an empty pool.")
	{
		_, err := database.POW(context.Background(), database.POWArgs{
			Hasher:    digest.Default(),
			PrevBlock: database.Genesis(digest.Default(), now),
		})
		if !errors.Is(err, database.ErrNoTransactions) {
			t.Fatalf("\t%s\tShould get ErrNoTransactions: %v", failed, err)
		}
		t.Logf("\t%s\tShould get ErrNoTransactions.", success)
	}
}

func Test_POWCancel(t *testing.T) {
	t.Log("Given the need to cancel a long running seal.")
	{
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		for _, workers := range []int{1, 3} {
			_, err := database.POW(ctx, database.POWArgs{
				Hasher:     digest.Default(),
				Difficulty: 64,
				PrevBlock:  database.Genesis(digest.Default(), now),
				Trans:      newTrans(t, 1),
				Workers:    workers,
			})
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("\t%s\tShould get a deadline error with %d workers: %v", failed, workers, err)
			}
			t.Logf("\t%s\tShould get a deadline error with %d workers.", success, workers)
		}
	}
}

// =============================================================================

func Test_VerifyChain(t *testing.T) {
	type table struct {
		name   string
		tamper func(b *database.Block)
	}

	tt := []table{
		{name: "transactions", tamper: func(b *database.Block) { b.Transactions = b.Transactions[1:] }},
		{name: "payload", tamper: func(b *database.Block) { b.Transactions[0].FraudReport.Description = "changed" }},
		{name: "nonce", tamper: func(b *database.Block) { b.Nonce++ }},
		{name: "previous_hash", tamper: func(b *database.Block) { b.PreviousHash = "abc" }},
		{name: "hash", tamper: func(b *database.Block) { b.Hash = "0000" + b.Hash[4:] + "x" }},
		{name: "index", tamper: func(b *database.Block) { b.Index += 10 }},
	}

	hasher := digest.Default()

	t.Log("Given the need to detect tampering of the chain.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				chain := newChain(t, hasher, 4)

				v := database.VerifyChain(hasher, chain)
				if !v.Valid || v.FirstBadIndex != nil {
					t.Fatalf("\t%s\tTest %d:\tShould verify an untouched chain: %+v", failed, testID, v)
				}
				t.Logf("\t%s\tTest %d:\tShould verify an untouched chain.", success, testID)

				for i := 1; i < len(chain); i++ {
					tampered := deepCopy(t, chain)
					tst.tamper(&tampered[i])

					v := database.VerifyChain(hasher, tampered)
					if v.Valid || v.FirstBadIndex == nil || *v.FirstBadIndex != i {
						t.Fatalf("\t%s\tTest %d:\tShould report block %d after tampering its %s: %+v", failed, testID, i, tst.name, v)
					}
					t.Logf("\t%s\tTest %d:\tShould report block %d after tampering its %s.", success, testID, i, tst.name)

					if again := database.VerifyChain(hasher, tampered); again.Valid != v.Valid || *again.FirstBadIndex != *v.FirstBadIndex {
						t.Fatalf("\t%s\tTest %d:\tShould get the same result verifying twice.", failed, testID)
					}
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_VerifyGenesis(t *testing.T) {
	hasher := digest.Default()

	t.Log("Given the need to check the genesis block.")
	{
		chain := []database.Block{database.Genesis(hasher, now)}

		if v := database.VerifyChain(hasher, chain); !v.Valid {
			t.Fatalf("\t%s\tShould verify a lone genesis block: %+v", failed, v)
		}
		t.Logf("\t%s\tShould verify a lone genesis block.", success)

		chain[0].Hash = "ff" + chain[0].Hash[2:]
		if v := database.VerifyChain(hasher, chain); v.Valid || *v.FirstBadIndex != 0 {
			t.Fatalf("\t%s\tShould reject a genesis block with a bad hash: %+v", failed, v)
		}
		t.Logf("\t%s\tShould reject a genesis block with a bad hash.", success)

		if v := database.VerifyChain(hasher, nil); v.Valid {
			t.Fatalf("\t%s\tShould reject an empty chain.", failed)
		}
		t.Logf("\t%s\tShould reject an empty chain.", success)
	}
}

// =============================================================================

func Test_Transactions(t *testing.T) {
	t.Log("Given the need to encode transactions canonically.")
	{
		fr, err := database.NewFraudReport(database.FraudReport{
			FraudType:   "phishing",
			Description: "fake bank sms",
			Evidence:    map[string]any{"sender": "+100", "count": 3, "score": 0.25},
			ReporterID:  "user-1",
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a fraud report: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to construct a fraud report.", success)

		fr.ID = "abc"
		fr.Timestamp = now

		canon, err := database.Canonicalize(fr)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to canonicalize: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to canonicalize.", success)

		d1, _ := json.Marshal(fr)
		d2, _ := json.Marshal(canon)
		if !bytes.Equal(d1, d2) {
			t.Fatalf("\t%s\tShould encode the same bytes after canonicalizing:\n%s\n%s", failed, d1, d2)
		}
		t.Logf("\t%s\tShould encode the same bytes after canonicalizing.", success)

		exp := `{"description":"fake bank sms","evidence":{"count":3,"score":0.25,"sender":"+100"},"fraud_type":"phishing","id":"abc","reporter_id":"user-1","timestamp":"2024-03-01T12:00:00Z","type":"fraud_report"}`
		if string(d2) != exp {
			t.Fatalf("\t%s\tShould produce a flat envelope with sorted keys:\ngot %s\nexp %s", failed, d2, exp)
		}
		t.Logf("\t%s\tShould produce a flat envelope with sorted keys.", success)

		if !canon.HighPriority() || canon.FraudReport.ReporterID != "user-1" {
			t.Fatalf("\t%s\tShould decode back into a high priority fraud report.", failed)
		}
		t.Logf("\t%s\tShould decode back into a high priority fraud report.", success)

		gen, err := database.NewTx("audit", map[string]any{"action": "login", "attempts": 2})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a generic transaction: %v", failed, err)
		}
		gen.ID = "def"
		gen.Timestamp = now

		canon, err = database.Canonicalize(gen)
		if err != nil || canon.Kind != "audit" || canon.Fields["action"] != "login" {
			t.Fatalf("\t%s\tShould round trip a generic transaction: %+v %v", failed, canon, err)
		}
		t.Logf("\t%s\tShould round trip a generic transaction.", success)

		if _, err := database.NewTx("audit", map[string]any{"id": "x"}); err == nil {
			t.Fatalf("\t%s\tShould reject reserved fields.", failed)
		}
		t.Logf("\t%s\tShould reject reserved fields.", success)

		if _, err := database.NewTx(database.KindPrediction, nil); err == nil {
			t.Fatalf("\t%s\tShould reject known kinds through the generic constructor.", failed)
		}
		t.Logf("\t%s\tShould reject known kinds through the generic constructor.", success)
	}
}

func Test_Document(t *testing.T) {
	hasher := digest.Default()

	t.Log("Given the need to persist the ledger document.")
	{
		chain := newChain(t, hasher, 3)
		pending := newTrans(t, 2)

		stats, v := database.ComputeStats(hasher, chain, len(pending))
		if !v.Valid || stats.TotalBlocks != 3 || stats.TotalTransactions != 4 || stats.ChainIntegrity != database.IntegrityVerified {
			t.Fatalf("\t%s\tShould compute the stats: %+v", failed, stats)
		}
		t.Logf("\t%s\tShould compute the stats.", success)

		doc := database.Document{
			Chain:               chain,
			PendingTransactions: pending,
			NetworkInfo: database.NetworkInfo{
				Name:             "test",
				Version:          "1.0.0",
				GenesisTimestamp: chain[0].Timestamp,
				Difficulty:       1,
				HashAlgorithm:    hasher.Name(),
			},
			Stats: stats,
		}

		data, err := database.EncodeDocument(doc)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode the document: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to encode the document.", success)

		doc2, err := database.DecodeDocument(data)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to decode the document: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to decode the document.", success)

		data2, err := database.EncodeDocument(doc2)
		if err != nil || !bytes.Equal(data, data2) {
			t.Fatalf("\t%s\tShould encode the decoded document to the same bytes.", failed)
		}
		t.Logf("\t%s\tShould encode the decoded document to the same bytes.", success)

		if v := database.VerifyChain(hasher, doc2.Chain); !v.Valid {
			t.Fatalf("\t%s\tShould verify the decoded chain: %+v", failed, v)
		}
		t.Logf("\t%s\tShould verify the decoded chain.", success)

		if _, err := database.DecodeDocument([]byte(`{"chain":[]}`)); err == nil {
			t.Fatalf("\t%s\tShould reject a document without a genesis block.", failed)
		}
		t.Logf("\t%s\tShould reject a document without a genesis block.", success)
	}
}

// =============================================================================

func newTrans(t *testing.T, n int) []database.Tx {
	t.Helper()

	trans := make([]database.Tx, 0, n)
	for i := 0; i < n; i++ {
		tx, err := database.NewFraudReport(database.FraudReport{
			FraudType:   "scam",
			Description: fmt.Sprintf("report %d", i),
			Evidence:    map[string]any{"n": i},
		})
		if err != nil {
			t.Fatalf("unable to build tx: %v", err)
		}
		tx.ID = fmt.Sprintf("tx%02d", i)
		tx.Timestamp = now

		tx, err = database.Canonicalize(tx)
		if err != nil {
			t.Fatalf("unable to canonicalize tx: %v", err)
		}
		trans = append(trans, tx)
	}

	return trans
}

func newChain(t *testing.T, hasher digest.Hasher, length int) []database.Block {
	t.Helper()

	chain := []database.Block{database.Genesis(hasher, now)}
	for len(chain) < length {
		block, err := database.POW(context.Background(), database.POWArgs{
			Hasher:     hasher,
			Difficulty: 1,
			PrevBlock:  chain[len(chain)-1],
			Trans:      newTrans(t, 2),
			TimeStamp:  now,
		})
		if err != nil {
			t.Fatalf("unable to seal block: %v", err)
		}
		chain = append(chain, block)
	}

	return chain
}

func deepCopy(t *testing.T, chain []database.Block) []database.Block {
	t.Helper()

	data, err := json.Marshal(chain)
	if err != nil {
		t.Fatalf("unable to copy chain: %v", err)
	}

	var out []database.Block
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unable to copy chain: %v", err)
	}

	return out
}
