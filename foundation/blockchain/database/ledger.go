package database

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/safeguard/fraudledger/foundation/blockchain/digest"
)

// Set of chain integrity values reported in the stats.
const (
	IntegrityVerified    = "verified"
	IntegrityCompromised = "compromised"
)

// NetworkInfo is the ledger metadata written next to the chain.
type NetworkInfo struct {
	Name             string    `json:"name"`
	Version          string    `json:"version"`
	GenesisTimestamp time.Time `json:"genesis_timestamp"`
	Difficulty       uint      `json:"difficulty"`
	MiningReward     uint64    `json:"mining_reward"`
	HashAlgorithm    string    `json:"hash_algorithm"`
}

// Stats are derived counts over the chain and the pending pool.
type Stats struct {
	TotalBlocks         int    `json:"total_blocks"`
	TotalTransactions   int    `json:"total_transactions"`
	FraudReports        int    `json:"fraud_reports"`
	Predictions         int    `json:"predictions"`
	Other               int    `json:"other"`
	PendingTransactions int    `json:"pending_transactions"`
	ChainIntegrity      string `json:"chain_integrity"`
}

// Document is the persisted form of the whole ledger. The stats are derived
// and are never read back as the source of truth.
type Document struct {
	Chain               []Block     `json:"chain"`
	PendingTransactions []Tx        `json:"pending_transactions"`
	NetworkInfo         NetworkInfo `json:"network_info"`
	Stats               Stats       `json:"stats"`
}

// ComputeStats counts the transactions by kind and runs the chain
// verification.
func ComputeStats(hasher digest.Hasher, chain []Block, pending int) (Stats, Verification) {
	v := VerifyChain(hasher, chain)

	return CountStats(chain, pending, v), v
}

// CountStats counts the transactions by kind and reports the integrity from
// a verification that was already run.
func CountStats(chain []Block, pending int, v Verification) Stats {
	stats := Stats{
		TotalBlocks:         len(chain),
		PendingTransactions: pending,
	}

	for _, block := range chain {
		stats.TotalTransactions += len(block.Transactions)

		for _, tx := range block.Transactions {
			switch tx.Kind {
			case KindFraudReport:
				stats.FraudReports++
			case KindPrediction:
				stats.Predictions++
			default:
				stats.Other++
			}
		}
	}

	stats.ChainIntegrity = IntegrityCompromised
	if v.Valid {
		stats.ChainIntegrity = IntegrityVerified
	}

	return stats
}

// =============================================================================

// EncodeDocument serializes the ledger in a human readable form.
func EncodeDocument(doc Document) ([]byte, error) {
	if doc.PendingTransactions == nil {
		doc.PendingTransactions = []Tx{}
	}

	return json.MarshalIndent(doc, "", "  ")
}

// DecodeDocument reconstructs the ledger from its serialized form.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, err
	}

	if len(doc.Chain) == 0 {
		return Document{}, errors.New("ledger document has no genesis block")
	}

	for i := range doc.Chain {
		if doc.Chain[i].Transactions == nil {
			doc.Chain[i].Transactions = []Tx{}
		}
	}

	if doc.PendingTransactions == nil {
		doc.PendingTransactions = []Tx{}
	}

	return doc, nil
}
