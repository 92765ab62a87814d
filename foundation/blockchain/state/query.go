package state

import (
	"time"

	"github.com/safeguard/fraudledger/foundation/blockchain/database"
)

// Set of values reported in the network status.
const (
	StatusActive    = "active"
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	DefaultPageSize = 100
)

// TxLookup is a sealed transaction and the block that holds it.
type TxLookup struct {
	Tx         database.Tx `json:"transaction"`
	BlockIndex uint64      `json:"block_index"`
	BlockHash  string      `json:"block_hash"`
}

// FraudReportView is the reduced form of a sealed fraud report.
type FraudReportView struct {
	ID          string    `json:"id"`
	FraudType   string    `json:"fraud_type"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	BlockIndex  uint64    `json:"block_index"`
}

// PredictionView is the reduced form of a sealed prediction.
type PredictionView struct {
	ID             string    `json:"id"`
	PredictionType string    `json:"prediction_type"`
	IsFraud        bool      `json:"is_fraud"`
	Confidence     float64   `json:"confidence"`
	Timestamp      time.Time `json:"timestamp"`
	BlockIndex     uint64    `json:"block_index"`
}

// Stats are the ledger stats together with the verification they were
// derived from.
type Stats struct {
	database.Stats
	Verification database.Verification `json:"verification"`
}

// NetworkStatus is a summary of the ledger health.
type NetworkStatus struct {
	Status              string `json:"status"`
	ChainLength         int    `json:"chain_length"`
	PendingTransactions int    `json:"pending_transactions"`
	LastBlockHash       string `json:"last_block_hash"`
	NetworkHealth       string `json:"network_health"`
	IntegrityVerified   bool   `json:"integrity_verified"`
	Difficulty          uint   `json:"difficulty"`
}

// =============================================================================

// QueryTransaction finds a sealed transaction by id. Pending transactions
// are not returned.
func (s *State) QueryTransaction(id string) (TxLookup, bool) {
	for _, block := range s.chainSnapshot() {
		for _, tx := range block.Transactions {
			if tx.ID == id {
				return TxLookup{Tx: tx, BlockIndex: block.Index, BlockHash: block.Hash}, true
			}
		}
	}

	return TxLookup{}, false
}

// QueryFraudReports returns the sealed fraud reports in chain order. The
// offset and limit apply to the fraud reports only.
func (s *State) QueryFraudReports(limit int, offset int) []FraudReportView {
	views := []FraudReportView{}

	page := newPager(limit, offset)
	for _, block := range s.chainSnapshot() {
		for _, tx := range block.Transactions {
			if tx.Kind != database.KindFraudReport || tx.FraudReport == nil {
				continue
			}

			switch page.next() {
			case pageSkip:
				continue
			case pageDone:
				return views
			}

			views = append(views, FraudReportView{
				ID:          tx.ID,
				FraudType:   tx.FraudReport.FraudType,
				Description: tx.FraudReport.Description,
				Timestamp:   tx.Timestamp,
				BlockIndex:  block.Index,
			})
		}
	}

	return views
}

// QueryPredictions returns the sealed predictions in chain order. The offset
// and limit apply to the predictions only.
func (s *State) QueryPredictions(limit int, offset int) []PredictionView {
	views := []PredictionView{}

	page := newPager(limit, offset)
	for _, block := range s.chainSnapshot() {
		for _, tx := range block.Transactions {
			if tx.Kind != database.KindPrediction || tx.Prediction == nil {
				continue
			}

			switch page.next() {
			case pageSkip:
				continue
			case pageDone:
				return views
			}

			views = append(views, PredictionView{
				ID:             tx.ID,
				PredictionType: tx.Prediction.Type,
				IsFraud:        tx.Prediction.Verdict.IsFraud,
				Confidence:     tx.Prediction.Verdict.Confidence,
				Timestamp:      tx.Timestamp,
				BlockIndex:     block.Index,
			})
		}
	}

	return views
}

// QueryStats counts the transactions in the ledger and verifies the chain.
func (s *State) QueryStats() Stats {
	s.mu.RLock()
	chain := s.chain[:len(s.chain):len(s.chain)]
	pending := len(s.inflight) + s.mempool.Count()
	s.mu.RUnlock()

	stats, v := database.ComputeStats(s.hasher, chain, pending)

	return Stats{
		Stats:        stats,
		Verification: v,
	}
}

// QueryNetworkStatus returns a summary of the ledger health.
func (s *State) QueryNetworkStatus() NetworkStatus {
	s.mu.RLock()
	chain := s.chain[:len(s.chain):len(s.chain)]
	pending := len(s.inflight) + s.mempool.Count()
	s.mu.RUnlock()

	v := database.VerifyChain(s.hasher, chain)

	health := HealthHealthy
	if !v.Valid {
		health = HealthDegraded
	}

	return NetworkStatus{
		Status:              StatusActive,
		ChainLength:         len(chain),
		PendingTransactions: pending,
		LastBlockHash:       chain[len(chain)-1].Hash,
		NetworkHealth:       health,
		IntegrityVerified:   v.Valid,
		Difficulty:          s.difficulty,
	}
}

// VerifyChain checks the hash linkage of the whole chain.
func (s *State) VerifyChain() database.Verification {
	return database.VerifyChain(s.hasher, s.chainSnapshot())
}

// QueryMempoolLength returns the number of transactions waiting to be sealed.
func (s *State) QueryMempoolLength() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.inflight) + s.mempool.Count()
}

// =============================================================================

// chainSnapshot returns the chain as it is right now. Blocks are immutable
// so the result can be read without holding the lock.
func (s *State) chainSnapshot() []database.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain[:len(s.chain):len(s.chain)]
}

// Set of results from the pager.
const (
	pageTake = iota
	pageSkip
	pageDone
)

// pager applies offset and limit to a stream of matching items. The skip
// and take counts are kept apart so a large limit can't overflow.
type pager struct {
	offset  int
	limit   int
	skipped int
	taken   int
}

func newPager(limit int, offset int) *pager {
	if offset < 0 {
		offset = 0
	}

	return &pager{offset: offset, limit: limit}
}

func (p *pager) next() int {
	if p.limit <= 0 || p.taken >= p.limit {
		return pageDone
	}

	if p.skipped < p.offset {
		p.skipped++
		return pageSkip
	}

	p.taken++
	return pageTake
}
