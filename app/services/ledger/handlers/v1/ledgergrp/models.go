package ledgergrp

import (
	"time"

	"github.com/safeguard/fraudledger/business/sys/validate"
	"github.com/safeguard/fraudledger/foundation/blockchain/database"
)

// NewVerdict is the outcome of a fraud prediction sent by a client.
type NewVerdict struct {
	IsFraud     bool    `json:"is_fraud"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=1"`
	RiskScore   float64 `json:"risk_score" validate:"gte=0"`
	Explanation string  `json:"explanation" validate:"max=2048"`
}

// NewPrediction is what a client sends to log a prediction.
type NewPrediction struct {
	Type       string         `json:"type" validate:"required,max=64"`
	Input      map[string]any `json:"input"`
	Prediction NewVerdict     `json:"prediction"`
}

// Validate checks the data in the model is considered clean.
func (np NewPrediction) Validate() error {
	return validate.Check(np)
}

func (np NewPrediction) toTx() (database.Tx, error) {
	return database.NewPrediction(database.Prediction{
		Type:  np.Type,
		Input: np.Input,
		Verdict: database.Verdict{
			IsFraud:     np.Prediction.IsFraud,
			Confidence:  np.Prediction.Confidence,
			RiskScore:   np.Prediction.RiskScore,
			Explanation: np.Prediction.Explanation,
		},
	})
}

// NewFraudReport is what a client sends to report a fraud case.
type NewFraudReport struct {
	FraudType   string         `json:"fraud_type" validate:"required,max=64"`
	Description string         `json:"description" validate:"required,max=4096"`
	Evidence    map[string]any `json:"evidence"`
	ReporterID  string         `json:"reporter_id" validate:"max=128"`
}

// Validate checks the data in the model is considered clean.
func (nfr NewFraudReport) Validate() error {
	return validate.Check(nfr)
}

func (nfr NewFraudReport) toTx() (database.Tx, error) {
	return database.NewFraudReport(database.FraudReport{
		FraudType:   nfr.FraudType,
		Description: nfr.Description,
		Evidence:    nfr.Evidence,
		ReporterID:  nfr.ReporterID,
	})
}

// NewGeneric is what a client sends to record any other kind of event.
type NewGeneric struct {
	Type   string         `json:"type" validate:"required,max=64"`
	Fields map[string]any `json:"fields" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (ng NewGeneric) Validate() error {
	return validate.Check(ng)
}

func (ng NewGeneric) toTx() (database.Tx, error) {
	return database.NewTx(database.Kind(ng.Type), ng.Fields)
}

// =============================================================================

// TxResponse is returned when a transaction was accepted.
type TxResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
	BlockIndex *uint64   `json:"block_index,omitempty"`
	Warning    string    `json:"warning,omitempty"`
}

// SealResponse is returned by a seal request.
type SealResponse struct {
	Status  string          `json:"status"`
	Block   *database.Block `json:"block,omitempty"`
	Warning string          `json:"warning,omitempty"`
}

// Page is a page of query results.
type Page[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
