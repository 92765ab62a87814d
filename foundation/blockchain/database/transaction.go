package database

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Kind identifies the type of record a transaction carries.
type Kind string

// Set of known transaction kinds. Any other non-empty kind is accepted as a
// generic record whose fields are stored as is.
const (
	KindPrediction  Kind = "prediction"
	KindFraudReport Kind = "fraud_report"
)

// Keys owned by the transaction envelope.
const (
	keyID        = "id"
	keyType      = "type"
	keyTimestamp = "timestamp"
)

// =============================================================================

// Verdict is the outcome of a fraud prediction.
type Verdict struct {
	IsFraud     bool    `json:"is_fraud"`
	Confidence  float64 `json:"confidence"`
	RiskScore   float64 `json:"risk_score"`
	Explanation string  `json:"explanation,omitempty"`
}

// Prediction represents a logged fraud prediction. Type is the channel that
// was scanned (sms, url, website, transaction) and Input holds what was
// scanned.
type Prediction struct {
	Type    string         `json:"type"`
	Input   map[string]any `json:"input,omitempty"`
	Verdict Verdict        `json:"prediction"`
}

// FraudReport represents a fraud case reported by a user.
type FraudReport struct {
	FraudType   string         `json:"fraud_type"`
	Description string         `json:"description"`
	Evidence    map[string]any `json:"evidence"`
	ReporterID  string         `json:"reporter_id,omitempty"`
}

// Tx is a single record in the ledger. Exactly one payload is set based on
// the Kind. Generic kinds only use Fields.
type Tx struct {
	ID          string
	Kind        Kind
	Timestamp   time.Time
	Prediction  *Prediction
	FraudReport *FraudReport
	Fields      map[string]any
}

// NewPrediction constructs a prediction transaction.
func NewPrediction(p Prediction) (Tx, error) {
	if p.Type == "" {
		return Tx{}, errors.New("prediction type is required")
	}

	for _, f := range []float64{p.Verdict.Confidence, p.Verdict.RiskScore} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Tx{}, errors.New("prediction scores must be finite")
		}
	}

	tx := Tx{
		Kind:       KindPrediction,
		Prediction: &p,
	}

	return tx, nil
}

// NewFraudReport constructs a fraud report transaction.
func NewFraudReport(fr FraudReport) (Tx, error) {
	if fr.FraudType == "" {
		return Tx{}, errors.New("fraud type is required")
	}

	if fr.Description == "" {
		return Tx{}, errors.New("fraud description is required")
	}

	if fr.Evidence == nil {
		fr.Evidence = map[string]any{}
	}

	tx := Tx{
		Kind:        KindFraudReport,
		FraudReport: &fr,
	}

	return tx, nil
}

// NewTx constructs a generic transaction for kinds the ledger has no
// dedicated payload for.
func NewTx(kind Kind, fields map[string]any) (Tx, error) {
	switch kind {
	case "":
		return Tx{}, errors.New("transaction type is required")
	case KindPrediction, KindFraudReport:
		return Tx{}, fmt.Errorf("transaction type %q has a dedicated constructor", kind)
	}

	for _, key := range []string{keyID, keyType, keyTimestamp} {
		if _, exists := fields[key]; exists {
			return Tx{}, fmt.Errorf("field %q is reserved", key)
		}
	}

	tx := Tx{
		Kind: kind,
	}

	if len(fields) > 0 {
		tx.Fields = make(map[string]any, len(fields))
		for k, v := range fields {
			tx.Fields[k] = v
		}
	}

	return tx, nil
}

// HighPriority reports whether the transaction should be sealed immediately
// instead of waiting for a full batch.
func (tx Tx) HighPriority() bool {
	return tx.Kind == KindFraudReport
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:%s", tx.Kind, tx.ID)
}

// =============================================================================

// MarshalJSON writes the transaction as a flat envelope. The payload fields
// sit next to the id, type and timestamp. Keys are written in sorted order so
// the output is the canonical form used for hashing.
func (tx Tx) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(tx.Fields)+7)
	for k, v := range tx.Fields {
		m[k] = v
	}

	switch tx.Kind {
	case KindPrediction:
		if tx.Prediction == nil {
			return nil, fmt.Errorf("tx %s: prediction payload missing", tx.ID)
		}
		m["data"] = tx.Prediction

	case KindFraudReport:
		if tx.FraudReport == nil {
			return nil, fmt.Errorf("tx %s: fraud report payload missing", tx.ID)
		}
		m["fraud_type"] = tx.FraudReport.FraudType
		m["description"] = tx.FraudReport.Description
		m["evidence"] = tx.FraudReport.Evidence
		if tx.FraudReport.ReporterID != "" {
			m["reporter_id"] = tx.FraudReport.ReporterID
		}
	}

	m[keyID] = tx.ID
	m[keyType] = tx.Kind
	m[keyTimestamp] = tx.Timestamp.UTC()

	return json.Marshal(m)
}

// UnmarshalJSON reads the flat envelope back into the tagged payload. Numbers
// inside free form maps are kept as json.Number so they encode back to the
// exact same text.
func (tx *Tx) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var ntx Tx
	var kind string

	if err := take(raw, keyID, &ntx.ID, true); err != nil {
		return err
	}
	if err := take(raw, keyType, &kind, true); err != nil {
		return err
	}
	if err := take(raw, keyTimestamp, &ntx.Timestamp, true); err != nil {
		return err
	}
	ntx.Kind = Kind(kind)

	switch ntx.Kind {
	case "":
		return errors.New("tx: empty type")

	case KindPrediction:
		var p Prediction
		if err := take(raw, "data", &p, true); err != nil {
			return err
		}
		ntx.Prediction = &p

	case KindFraudReport:
		var fr FraudReport
		if err := take(raw, "fraud_type", &fr.FraudType, true); err != nil {
			return err
		}
		if err := take(raw, "description", &fr.Description, true); err != nil {
			return err
		}
		if err := take(raw, "evidence", &fr.Evidence, false); err != nil {
			return err
		}
		if err := take(raw, "reporter_id", &fr.ReporterID, false); err != nil {
			return err
		}
		ntx.FraudReport = &fr
	}

	if len(raw) > 0 {
		ntx.Fields = make(map[string]any, len(raw))
		for k := range raw {
			var v any
			if err := take(raw, k, &v, true); err != nil {
				return err
			}
			ntx.Fields[k] = v
		}
	}

	*tx = ntx
	return nil
}

// take decodes and removes the specified key from the raw envelope.
func take(raw map[string]json.RawMessage, key string, v any, required bool) error {
	data, exists := raw[key]
	if !exists {
		if required {
			return fmt.Errorf("tx: missing field %q", key)
		}
		return nil
	}
	delete(raw, key)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("tx: field %q: %w", key, err)
	}

	return nil
}

// =============================================================================

// Canonicalize returns the transaction in the exact form it will have after
// being written to and read back from storage. It fails if the payload can't
// be serialized.
func Canonicalize(tx Tx) (Tx, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return Tx{}, fmt.Errorf("canonicalize: %w", err)
	}

	var out Tx
	if err := json.Unmarshal(data, &out); err != nil {
		return Tx{}, fmt.Errorf("canonicalize: %w", err)
	}

	return out, nil
}

// EncodeTrans returns the canonical encoding of the transaction list that
// goes into a block digest. An empty list always encodes as [].
func EncodeTrans(trans []Tx) ([]byte, error) {
	if len(trans) == 0 {
		return []byte("[]"), nil
	}

	return json.Marshal(trans)
}
