package run

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"reviewguard/domain/core"
)

// Status is the outcome of a persisted run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Params are the knobs one training run was executed with.
type Params struct {
	Algorithm     string  `json:"algorithm"`
	Threshold     float64 `json:"threshold"`
	MaxIterations int     `json:"max_iterations"`
	TestFraction  float64 `json:"test_fraction"`
	Seed          int64   `json:"seed"`
	PositiveLabel string  `json:"positive_label"`
}

// Value stores params as a JSON column.
func (p Params) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *Params) Scan(value interface{}) error {
	return scanJSON(value, p)
}

// Confusion is a 2x2 confusion matrix: rows are true labels, columns are
// predictions, index 0 is the negative class.
type Confusion [2][2]int

// Value stores the matrix as a JSON column.
func (c Confusion) Value() (driver.Value, error) {
	b, err := json.Marshal([2][2]int(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *Confusion) Scan(value interface{}) error {
	return scanJSON(value, c)
}

// History is the per-iteration bookkeeping of a run.
type History []IterationSummary

// Value stores the history as a JSON column.
func (h History) Value() (driver.Value, error) {
	if h == nil {
		h = History{}
	}
	b, err := json.Marshal([]IterationSummary(h))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (h *History) Scan(value interface{}) error {
	return scanJSON(value, h)
}

func scanJSON(value interface{}, dest interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into %T", value, dest)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// Record is the persisted summary of one self-training run.
type Record struct {
	ID               core.RunID `json:"id" db:"id"`
	Algorithm        string     `json:"algorithm" db:"algorithm"`
	Params           Params     `json:"params" db:"params"`
	Status           Status     `json:"status" db:"status"`
	TerminalState    string     `json:"terminal_state" db:"terminal_state"`
	Iterations       int        `json:"iterations" db:"iterations"`
	Promoted         int        `json:"promoted" db:"promoted"`
	TrainingSize     int        `json:"training_size" db:"training_size"`
	HeldOutSize      int        `json:"held_out_size" db:"held_out_size"`
	EvaluationSize   int        `json:"evaluation_size" db:"evaluation_size"`
	Accuracy         float64    `json:"accuracy" db:"accuracy"`
	Precision        float64    `json:"precision" db:"precision_score"`
	Recall           float64    `json:"recall" db:"recall"`
	F1               float64    `json:"f1" db:"f1"`
	Confusion        Confusion  `json:"confusion_matrix" db:"confusion_matrix"`
	History          History    `json:"history" db:"history"`
	TableFingerprint core.Hash  `json:"table_fingerprint" db:"table_fingerprint"`
	Fingerprint      core.Hash  `json:"fingerprint" db:"fingerprint"`
	Error            string     `json:"error,omitempty" db:"error"`
	DurationMs       int64      `json:"duration_ms" db:"duration_ms"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// NewRunFingerprint hashes everything that determines a run's outcome: the
// table contents and every parameter. Two runs with the same fingerprint and a
// deterministic classifier produce identical metrics.
func NewRunFingerprint(params Params, tableHash core.Hash) core.Hash {
	data := fmt.Sprintf("table:%s|algorithm:%s|threshold:%g|iterations:%d|test_fraction:%g|seed:%d|positive:%s",
		tableHash, params.Algorithm, params.Threshold, params.MaxIterations, params.TestFraction, params.Seed, params.PositiveLabel)

	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}
