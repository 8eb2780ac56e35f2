package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PredictionType is the direction a user is betting on.
type PredictionType string

const (
	PredictionBullish PredictionType = "bullish"
	PredictionBearish PredictionType = "bearish"
)

// Valid reports whether t is a known prediction type.
func (t PredictionType) Valid() bool {
	return t == PredictionBullish || t == PredictionBearish
}

// Prediction represents a user's directional bet on a stock
type Prediction struct {
	ID          int              `json:"id"`
	UserID      int              `json:"user_id"`
	StockID     int              `json:"stock_id"`
	StockSymbol string           `json:"stock_symbol,omitempty"` // populated on joined reads
	Type        PredictionType   `json:"prediction_type"`
	TargetPrice *decimal.Decimal `json:"target_price,omitempty"`
	Reasoning   string           `json:"reasoning"`
	Active      bool             `json:"active"`
	Accuracy    *decimal.Decimal `json:"accuracy,omitempty"` // nil until evaluated
	CreatedAt   time.Time        `json:"created_at"`
	EndDate     time.Time        `json:"end_date"`
}

// Evaluated reports whether the prediction has been scored.
func (p *Prediction) Evaluated() bool {
	return p.Accuracy != nil
}

// EvaluationSummary holds the result counts of one scoring batch run.
type EvaluationSummary struct {
	Total     int `json:"total"`
	Evaluated int `json:"evaluated"`
	Errors    int `json:"errors"`
}

// PredictionEvaluatedEvent represents a Kafka event emitted after a
// prediction has been scored.
type PredictionEvaluatedEvent struct {
	EventType       string          `json:"event_type"`
	PredictionID    int             `json:"prediction_id"`
	UserID          int             `json:"user_id"`
	Symbol          string          `json:"symbol"`
	Accuracy        decimal.Decimal `json:"accuracy"`
	ReputationDelta int             `json:"reputation_delta"`
	Timestamp       time.Time       `json:"timestamp"`
}
