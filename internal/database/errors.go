package database

import "errors"

// Sentinel errors for callers that need to distinguish "missing" from
// "broken". Wrapped with fmt.Errorf at the call sites, check with errors.Is.
var (
	ErrStockNotFound    = errors.New("stock not found")
	ErrNoPriceData      = errors.New("no price data")
	ErrUserNotFound     = errors.New("user not found")
	ErrPredictionNotFound = errors.New("prediction not found")
	ErrAlreadyEvaluated = errors.New("prediction already evaluated")
)
