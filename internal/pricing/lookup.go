// Package pricing answers "what did this stock close at on or before a
// given date". It is a pure read layer over the price store.
package pricing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/prediction-service/internal/database"
	"github.com/trogers1052/prediction-service/internal/models"
)

var (
	// ErrStockNotFound means the symbol does not resolve to a stock.
	ErrStockNotFound = database.ErrStockNotFound
	// ErrNoPriceData means the stock exists but has no recorded prices.
	ErrNoPriceData = database.ErrNoPriceData
)

// PriceStore is the subset of the database the lookup needs.
type PriceStore interface {
	GetStock(symbol string) (*models.Stock, error)
	GetCloseAtOrBefore(stockID int, date time.Time) (decimal.Decimal, error)
	GetLatestClose(stockID int) (decimal.Decimal, error)
}

// Lookup resolves closing prices by symbol and date.
type Lookup struct {
	store PriceStore
}

// NewLookup creates a price lookup over the given store.
func NewLookup(store PriceStore) *Lookup {
	return &Lookup{store: store}
}

// PriceAtOrBefore returns the closing price for symbol on the most recent
// trading day at or before date. The symbol is case-insensitive and the
// date is truncated to day granularity. If no price row exists at or
// before the date (history started recording later), the latest known
// price is returned instead; ErrNoPriceData only means the stock has no
// price rows at all.
func (l *Lookup) PriceAtOrBefore(symbol string, date time.Time) (decimal.Decimal, error) {
	stock, err := l.store.GetStock(strings.ToUpper(symbol))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to resolve symbol %s: %w", symbol, err)
	}

	day := truncateToDay(date)

	close, err := l.store.GetCloseAtOrBefore(stock.ID, day)
	if err == nil {
		return close, nil
	}
	if !errors.Is(err, ErrNoPriceData) {
		return decimal.Zero, err
	}

	// Requested date predates all recorded history; fall back to the
	// latest known price.
	close, err = l.store.GetLatestClose(stock.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return close, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
