package pricing

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/prediction-service/internal/models"
)

type storeCall struct {
	Method  string
	Symbol  string
	StockID int
	Date    time.Time
}

type fakePriceStore struct {
	stocks map[string]*models.Stock
	closes map[string]decimal.Decimal // "stockID|2006-01-02"
	latest map[int]decimal.Decimal
	calls  []storeCall
}

func (f *fakePriceStore) GetStock(symbol string) (*models.Stock, error) {
	f.calls = append(f.calls, storeCall{Method: "GetStock", Symbol: symbol})
	if s, ok := f.stocks[symbol]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("stock %s: %w", symbol, ErrStockNotFound)
}

func (f *fakePriceStore) GetCloseAtOrBefore(stockID int, date time.Time) (decimal.Decimal, error) {
	f.calls = append(f.calls, storeCall{Method: "GetCloseAtOrBefore", StockID: stockID, Date: date})
	key := fmt.Sprintf("%d|%s", stockID, date.Format("2006-01-02"))
	if c, ok := f.closes[key]; ok {
		return c, nil
	}
	return decimal.Zero, fmt.Errorf("stock %d: %w", stockID, ErrNoPriceData)
}

func (f *fakePriceStore) GetLatestClose(stockID int) (decimal.Decimal, error) {
	f.calls = append(f.calls, storeCall{Method: "GetLatestClose", StockID: stockID})
	if c, ok := f.latest[stockID]; ok {
		return c, nil
	}
	return decimal.Zero, fmt.Errorf("stock %d: %w", stockID, ErrNoPriceData)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPriceAtOrBefore_ExactDate(t *testing.T) {
	store := &fakePriceStore{
		stocks: map[string]*models.Stock{"AAPL": {ID: 1, Symbol: "AAPL"}},
		closes: map[string]decimal.Decimal{"1|2026-03-10": dec("187.25")},
	}
	lookup := NewLookup(store)

	price, err := lookup.PriceAtOrBefore("AAPL", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("187.25")))
}

func TestPriceAtOrBefore_NormalizesSymbolCase(t *testing.T) {
	store := &fakePriceStore{
		stocks: map[string]*models.Stock{"AAPL": {ID: 1, Symbol: "AAPL"}},
		closes: map[string]decimal.Decimal{"1|2026-03-10": dec("187.25")},
	}
	lookup := NewLookup(store)

	_, err := lookup.PriceAtOrBefore("aapl", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotEmpty(t, store.calls)
	assert.Equal(t, "AAPL", store.calls[0].Symbol)
}

func TestPriceAtOrBefore_TruncatesTimeOfDay(t *testing.T) {
	store := &fakePriceStore{
		stocks: map[string]*models.Stock{"AAPL": {ID: 1, Symbol: "AAPL"}},
		closes: map[string]decimal.Decimal{"1|2026-03-10": dec("187.25")},
	}
	lookup := NewLookup(store)

	_, err := lookup.PriceAtOrBefore("AAPL", time.Date(2026, 3, 10, 15, 45, 12, 0, time.UTC))
	require.NoError(t, err)

	var lookupCall *storeCall
	for i := range store.calls {
		if store.calls[i].Method == "GetCloseAtOrBefore" {
			lookupCall = &store.calls[i]
		}
	}
	require.NotNil(t, lookupCall)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), lookupCall.Date)
}

func TestPriceAtOrBefore_FallsBackToLatestKnownPrice(t *testing.T) {
	// History starts after the requested date; the latest price is still a
	// valid answer rather than a failure.
	store := &fakePriceStore{
		stocks: map[string]*models.Stock{"SOFI": {ID: 2, Symbol: "SOFI"}},
		latest: map[int]decimal.Decimal{2: dec("9.85")},
	}
	lookup := NewLookup(store)

	price, err := lookup.PriceAtOrBefore("SOFI", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("9.85")))
}

func TestPriceAtOrBefore_UnknownStock(t *testing.T) {
	lookup := NewLookup(&fakePriceStore{stocks: map[string]*models.Stock{}})

	_, err := lookup.PriceAtOrBefore("NOPE", time.Now())
	require.ErrorIs(t, err, ErrStockNotFound)
}

func TestPriceAtOrBefore_NoPriceDataAtAll(t *testing.T) {
	// Stock exists but has zero price rows: both the dated query and the
	// fallback come up empty.
	store := &fakePriceStore{
		stocks: map[string]*models.Stock{"NEWCO": {ID: 3, Symbol: "NEWCO"}},
	}
	lookup := NewLookup(store)

	_, err := lookup.PriceAtOrBefore("NEWCO", time.Now())
	require.ErrorIs(t, err, ErrNoPriceData)
}
