package marketdata

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/prediction-service/internal/models"
)

type fakeFetcher struct {
	quotes map[string]*DailyQuote
}

func (f *fakeFetcher) FetchDailyQuote(ctx context.Context, symbol string) (*DailyQuote, error) {
	if q, ok := f.quotes[symbol]; ok {
		return q, nil
	}
	return nil, fmt.Errorf("no quote for %s", symbol)
}

type fakeSymbolSource struct {
	symbols []string
	err     error
}

func (f *fakeSymbolSource) GetActiveSymbols() ([]string, error) {
	return f.symbols, f.err
}

type fakeWriter struct {
	stocks  map[string]*models.Stock
	upserts []*models.StockPrice
}

func (f *fakeWriter) GetStock(symbol string) (*models.Stock, error) {
	if s, ok := f.stocks[symbol]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("stock not found: %s", symbol)
}

func (f *fakeWriter) UpsertStockPrice(price *models.StockPrice) error {
	f.upserts = append(f.upserts, price)
	return nil
}

func TestSyncDailyPrices(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{quotes: map[string]*DailyQuote{
		"AAPL": {Symbol: "AAPL", Date: date, Close: decimal.RequireFromString("187.25")},
		"GOOG": {Symbol: "GOOG", Date: date, Close: decimal.RequireFromString("152.10")},
	}}
	writer := &fakeWriter{stocks: map[string]*models.Stock{
		"AAPL": {ID: 1, Symbol: "AAPL"},
		"GOOG": {ID: 2, Symbol: "GOOG"},
	}}
	syncer := NewSyncer(fetcher, &fakeSymbolSource{symbols: []string{"AAPL", "GOOG"}}, writer, zerolog.Nop())

	synced, failed, err := syncer.SyncDailyPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.Equal(t, 0, failed)
	require.Len(t, writer.upserts, 2)
	assert.Equal(t, 1, writer.upserts[0].StockID)
}

func TestSyncDailyPrices_OneSymbolFailsOthersContinue(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{quotes: map[string]*DailyQuote{
		"GOOG": {Symbol: "GOOG", Date: date, Close: decimal.RequireFromString("152.10")},
	}}
	writer := &fakeWriter{stocks: map[string]*models.Stock{
		"GOOG": {ID: 2, Symbol: "GOOG"},
	}}
	syncer := NewSyncer(fetcher, &fakeSymbolSource{symbols: []string{"MISSING", "GOOG"}}, writer, zerolog.Nop())

	synced, failed, err := syncer.SyncDailyPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, synced)
	assert.Equal(t, 1, failed)
	require.Len(t, writer.upserts, 1)
}

func TestSyncDailyPrices_SymbolListFailure(t *testing.T) {
	syncer := NewSyncer(&fakeFetcher{}, &fakeSymbolSource{err: assert.AnError}, &fakeWriter{}, zerolog.Nop())

	_, _, err := syncer.SyncDailyPrices(context.Background())
	require.Error(t, err)
}

func TestParseQuote(t *testing.T) {
	quote, err := parseQuote("aapl", &quoteResponse{
		Symbol:   "AAPL",
		Datetime: "2026-03-10",
		Open:     "185.00",
		High:     "188.10",
		Low:      "184.20",
		Close:    "187.25",
		Volume:   "51234000",
	})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, "2026-03-10", quote.Date.Format("2006-01-02"))
	assert.True(t, quote.Close.Equal(decimal.RequireFromString("187.25")))
	assert.True(t, quote.High.Equal(decimal.RequireFromString("188.10")))
	assert.Equal(t, int64(51234000), quote.Volume)
}

func TestParseQuote_MissingOptionalFields(t *testing.T) {
	quote, err := parseQuote("AAPL", &quoteResponse{
		Datetime: "2026-03-10",
		Close:    "187.25",
	})
	require.NoError(t, err)
	assert.True(t, quote.Open.IsZero())
	assert.Equal(t, int64(0), quote.Volume)
}

func TestParseQuote_BadClose(t *testing.T) {
	_, err := parseQuote("AAPL", &quoteResponse{Datetime: "2026-03-10", Close: "not-a-number"})
	require.Error(t, err)
}

func TestParseQuote_BadDate(t *testing.T) {
	_, err := parseQuote("AAPL", &quoteResponse{Datetime: "03/10/2026", Close: "1"})
	require.Error(t, err)
}
