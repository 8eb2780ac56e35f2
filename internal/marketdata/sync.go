package marketdata

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/trogers1052/prediction-service/internal/models"
)

// Fetcher is the quote source the syncer pulls from.
type Fetcher interface {
	FetchDailyQuote(ctx context.Context, symbol string) (*DailyQuote, error)
}

// SymbolSource lists the symbols worth syncing.
type SymbolSource interface {
	GetActiveSymbols() ([]string, error)
}

// Syncer pulls end-of-day quotes for every active stock and records them.
// One symbol failing does not stop the rest.
type Syncer struct {
	fetcher Fetcher
	symbols SymbolSource
	writer  PriceWriter
	logger  zerolog.Logger
}

// NewSyncer creates a price syncer
func NewSyncer(fetcher Fetcher, symbols SymbolSource, writer PriceWriter, logger zerolog.Logger) *Syncer {
	return &Syncer{
		fetcher: fetcher,
		symbols: symbols,
		writer:  writer,
		logger:  logger.With().Str("component", "price_syncer").Logger(),
	}
}

// SyncDailyPrices fetches and stores the latest close for each active
// symbol. Returns the number of symbols synced and the number that failed.
func (s *Syncer) SyncDailyPrices(ctx context.Context) (synced, failed int, err error) {
	symbols, err := s.symbols.GetActiveSymbols()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list active symbols: %w", err)
	}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return synced, failed, err
		}

		if err := s.syncSymbol(ctx, symbol); err != nil {
			failed++
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to sync price")
			continue
		}
		synced++
	}

	s.logger.Info().Int("synced", synced).Int("failed", failed).Msg("Price sync complete")
	return synced, failed, nil
}

func (s *Syncer) syncSymbol(ctx context.Context, symbol string) error {
	quote, err := s.fetcher.FetchDailyQuote(ctx, symbol)
	if err != nil {
		return err
	}

	stock, err := s.writer.GetStock(symbol)
	if err != nil {
		return err
	}

	return s.writer.UpsertStockPrice(&models.StockPrice{
		StockID:    stock.ID,
		PriceDate:  quote.Date,
		OpenPrice:  quote.Open,
		HighPrice:  quote.High,
		LowPrice:   quote.Low,
		ClosePrice: quote.Close,
		Volume:     quote.Volume,
	})
}
