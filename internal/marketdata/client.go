// Package marketdata fetches daily closing prices from the external quote
// API and records them in the price store.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/trogers1052/prediction-service/internal/config"
	"github.com/trogers1052/prediction-service/internal/models"
)

// PriceWriter is where fetched prices land.
type PriceWriter interface {
	GetStock(symbol string) (*models.Stock, error)
	UpsertStockPrice(price *models.StockPrice) error
}

// Client is a rate-limited HTTP client for the quote API. The limiter is
// held by the client, not module state, so tests and multiple instances
// can carry their own budgets.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	apiKey     string
	logger     zerolog.Logger
}

// NewClient creates an API client from configuration
func NewClient(cfg config.MarketDataConfig, logger zerolog.Logger) *Client {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), rps),
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		logger:     logger.With().Str("component", "marketdata_client").Logger(),
	}
}

type quoteResponse struct {
	Symbol   string `json:"symbol"`
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
	Code     int    `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// DailyQuote is one day of OHLCV data for a symbol.
type DailyQuote struct {
	Symbol string
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// FetchDailyQuote fetches the latest end-of-day quote for symbol, waiting
// on the rate limiter and retrying transient failures with exponential
// backoff.
func (c *Client) FetchDailyQuote(ctx context.Context, symbol string) (*DailyQuote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := fmt.Sprintf("%s/eod?symbol=%s&apikey=%s",
		c.baseURL, url.QueryEscape(strings.ToUpper(symbol)), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var resp *http.Response
	operation := func() error {
		var err error
		resp, err = c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("non-200 status code: %d", resp.StatusCode)
		}
		return nil
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		return nil, fmt.Errorf("after retries: %w", err)
	}
	defer resp.Body.Close()

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if quote.Code != 0 && quote.Code != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", quote.Code, quote.Message)
	}

	return parseQuote(symbol, &quote)
}

func parseQuote(symbol string, q *quoteResponse) (*DailyQuote, error) {
	date, err := time.Parse("2006-01-02", q.Datetime)
	if err != nil {
		return nil, fmt.Errorf("parsing quote date %q: %w", q.Datetime, err)
	}
	close, err := decimal.NewFromString(q.Close)
	if err != nil {
		return nil, fmt.Errorf("parsing close price %q: %w", q.Close, err)
	}

	quote := &DailyQuote{
		Symbol: strings.ToUpper(symbol),
		Date:   date,
		Close:  close,
	}
	// OHLC besides close is best-effort; a missing field is not an error
	if d, err := decimal.NewFromString(q.Open); err == nil {
		quote.Open = d
	}
	if d, err := decimal.NewFromString(q.High); err == nil {
		quote.High = d
	}
	if d, err := decimal.NewFromString(q.Low); err == nil {
		quote.Low = d
	}
	if q.Volume != "" {
		if v, err := strconv.ParseInt(q.Volume, 10, 64); err == nil {
			quote.Volume = v
		}
	}

	return quote, nil
}
