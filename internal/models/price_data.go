package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockPrice represents daily OHLCV price data for a stock.
// The scoring engine only reads ClosePrice; the rest is kept for the
// stock browse API.
type StockPrice struct {
	ID         int             `json:"id"`
	StockID    int             `json:"stock_id"`
	PriceDate  time.Time       `json:"price_date"`
	OpenPrice  decimal.Decimal `json:"open_price,omitempty"`
	HighPrice  decimal.Decimal `json:"high_price,omitempty"`
	LowPrice   decimal.Decimal `json:"low_price,omitempty"`
	ClosePrice decimal.Decimal `json:"close_price"`
	Volume     int64           `json:"volume,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
