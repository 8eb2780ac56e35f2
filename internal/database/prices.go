package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/prediction-service/internal/models"
)

// UpsertStockPrice inserts or updates the price row for (stock, date)
func (db *DB) UpsertStockPrice(price *models.StockPrice) error {
	query := `
		INSERT INTO stock_prices (
			stock_id, price_date, open_price, high_price, low_price, close_price, volume
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (stock_id, price_date)
		DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume
		RETURNING id
	`

	err := db.conn.QueryRow(query,
		price.StockID, price.PriceDate, price.OpenPrice, price.HighPrice,
		price.LowPrice, price.ClosePrice, price.Volume,
	).Scan(&price.ID)

	if err != nil {
		return fmt.Errorf("failed to upsert stock price: %w", err)
	}
	return nil
}

// GetCloseAtOrBefore returns the most recent closing price for the stock
// dated at or before the given date.
func (db *DB) GetCloseAtOrBefore(stockID int, date time.Time) (decimal.Decimal, error) {
	query := `
		SELECT close_price
		FROM stock_prices
		WHERE stock_id = $1 AND price_date <= $2
		ORDER BY price_date DESC
		LIMIT 1
	`

	var close decimal.Decimal
	err := db.conn.QueryRow(query, stockID, date).Scan(&close)
	if err == sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("stock %d at %s: %w", stockID, date.Format("2006-01-02"), ErrNoPriceData)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get close price: %w", err)
	}

	return close, nil
}

// GetLatestClose returns the stock's most recent closing price regardless
// of date.
func (db *DB) GetLatestClose(stockID int) (decimal.Decimal, error) {
	query := `
		SELECT close_price
		FROM stock_prices
		WHERE stock_id = $1
		ORDER BY price_date DESC
		LIMIT 1
	`

	var close decimal.Decimal
	err := db.conn.QueryRow(query, stockID).Scan(&close)
	if err == sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("stock %d: %w", stockID, ErrNoPriceData)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get latest close: %w", err)
	}

	return close, nil
}

// GetRecentPrices returns up to days of price history for a stock, newest
// first. Used by the stock browse API.
func (db *DB) GetRecentPrices(stockID, days int) ([]*models.StockPrice, error) {
	query := `
		SELECT id, stock_id, price_date, open_price, high_price, low_price,
		       close_price, volume, created_at
		FROM stock_prices
		WHERE stock_id = $1
		ORDER BY price_date DESC
		LIMIT $2
	`

	rows, err := db.conn.Query(query, stockID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent prices: %w", err)
	}
	defer rows.Close()

	var prices []*models.StockPrice
	for rows.Next() {
		var p models.StockPrice
		var open, high, low sql.NullString
		var volume sql.NullInt64
		err := rows.Scan(
			&p.ID, &p.StockID, &p.PriceDate, &open, &high, &low,
			&p.ClosePrice, &volume, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock price: %w", err)
		}
		if open.Valid {
			p.OpenPrice, _ = decimal.NewFromString(open.String)
		}
		if high.Valid {
			p.HighPrice, _ = decimal.NewFromString(high.String)
		}
		if low.Valid {
			p.LowPrice, _ = decimal.NewFromString(low.String)
		}
		if volume.Valid {
			p.Volume = volume.Int64
		}
		prices = append(prices, &p)
	}

	return prices, nil
}
