package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/trogers1052/prediction-service/internal/models"
)

// SaveStock inserts or updates a stock, keyed by symbol
func (db *DB) SaveStock(stock *models.Stock) error {
	if stock.Sector == "" {
		stock.Sector = models.DefaultSector
	}
	query := `
		INSERT INTO stocks (symbol, name, sector, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol)
		DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING id
	`

	err := db.conn.QueryRow(query,
		strings.ToUpper(stock.Symbol), stock.Name, stock.Sector, stock.Active,
	).Scan(&stock.ID)

	if err != nil {
		return fmt.Errorf("failed to save stock %s: %w", stock.Symbol, err)
	}

	return nil
}

// GetStock retrieves a stock by symbol
func (db *DB) GetStock(symbol string) (*models.Stock, error) {
	query := `
		SELECT id, symbol, name, sector, active, created_at, updated_at
		FROM stocks
		WHERE symbol = $1
	`

	var stock models.Stock
	err := db.conn.QueryRow(query, strings.ToUpper(symbol)).Scan(
		&stock.ID, &stock.Symbol, &stock.Name, &stock.Sector, &stock.Active,
		&stock.CreatedAt, &stock.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock %s: %w", symbol, ErrStockNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock %s: %w", symbol, err)
	}

	return &stock, nil
}

// GetStockByID retrieves a stock by ID
func (db *DB) GetStockByID(id int) (*models.Stock, error) {
	query := `
		SELECT id, symbol, name, sector, active, created_at, updated_at
		FROM stocks
		WHERE id = $1
	`

	var stock models.Stock
	err := db.conn.QueryRow(query, id).Scan(
		&stock.ID, &stock.Symbol, &stock.Name, &stock.Sector, &stock.Active,
		&stock.CreatedAt, &stock.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock id %d: %w", id, ErrStockNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock by id: %w", err)
	}

	return &stock, nil
}

// GetAllStocks returns all stocks ordered by symbol
func (db *DB) GetAllStocks() ([]*models.Stock, error) {
	query := `
		SELECT id, symbol, name, sector, active, created_at, updated_at
		FROM stocks
		ORDER BY symbol
	`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all stocks: %w", err)
	}
	defer rows.Close()

	var stocks []*models.Stock
	for rows.Next() {
		var stock models.Stock
		err := rows.Scan(
			&stock.ID, &stock.Symbol, &stock.Name, &stock.Sector, &stock.Active,
			&stock.CreatedAt, &stock.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, &stock)
	}

	return stocks, nil
}

// GetActiveSymbols returns the symbols of all active stocks
func (db *DB) GetActiveSymbols() ([]string, error) {
	rows, err := db.conn.Query(`SELECT symbol FROM stocks WHERE active = TRUE ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}

	return symbols, nil
}

// StockExists checks if a stock exists
func (db *DB) StockExists(symbol string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM stocks WHERE symbol = $1)`
	var exists bool
	err := db.conn.QueryRow(query, strings.ToUpper(symbol)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check stock existence: %w", err)
	}
	return exists, nil
}

// UpsertStockBasic inserts or updates a stock with just symbol and name.
// Used when a price event arrives for a symbol we have not seen before.
func (db *DB) UpsertStockBasic(symbol, name string) error {
	query := `
		INSERT INTO stocks (symbol, name, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (symbol) DO UPDATE SET
			name = CASE WHEN stocks.name = '' OR stocks.name = stocks.symbol THEN EXCLUDED.name ELSE stocks.name END,
			updated_at = NOW()
	`

	_, err := db.conn.Exec(query, strings.ToUpper(symbol), name)
	if err != nil {
		return fmt.Errorf("failed to upsert stock %s: %w", symbol, err)
	}
	return nil
}

// GetStocksBySector retrieves all stocks in a specific sector
func (db *DB) GetStocksBySector(sector string) ([]*models.Stock, error) {
	query := `
		SELECT id, symbol, name, sector, active, created_at, updated_at
		FROM stocks
		WHERE sector = $1
		ORDER BY symbol
	`

	rows, err := db.conn.Query(query, sector)
	if err != nil {
		return nil, fmt.Errorf("failed to get stocks by sector: %w", err)
	}
	defer rows.Close()

	var stocks []*models.Stock
	for rows.Next() {
		var stock models.Stock
		err := rows.Scan(
			&stock.ID, &stock.Symbol, &stock.Name, &stock.Sector, &stock.Active,
			&stock.CreatedAt, &stock.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, &stock)
	}

	return stocks, nil
}
