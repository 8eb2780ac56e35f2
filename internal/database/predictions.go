package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/prediction-service/internal/models"
)

const predictionColumns = `
	p.id, p.user_id, p.stock_id, s.symbol, p.prediction_type, p.target_price,
	p.reasoning, p.active, p.accuracy, p.created_at, p.end_date`

// CreatePrediction inserts a new prediction
func (db *DB) CreatePrediction(p *models.Prediction) error {
	query := `
		INSERT INTO predictions (
			user_id, stock_id, prediction_type, target_price, reasoning,
			active, created_at, end_date
		) VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7)
		RETURNING id
	`
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	var target interface{}
	if p.TargetPrice != nil {
		target = *p.TargetPrice
	}
	err := db.conn.QueryRow(query,
		p.UserID, p.StockID, p.Type, target, p.Reasoning, p.CreatedAt, p.EndDate,
	).Scan(&p.ID)

	if err != nil {
		return fmt.Errorf("failed to create prediction: %w", err)
	}
	p.Active = true
	return nil
}

// GetPredictionByID retrieves a prediction with its stock symbol
func (db *DB) GetPredictionByID(id int) (*models.Prediction, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM predictions p
		JOIN stocks s ON s.id = p.stock_id
		WHERE p.id = $1
	`

	p, err := scanPrediction(db.conn.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("prediction %d: %w", id, ErrPredictionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// GetEvaluatablePredictions returns every active, unscored prediction whose
// end date has passed. This is the complete selection criterion for the
// scoring batch: a prediction that has been evaluated has active = FALSE
// and never shows up here again.
func (db *DB) GetEvaluatablePredictions(now time.Time) ([]*models.Prediction, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM predictions p
		JOIN stocks s ON s.id = p.stock_id
		WHERE p.active = TRUE AND p.accuracy IS NULL AND p.end_date <= $1
		ORDER BY p.end_date
	`

	rows, err := db.conn.Query(query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluatable predictions: %w", err)
	}
	defer rows.Close()

	return scanPredictions(rows)
}

// ListPredictions returns predictions with optional filters. A nil filter
// value means "no constraint".
func (db *DB) ListPredictions(userID *int, symbol string, active *bool, limit int) ([]*models.Prediction, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM predictions p
		JOIN stocks s ON s.id = p.stock_id
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if userID != nil {
		query += fmt.Sprintf(" AND p.user_id = $%d", argIdx)
		args = append(args, *userID)
		argIdx++
	}
	if symbol != "" {
		query += fmt.Sprintf(" AND s.symbol = $%d", argIdx)
		args = append(args, symbol)
		argIdx++
	}
	if active != nil {
		query += fmt.Sprintf(" AND p.active = $%d", argIdx)
		args = append(args, *active)
		argIdx++
	}

	query += " ORDER BY p.created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	return scanPredictions(rows)
}

// DeletePrediction removes a prediction by ID. User-initiated; the scoring
// batch never deletes.
func (db *DB) DeletePrediction(id int) error {
	result, err := db.conn.Exec(`DELETE FROM predictions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete prediction: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("prediction %d: %w", id, ErrPredictionNotFound)
	}
	return nil
}

// FinalizeEvaluation writes a prediction's accuracy and applies the
// reputation delta to its owner in one transaction. The prediction update
// is guarded on active AND accuracy IS NULL, so two concurrent batch runs
// cannot both commit an evaluation for the same prediction.
func (db *DB) FinalizeEvaluation(predictionID int, accuracy decimal.Decimal, userID, reputationDelta int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE predictions
		SET accuracy = $2, active = FALSE
		WHERE id = $1 AND active = TRUE AND accuracy IS NULL
	`, predictionID, accuracy)
	if err != nil {
		return fmt.Errorf("failed to update prediction %d: %w", predictionID, err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("prediction %d: %w", predictionID, ErrAlreadyEvaluated)
	}

	if _, err := tx.Exec(`
		UPDATE users
		SET reputation_score = reputation_score + $2
		WHERE id = $1
	`, userID, reputationDelta); err != nil {
		return fmt.Errorf("failed to update reputation for user %d: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit evaluation: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrediction(row rowScanner) (*models.Prediction, error) {
	var p models.Prediction
	var target, accuracy sql.NullString

	err := row.Scan(
		&p.ID, &p.UserID, &p.StockID, &p.StockSymbol, &p.Type, &target,
		&p.Reasoning, &p.Active, &accuracy, &p.CreatedAt, &p.EndDate,
	)
	if err != nil {
		return nil, err
	}

	if target.Valid {
		d, err := decimal.NewFromString(target.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse target price: %w", err)
		}
		p.TargetPrice = &d
	}
	if accuracy.Valid {
		d, err := decimal.NewFromString(accuracy.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse accuracy: %w", err)
		}
		p.Accuracy = &d
	}

	return &p, nil
}

func scanPredictions(rows *sql.Rows) ([]*models.Prediction, error) {
	var predictions []*models.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read predictions: %w", err)
	}
	return predictions, nil
}
