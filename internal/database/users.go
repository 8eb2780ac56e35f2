package database

import (
	"database/sql"
	"fmt"

	"github.com/trogers1052/prediction-service/internal/models"
)

// CreateUser inserts a new user
func (db *DB) CreateUser(u *models.User) error {
	query := `
		INSERT INTO users (username, reputation_score)
		VALUES ($1, 0)
		RETURNING id, created_at
	`
	err := db.conn.QueryRow(query, u.Username).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.ReputationScore = 0
	return nil
}

// GetUserByID retrieves a user by ID
func (db *DB) GetUserByID(id int) (*models.User, error) {
	query := `
		SELECT id, username, reputation_score, created_at
		FROM users
		WHERE id = $1
	`

	var u models.User
	err := db.conn.QueryRow(query, id).Scan(
		&u.ID, &u.Username, &u.ReputationScore, &u.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", id, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// GetTopUsers returns up to limit users ordered by reputation descending,
// each with total prediction count and average accuracy over scored
// predictions (0 when the user has no scored predictions).
func (db *DB) GetTopUsers(limit int) ([]*models.LeaderboardEntry, error) {
	query := `
		SELECT u.id, u.username, u.reputation_score,
		       COUNT(p.id) AS total_predictions,
		       COALESCE(ROUND(AVG(p.accuracy) FILTER (WHERE p.accuracy IS NOT NULL), 1), 0) AS avg_accuracy
		FROM users u
		LEFT JOIN predictions p ON p.user_id = u.id
		GROUP BY u.id, u.username, u.reputation_score
		ORDER BY u.reputation_score DESC, u.id
		LIMIT $1
	`

	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	defer rows.Close()

	var entries []*models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		err := rows.Scan(
			&e.UserID, &e.Username, &e.ReputationScore,
			&e.TotalPredictions, &e.AverageAccuracy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	return entries, nil
}

// GetUserPredictionStats returns per-user aggregate prediction counts.
// An unknown user yields zero rows from the users lookup; the caller maps
// that to empty stats rather than an error (display path).
func (db *DB) GetUserPredictionStats(userID int) (*models.UserPredictionStats, error) {
	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE accuracy >= 50) AS accurate,
		       COUNT(*) FILTER (WHERE accuracy IS NOT NULL AND accuracy < 50) AS inaccurate,
		       COUNT(*) FILTER (WHERE accuracy IS NULL) AS pending,
		       COALESCE(ROUND(AVG(accuracy) FILTER (WHERE accuracy IS NOT NULL), 1), 0) AS avg_accuracy
		FROM predictions
		WHERE user_id = $1
	`

	stats := models.UserPredictionStats{UserID: userID}
	err := db.conn.QueryRow(query, userID).Scan(
		&stats.Total, &stats.Accurate, &stats.Inaccurate, &stats.Pending,
		&stats.AverageAccuracy,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction stats for user %d: %w", userID, err)
	}

	var reputation int
	err = db.conn.QueryRow(`SELECT reputation_score FROM users WHERE id = $1`, userID).Scan(&reputation)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reputation for user %d: %w", userID, err)
	}
	stats.ReputationScore = reputation

	return &stats, nil
}
