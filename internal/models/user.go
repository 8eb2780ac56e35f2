package models

import "time"

// User represents an account holder. Credentials live in the auth service;
// this service only tracks identity and reputation.
type User struct {
	ID              int       `json:"id"`
	Username        string    `json:"username"`
	ReputationScore int       `json:"reputation_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// LeaderboardEntry is one row of the top-users query: a user plus
// aggregate prediction figures.
type LeaderboardEntry struct {
	UserID           int     `json:"user_id"`
	Username         string  `json:"username"`
	ReputationScore  int     `json:"reputation_score"`
	TotalPredictions int     `json:"total_predictions"`
	AverageAccuracy  float64 `json:"average_accuracy"` // over scored predictions only, 0 if none
}

// UserPredictionStats holds per-user aggregate prediction figures.
type UserPredictionStats struct {
	UserID          int     `json:"user_id"`
	Total           int     `json:"total"`
	Accurate        int     `json:"accurate"`         // scored with accuracy >= 50
	Inaccurate      int     `json:"inaccurate"`       // scored with accuracy < 50
	Pending         int     `json:"pending"`          // not yet evaluated
	AverageAccuracy float64 `json:"average_accuracy"` // 1 decimal place, 0 if none scored
	ReputationScore int     `json:"reputation_score"`
}
