package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/prediction-service/internal/config"
	"github.com/trogers1052/prediction-service/internal/models"
)

// Client wraps the Redis client with service-specific operations
type Client struct {
	rdb *redis.Client
}

// New creates a new Redis client
func New(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Leaderboard caching operations

func leaderboardKey(limit int) string {
	return fmt.Sprintf("leaderboard:top:%d", limit)
}

// SetLeaderboard caches a leaderboard snapshot with TTL
func (c *Client) SetLeaderboard(ctx context.Context, limit int, entries []*models.LeaderboardEntry, ttl time.Duration) error {
	jsonData, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %w", err)
	}
	return c.rdb.Set(ctx, leaderboardKey(limit), jsonData, ttl).Err()
}

// GetLeaderboard retrieves a cached leaderboard snapshot. A cache miss
// returns redis.Nil.
func (c *Client) GetLeaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	jsonData, err := c.rdb.Get(ctx, leaderboardKey(limit)).Bytes()
	if err != nil {
		return nil, err
	}

	var entries []*models.LeaderboardEntry
	if err := json.Unmarshal(jsonData, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal leaderboard: %w", err)
	}
	return entries, nil
}

// User stats caching

// SetUserStats caches a user's prediction stats with TTL
func (c *Client) SetUserStats(ctx context.Context, stats *models.UserPredictionStats, ttl time.Duration) error {
	key := fmt.Sprintf("user:%d:stats", stats.UserID)
	jsonData, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal user stats: %w", err)
	}
	return c.rdb.Set(ctx, key, jsonData, ttl).Err()
}

// GetUserStats retrieves cached user stats
func (c *Client) GetUserStats(ctx context.Context, userID int) (*models.UserPredictionStats, error) {
	key := fmt.Sprintf("user:%d:stats", userID)
	jsonData, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var stats models.UserPredictionStats
	if err := json.Unmarshal(jsonData, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user stats: %w", err)
	}
	return &stats, nil
}

// InvalidateUserStats drops the cached stats for a user
func (c *Client) InvalidateUserStats(ctx context.Context, userID int) error {
	key := fmt.Sprintf("user:%d:stats", userID)
	return c.rdb.Del(ctx, key).Err()
}

// Generic operations

// Set stores a value with optional TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Get retrieves a string value
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Delete removes a key
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// IsCacheMiss reports whether err is a Redis cache miss
func IsCacheMiss(err error) bool {
	return err == redis.Nil
}
