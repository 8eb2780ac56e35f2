package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	Scoring    ScoringConfig
	MarketData MarketDataConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka/Redpanda configuration
type KafkaConfig struct {
	Brokers         []string
	EvaluationTopic string
	PricesTopic     string
	ConsumerGroup   string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ScoringConfig holds scoring batch configuration
type ScoringConfig struct {
	// Schedule is a cron expression for the evaluation batch.
	Schedule string
	// LeaderboardTTL is how long cached leaderboard reads stay fresh.
	LeaderboardTTL time.Duration
}

// MarketDataConfig holds the external price API configuration
type MarketDataConfig struct {
	BaseURL        string
	APIKey         string
	RequestsPerSec int
	RequestTimeout time.Duration
	SyncSchedule   string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8082"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "postgres"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "predictor"),
			Password: getEnv("DB_PASSWORD", "predictor5"),
			DBName:   getEnv("DB_NAME", "prediction_platform"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:         parseBrokers(getEnv("KAFKA_BROKERS", "localhost:19092")),
			EvaluationTopic: getEnv("KAFKA_EVALUATION_TOPIC", "predictions.evaluated"),
			PricesTopic:     getEnv("KAFKA_PRICES_TOPIC", "marketdata.prices"),
			ConsumerGroup:   getEnv("KAFKA_CONSUMER_GROUP", "prediction-service"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		Scoring: ScoringConfig{
			Schedule:       getEnv("SCORING_SCHEDULE", "15 0 * * *"), // daily, shortly after midnight
			LeaderboardTTL: getEnvDuration("LEADERBOARD_CACHE_TTL", 60*time.Second),
		},
		MarketData: MarketDataConfig{
			BaseURL:        getEnv("MARKETDATA_BASE_URL", "https://api.twelvedata.com"),
			APIKey:         getEnv("MARKETDATA_API_KEY", ""),
			RequestsPerSec: getEnvInt("MARKETDATA_REQUESTS_PER_SEC", 5),
			RequestTimeout: getEnvDuration("MARKETDATA_REQUEST_TIMEOUT", 30*time.Second),
			SyncSchedule:   getEnv("MARKETDATA_SYNC_SCHEDULE", "0 22 * * 1-5"), // weekdays after close
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// parseBrokers splits a comma-separated broker list
func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Address returns the Redis address in host:port format
func (r *RedisConfig) Address() string {
	return r.Host + ":" + r.Port
}
