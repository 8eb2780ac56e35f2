package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/trogers1052/prediction-service/internal/api"
	"github.com/trogers1052/prediction-service/internal/config"
	"github.com/trogers1052/prediction-service/internal/database"
	"github.com/trogers1052/prediction-service/internal/kafka"
	"github.com/trogers1052/prediction-service/internal/marketdata"
	"github.com/trogers1052/prediction-service/internal/pricing"
	"github.com/trogers1052/prediction-service/internal/redis"
	"github.com/trogers1052/prediction-service/internal/scheduler"
	"github.com/trogers1052/prediction-service/internal/scoring"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.With().Str("service", "prediction-service").Logger()

	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(cfg.Database.ConnectionString(), logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run database migrations")
	}
	logger.Info().Msg("Connected to PostgreSQL database")

	// Connect to Redis
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to connect to Redis, continuing without cache")
		redisClient = nil
	} else {
		defer redisClient.Close()
		logger.Info().Msg("Connected to Redis cache")
	}

	// Create Kafka producer for evaluation events
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EvaluationTopic, logger)
	defer producer.Close()
	logger.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("Kafka producer initialized")

	// Wire the scoring engine: price lookup and persistence are passed in
	// explicitly so the engine is testable with fakes
	priceLookup := pricing.NewLookup(db)
	engine := scoring.NewEngine(db, priceLookup, db, producer, logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start Kafka consumer for incoming daily prices
	pricesConsumer := kafka.NewPricesConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.PricesTopic,
		cfg.Kafka.ConsumerGroup,
		db,
		logger,
	)
	go func() {
		if err := pricesConsumer.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("Prices consumer error")
		}
	}()

	// Schedule the scoring batch and the price sync
	sched := scheduler.New(logger)
	if err := sched.AddJob("evaluate-predictions", cfg.Scoring.Schedule, func(jobCtx context.Context) error {
		_, err := engine.EvaluateActivePredictions(jobCtx)
		return err
	}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to schedule scoring batch")
	}

	if cfg.MarketData.APIKey != "" {
		mdClient := marketdata.NewClient(cfg.MarketData, logger)
		syncer := marketdata.NewSyncer(mdClient, db, db, logger)
		if err := sched.AddJob("sync-prices", cfg.MarketData.SyncSchedule, func(jobCtx context.Context) error {
			_, _, err := syncer.SyncDailyPrices(jobCtx)
			return err
		}); err != nil {
			logger.Fatal().Err(err).Msg("Failed to schedule price sync")
		}
	} else {
		logger.Warn().Msg("No market data API key set, price sync disabled")
	}

	sched.Start()
	defer sched.Stop()

	// Set up HTTP handler and routes
	handler := api.NewHandler(db, engine, redisClient, cfg.Scoring.LeaderboardTTL, logger)
	router := api.SetupRoutes(handler)

	// Create HTTP server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("addr", addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server")

	// Cancel context to stop the Kafka consumer
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := pricesConsumer.Close(); err != nil {
		logger.Error().Err(err).Msg("Error closing prices consumer")
	}

	logger.Info().Msg("Server stopped")
}

func runMigrations(databaseURL string, logger zerolog.Logger) error {
	m, err := migrate.New("file://./db/migrations", databaseURL)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}
	if err == migrate.ErrNoChange {
		logger.Info().Msg("No migrations to apply; database is up to date")
	}

	return nil
}
