// Package scoring evaluates expired predictions against recorded price
// movement and maintains user reputation.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/prediction-service/internal/database"
	"github.com/trogers1052/prediction-service/internal/metrics"
	"github.com/trogers1052/prediction-service/internal/models"
)

// PredictionStore is the prediction persistence the engine needs.
type PredictionStore interface {
	GetEvaluatablePredictions(now time.Time) ([]*models.Prediction, error)
	FinalizeEvaluation(predictionID int, accuracy decimal.Decimal, userID, reputationDelta int) error
}

// PriceLookup resolves closing prices by symbol and date.
type PriceLookup interface {
	PriceAtOrBefore(symbol string, date time.Time) (decimal.Decimal, error)
}

// StatsStore serves the read-only aggregate queries.
type StatsStore interface {
	GetTopUsers(limit int) ([]*models.LeaderboardEntry, error)
	GetUserPredictionStats(userID int) (*models.UserPredictionStats, error)
}

// EventPublisher emits an event after each successful evaluation. Publish
// failures are logged, never propagated.
type EventPublisher interface {
	PublishPredictionEvaluated(ctx context.Context, event *models.PredictionEvaluatedEvent) error
}

// Engine orchestrates prediction evaluation and answers aggregate queries.
type Engine struct {
	predictions PredictionStore
	prices      PriceLookup
	stats       StatsStore
	publisher   EventPublisher // optional
	logger      zerolog.Logger
	now         func() time.Time
}

// NewEngine creates a scoring engine. publisher may be nil when no event
// bus is configured.
func NewEngine(predictions PredictionStore, prices PriceLookup, stats StatsStore, publisher EventPublisher, logger zerolog.Logger) *Engine {
	return &Engine{
		predictions: predictions,
		prices:      prices,
		stats:       stats,
		publisher:   publisher,
		logger:      logger.With().Str("component", "scoring_engine").Logger(),
		now:         time.Now,
	}
}

// EvaluateActivePredictions runs one scoring batch: it selects every
// active, unscored prediction past its end date and evaluates each
// independently. A failure on one prediction is counted and logged but
// never aborts the rest of the batch.
func (e *Engine) EvaluateActivePredictions(ctx context.Context) (*models.EvaluationSummary, error) {
	start := e.now()
	metrics.BatchRunsTotal.Inc()
	defer func() {
		metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	candidates, err := e.predictions.GetEvaluatablePredictions(start)
	if err != nil {
		return nil, fmt.Errorf("failed to select predictions for evaluation: %w", err)
	}

	summary := &models.EvaluationSummary{Total: len(candidates)}
	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			// Interrupted between predictions; everything not yet
			// committed is picked up by the next run.
			e.logger.Warn().Int("remaining", summary.Total-summary.Evaluated-summary.Errors).
				Msg("Batch interrupted")
			return summary, err
		}

		if err := e.evaluatePrediction(ctx, p); err != nil {
			summary.Errors++
			metrics.EvaluationsTotal.WithLabelValues("error").Inc()
			e.logger.Error().Err(err).
				Int("prediction_id", p.ID).
				Str("symbol", p.StockSymbol).
				Msg("Failed to evaluate prediction")
			continue
		}
		summary.Evaluated++
		metrics.EvaluationsTotal.WithLabelValues("evaluated").Inc()
	}

	e.logger.Info().
		Int("total", summary.Total).
		Int("evaluated", summary.Evaluated).
		Int("errors", summary.Errors).
		Dur("duration", time.Since(start)).
		Msg("Scoring batch complete")

	return summary, nil
}

// evaluatePrediction scores a single prediction and commits the result.
// No state is written unless both prices resolve; the accuracy write and
// the reputation delta commit together or not at all.
func (e *Engine) evaluatePrediction(ctx context.Context, p *models.Prediction) error {
	startPrice, err := e.prices.PriceAtOrBefore(p.StockSymbol, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("start price unavailable: %w", err)
	}
	endPrice, err := e.prices.PriceAtOrBefore(p.StockSymbol, p.EndDate)
	if err != nil {
		return fmt.Errorf("end price unavailable: %w", err)
	}
	if startPrice.IsZero() {
		return fmt.Errorf("start price for %s is zero", p.StockSymbol)
	}

	priceChange := endPrice.Sub(startPrice)
	percentChange := priceChange.Div(startPrice).Mul(decimal.NewFromInt(100))

	// Strict inequality on both sides: a flat market is a wrong call for
	// bulls and bears alike.
	var correct bool
	switch p.Type {
	case models.PredictionBullish:
		correct = priceChange.GreaterThan(decimal.Zero)
	case models.PredictionBearish:
		correct = priceChange.LessThan(decimal.Zero)
	default:
		return fmt.Errorf("unknown prediction type %q", p.Type)
	}

	accuracy := AccuracyScore(correct, percentChange)
	delta := ReputationDelta(accuracy)

	if err := e.predictions.FinalizeEvaluation(p.ID, accuracy, p.UserID, delta); err != nil {
		if errors.Is(err, database.ErrAlreadyEvaluated) {
			// Another run got there first; nothing to do.
			e.logger.Debug().Int("prediction_id", p.ID).Msg("Prediction already evaluated")
			return nil
		}
		return err
	}

	e.logger.Info().
		Int("prediction_id", p.ID).
		Int("user_id", p.UserID).
		Str("symbol", p.StockSymbol).
		Str("type", string(p.Type)).
		Str("percent_change", percentChange.StringFixed(2)).
		Bool("correct", correct).
		Str("accuracy", accuracy.String()).
		Int("reputation_delta", delta).
		Msg("Prediction evaluated")

	if e.publisher != nil {
		event := &models.PredictionEvaluatedEvent{
			EventType:       "PREDICTION_EVALUATED",
			PredictionID:    p.ID,
			UserID:          p.UserID,
			Symbol:          p.StockSymbol,
			Accuracy:        accuracy,
			ReputationDelta: delta,
			Timestamp:       e.now(),
		}
		if err := e.publisher.PublishPredictionEvaluated(ctx, event); err != nil {
			e.logger.Warn().Err(err).Int("prediction_id", p.ID).
				Msg("Failed to publish evaluation event")
		}
	}

	return nil
}

// TopUsers returns the leaderboard. This is a display read: on error it
// logs and returns an empty list rather than failing the page.
func (e *Engine) TopUsers(limit int) []*models.LeaderboardEntry {
	if limit <= 0 {
		limit = 10
	}
	entries, err := e.stats.GetTopUsers(limit)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to load leaderboard")
		return []*models.LeaderboardEntry{}
	}
	if entries == nil {
		entries = []*models.LeaderboardEntry{}
	}
	return entries
}

// UserStats returns per-user prediction statistics. Unknown users and
// query failures degrade to zero-valued stats (display read).
func (e *Engine) UserStats(userID int) *models.UserPredictionStats {
	stats, err := e.stats.GetUserPredictionStats(userID)
	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			e.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to load user stats")
		}
		return &models.UserPredictionStats{UserID: userID}
	}
	return stats
}
