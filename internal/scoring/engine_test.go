package scoring

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/prediction-service/internal/database"
	"github.com/trogers1052/prediction-service/internal/models"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type finalizedCall struct {
	PredictionID    int
	Accuracy        decimal.Decimal
	UserID          int
	ReputationDelta int
}

type fakePredictionStore struct {
	mu          sync.Mutex
	evaluatable []*models.Prediction
	selectErr   error
	finalizeErr map[int]error // by prediction ID
	finalized   []finalizedCall
}

func (f *fakePredictionStore) GetEvaluatablePredictions(now time.Time) ([]*models.Prediction, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return f.evaluatable, nil
}

func (f *fakePredictionStore) FinalizeEvaluation(predictionID int, accuracy decimal.Decimal, userID, reputationDelta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.finalizeErr[predictionID]; ok {
		return err
	}
	f.finalized = append(f.finalized, finalizedCall{predictionID, accuracy, userID, reputationDelta})
	return nil
}

type fakePriceLookup struct {
	// prices keyed by "SYMBOL|2006-01-02"
	prices map[string]decimal.Decimal
	errs   map[string]error
}

func priceKey(symbol string, date time.Time) string {
	return fmt.Sprintf("%s|%s", symbol, date.Format("2006-01-02"))
}

func (f *fakePriceLookup) PriceAtOrBefore(symbol string, date time.Time) (decimal.Decimal, error) {
	key := priceKey(symbol, date)
	if err, ok := f.errs[key]; ok {
		return decimal.Zero, err
	}
	if p, ok := f.prices[key]; ok {
		return p, nil
	}
	return decimal.Zero, fmt.Errorf("%s: %w", key, database.ErrNoPriceData)
}

type fakeStatsStore struct {
	topUsers []*models.LeaderboardEntry
	topErr   error
	stats    map[int]*models.UserPredictionStats
	statsErr error
}

func (f *fakeStatsStore) GetTopUsers(limit int) ([]*models.LeaderboardEntry, error) {
	if f.topErr != nil {
		return nil, f.topErr
	}
	if limit < len(f.topUsers) {
		return f.topUsers[:limit], nil
	}
	return f.topUsers, nil
}

func (f *fakeStatsStore) GetUserPredictionStats(userID int) (*models.UserPredictionStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	if s, ok := f.stats[userID]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("user %d: %w", userID, database.ErrUserNotFound)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.PredictionEvaluatedEvent
	err    error
}

func (f *fakePublisher) PublishPredictionEvaluated(ctx context.Context, event *models.PredictionEvaluatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func newTestEngine(preds *fakePredictionStore, prices *fakePriceLookup, stats *fakeStatsStore, pub EventPublisher) *Engine {
	return NewEngine(preds, prices, stats, pub, zerolog.Nop())
}

func makePrediction(id, userID int, symbol string, predType models.PredictionType, created, end time.Time) *models.Prediction {
	return &models.Prediction{
		ID:          id,
		UserID:      userID,
		StockID:     1,
		StockSymbol: symbol,
		Type:        predType,
		Reasoning:   "test reasoning",
		Active:      true,
		CreatedAt:   created,
		EndDate:     end,
	}
}

var (
	createdAt = time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC)
	endDate   = time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
)

func pricesFor(symbol string, start, end string) *fakePriceLookup {
	return &fakePriceLookup{prices: map[string]decimal.Decimal{
		priceKey(symbol, createdAt): dec(start),
		priceKey(symbol, endDate):   dec(end),
	}}
}

// ---------------------------------------------------------------------------
// Single-prediction evaluation
// ---------------------------------------------------------------------------

func TestEvaluate_BullishBigMove(t *testing.T) {
	// startPrice=100, endPrice=112: +12%, correct, accuracy 100, delta +10
	preds := &fakePredictionStore{evaluatable: []*models.Prediction{
		makePrediction(1, 42, "AAPL", models.PredictionBullish, createdAt, endDate),
	}}
	pub := &fakePublisher{}
	engine := newTestEngine(preds, pricesFor("AAPL", "100", "112"), &fakeStatsStore{}, pub)

	summary, err := engine.EvaluateActivePredictions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &models.EvaluationSummary{Total: 1, Evaluated: 1, Errors: 0}, summary)

	require.Len(t, preds.finalized, 1)
	call := preds.finalized[0]
	assert.Equal(t, 1, call.PredictionID)
	assert.Equal(t, 42, call.UserID)
	assert.True(t, call.Accuracy.Equal(dec("100")), "accuracy = %s", call.Accuracy)
	assert.Equal(t, 10, call.ReputationDelta)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "PREDICTION_EVALUATED", pub.events[0].EventType)
	assert.Equal(t, "AAPL", pub.events[0].Symbol)
}

func TestEvaluate_BearishFlatMarketIsIncorrect(t *testing.T) {
	// startPrice=50, endPrice=50: 0%, flat counts as wrong, accuracy 20, delta -2
	preds := &fakePredictionStore{evaluatable: []*models.Prediction{
		makePrediction(2, 7, "SOFI", models.PredictionBearish, createdAt, endDate),
	}}
	engine := newTestEngine(preds, pricesFor("SOFI", "50", "50"), &fakeStatsStore{}, nil)

	summary, err := engine.EvaluateActivePredictions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Evaluated)

	require.Len(t, preds.finalized, 1)
	assert.True(t, preds.finalized[0].Accuracy.Equal(dec("20")), "accuracy = %s", preds.finalized[0].Accuracy)
	assert.Equal(t, -2, preds.finalized[0].ReputationDelta)
}

func TestEvaluate_BullishSmallDrop(t *testing.T) {
	// startPrice=100, endPrice=97: -3%, incorrect, accuracy 15, delta -2
	preds := &fakePredictionStore{evaluatable: []*models.Prediction{
		makePrediction(3, 9, "GOOG", models.PredictionBullish, createdAt, endDate),
	}}
	engine := newTestEngine(preds, pricesFor("GOOG", "100", "97"), &fakeStatsStore{}, nil)

	summary, err := engine.EvaluateActivePredictions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Evaluated)

	require.Len(t, preds.finalized, 1)
	assert.True(t, preds.finalized[0].Accuracy.Equal(dec("15")), "accuracy = %s", preds.finalized[0].Accuracy)
	assert.Equal(t, -2, preds.finalized[0].ReputationDelta)
}

func TestEvaluate_BearishCorrectDrop(t *testing.T) {
	// -6% drop called bearish: correct, accuracy 90, delta +10
	preds := &fakePredictionStore{evaluatable: []*models.Prediction{
		makePrediction(4, 9, "XLE", models.PredictionBearish, createdAt, endDate),
	}}
	engine := newTestEngine(preds, pricesFor("XLE", "100", "94"), &fakeStatsStore{}, nil)

	_, err := engine.EvaluateActivePredictions(context.Background())
	require.NoError(t, err)

	require.Len(t, preds.finalized, 1)
	assert.True(t, preds.finalized[0].Accuracy.Equal(dec("90")), "accuracy = %s", preds.finalized[0].Accuracy)
	assert.Equal(t, 10, preds.finalized[0].ReputationDelta)
}

func TestEvaluate_ZeroStartPriceFails(t *testing.T) {
	preds := &fakePredictionStore{evaluatable: []*models.Prediction{
		makePrediction(5, 1, "ZERO", models.PredictionBullish, createdAt, endDate),
	}}
	engine := newTestEngine(preds, pricesFor("ZERO", "0", "10"), &fakeStatsStore{}, nil)

	summary, err := engine.EvaluateActivePredictions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Errors)
	assert.Empty(t, preds.finalized)
}

// ---------------------------------------------------------------------------
// Batch behavior
// ---------------------------------------------------------------------------

func TestEvaluateActivePredictions_PartialFailure(t *testing.T) {
	// 5 eligible predictions, one with no price data: evaluated=4, errors=1
	prices := &fakePriceLookup{prices: map[string]decimal.Decimal{}}
	var candidates []*models.Prediction
	for i := 1; i <= 5; i++ {
		symbol := fmt.Sprintf("SYM%d", i)
		candidates = append(candidates, makePrediction(i, 100+i, symbol, models.PredictionBullish, createdAt, endDate))
		if i == 3 {
			continue // SYM3 gets no price rows at all
		}
		prices.prices[priceKey(symbol, createdAt)] = dec("100")
		prices.prices[priceKey(symbol, endDate)] = dec("103")
	}
	preds := &fakePredictionStore{evaluatable: candidates}
	engine := newTestEngine(preds, prices, &fakeStatsStore{}, nil)

	summary, err := engine.EvaluateActivePredictions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &models.EvaluationSummary{Total: 5, Evaluated: 4, Errors: 1}, summary)

	// Only the 4 successful evaluations produced reputation updates
	require.Len(t, preds.finalized, 4)
	for _, call := range preds.finalized {
		assert.NotEqual(t, 3, call.PredictionID)
		assert.True(t, call.Accuracy.Equal(dec("85")), "accuracy = %s", call.Accuracy)
		assert.Equal(t, 5, call.ReputationDelta)
	}
}

func TestEvaluateActivePredictions_AlreadyEvaluatedIsNotAnError(t *testing.T) {
	// A concurrent run committed prediction 1 first; the conditional update
	// reports it and the batch treats it as done, not failed.
	preds := &fakePredictionStore{
		evaluatable: []*models.Prediction{
			makePrediction(1, 2, "AAPL", models.PredictionBullish, createdAt, endDate),
		},
		finalizeErr: map[int]error{1: fmt.Errorf("prediction 1: %w", database.ErrAlreadyEvaluated)},
	}
	engine := newTestEngine(preds, pricesFor("AAPL", "100", "110"), &fakeStatsStore{}, nil)

	summary, err := engine.EvaluateActivePredictions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Evaluated)
	assert.Equal(t, 0, summary.Errors)
}

func TestEvaluateActivePredictions_FinalizeFailureCounted(t *testing.T) {
	preds := &fakePredictionStore{
		evaluatable: []*models.Prediction{
			makePrediction(1, 2, "AAPL", models.PredictionBullish, createdAt, endDate),
		},
		finalizeErr: map[int]error{1: assert.AnError},
	}
	engine := newTestEngine(preds, pricesFor("AAPL", "100", "110"), &fakeStatsStore{}, nil)

	summary, err := engine.EvaluateActivePredictions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Errors)
}

func TestEvaluateActivePredictions_SelectFailure(t *testing.T) {
	preds := &fakePredictionStore{selectErr: assert.AnError}
	engine := newTestEngine(preds, &fakePriceLookup{}, &fakeStatsStore{}, nil)

	_, err := engine.EvaluateActivePredictions(context.Background())
	require.Error(t, err)
}

func TestEvaluateActivePredictions_EmptyBatch(t *testing.T) {
	engine := newTestEngine(&fakePredictionStore{}, &fakePriceLookup{}, &fakeStatsStore{}, nil)

	summary, err := engine.EvaluateActivePredictions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &models.EvaluationSummary{}, summary)
}

func TestEvaluateActivePredictions_PublishFailureDoesNotFailEvaluation(t *testing.T) {
	preds := &fakePredictionStore{evaluatable: []*models.Prediction{
		makePrediction(1, 2, "AAPL", models.PredictionBullish, createdAt, endDate),
	}}
	pub := &fakePublisher{err: assert.AnError}
	engine := newTestEngine(preds, pricesFor("AAPL", "100", "110"), &fakeStatsStore{}, pub)

	summary, err := engine.EvaluateActivePredictions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Evaluated)
	assert.Len(t, preds.finalized, 1)
}

func TestEvaluateActivePredictions_CancelledBetweenPredictions(t *testing.T) {
	var candidates []*models.Prediction
	prices := &fakePriceLookup{prices: map[string]decimal.Decimal{
		priceKey("AAPL", createdAt): dec("100"),
		priceKey("AAPL", endDate):   dec("110"),
	}}
	for i := 1; i <= 3; i++ {
		candidates = append(candidates, makePrediction(i, 1, "AAPL", models.PredictionBullish, createdAt, endDate))
	}
	preds := &fakePredictionStore{evaluatable: candidates}
	engine := newTestEngine(preds, prices, &fakeStatsStore{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := engine.EvaluateActivePredictions(ctx)
	require.Error(t, err)
	// Nothing was half-updated; committed work stays committed
	assert.Equal(t, summary.Evaluated, len(preds.finalized))
}

// ---------------------------------------------------------------------------
// Aggregate reads
// ---------------------------------------------------------------------------

func TestTopUsers(t *testing.T) {
	stats := &fakeStatsStore{topUsers: []*models.LeaderboardEntry{
		{UserID: 1, Username: "alice", ReputationScore: 42, TotalPredictions: 10, AverageAccuracy: 81.5},
		{UserID: 2, Username: "bob", ReputationScore: 7, TotalPredictions: 3, AverageAccuracy: 0},
	}}
	engine := newTestEngine(&fakePredictionStore{}, &fakePriceLookup{}, stats, nil)

	entries := engine.TopUsers(10)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].Username)
}

func TestTopUsers_ErrorDegradesToEmpty(t *testing.T) {
	engine := newTestEngine(&fakePredictionStore{}, &fakePriceLookup{}, &fakeStatsStore{topErr: assert.AnError}, nil)

	entries := engine.TopUsers(10)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestUserStats(t *testing.T) {
	stats := &fakeStatsStore{stats: map[int]*models.UserPredictionStats{
		5: {UserID: 5, Total: 4, Accurate: 2, Inaccurate: 1, Pending: 1, AverageAccuracy: 63.3, ReputationScore: 9},
	}}
	engine := newTestEngine(&fakePredictionStore{}, &fakePriceLookup{}, stats, nil)

	got := engine.UserStats(5)
	assert.Equal(t, 4, got.Total)
	assert.Equal(t, 9, got.ReputationScore)
}

func TestUserStats_UnknownUserReturnsZeroes(t *testing.T) {
	engine := newTestEngine(&fakePredictionStore{}, &fakePriceLookup{}, &fakeStatsStore{}, nil)

	got := engine.UserStats(999)
	assert.Equal(t, &models.UserPredictionStats{UserID: 999}, got)
}

func TestUserStats_QueryErrorDegradesToZeroes(t *testing.T) {
	engine := newTestEngine(&fakePredictionStore{}, &fakePriceLookup{}, &fakeStatsStore{statsErr: assert.AnError}, nil)

	got := engine.UserStats(5)
	assert.Equal(t, &models.UserPredictionStats{UserID: 5}, got)
}
