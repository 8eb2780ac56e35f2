package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/prediction-service/internal/database"
	"github.com/trogers1052/prediction-service/internal/models"
	"github.com/trogers1052/prediction-service/internal/redis"
)

// Store defines the database operations the handlers need
type Store interface {
	CreatePrediction(p *models.Prediction) error
	GetPredictionByID(id int) (*models.Prediction, error)
	ListPredictions(userID *int, symbol string, active *bool, limit int) ([]*models.Prediction, error)
	DeletePrediction(id int) error
	GetStock(symbol string) (*models.Stock, error)
	GetAllStocks() ([]*models.Stock, error)
	GetRecentPrices(stockID, days int) ([]*models.StockPrice, error)
	GetUserByID(id int) (*models.User, error)
	Ping() error
}

// ScoringService defines the scoring engine operations the handlers need
type ScoringService interface {
	EvaluateActivePredictions(ctx context.Context) (*models.EvaluationSummary, error)
	TopUsers(limit int) []*models.LeaderboardEntry
	UserStats(userID int) *models.UserPredictionStats
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store          Store
	scoring        ScoringService
	redis          *redis.Client // optional
	leaderboardTTL time.Duration
	logger         zerolog.Logger
}

// NewHandler creates a new Handler. redisClient may be nil.
func NewHandler(store Store, scoring ScoringService, redisClient *redis.Client, leaderboardTTL time.Duration, logger zerolog.Logger) *Handler {
	if leaderboardTTL == 0 {
		leaderboardTTL = time.Minute
	}
	return &Handler{
		store:          store,
		scoring:        scoring,
		redis:          redisClient,
		leaderboardTTL: leaderboardTTL,
		logger:         logger.With().Str("component", "api").Logger(),
	}
}

// CreatePrediction handles POST /predictions
func (h *Handler) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      int    `json:"user_id"`
		Symbol      string `json:"symbol"`
		Type        string `json:"prediction_type"`
		TargetPrice string `json:"target_price,omitempty"`
		EndDate     string `json:"end_date"`
		Reasoning   string `json:"reasoning"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	predictionType := models.PredictionType(strings.ToLower(req.Type))
	if !predictionType.Valid() {
		http.Error(w, "prediction_type must be bullish or bearish", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Reasoning) == "" {
		http.Error(w, "reasoning is required", http.StatusBadRequest)
		return
	}

	endDate, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		http.Error(w, "end_date must be RFC3339", http.StatusBadRequest)
		return
	}
	if !endDate.After(time.Now()) {
		http.Error(w, "end_date must be in the future", http.StatusBadRequest)
		return
	}

	var targetPrice *decimal.Decimal
	if req.TargetPrice != "" {
		d, err := decimal.NewFromString(req.TargetPrice)
		if err != nil || !d.IsPositive() {
			http.Error(w, "target_price must be a positive number", http.StatusBadRequest)
			return
		}
		targetPrice = &d
	}

	if _, err := h.store.GetUserByID(req.UserID); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	stock, err := h.store.GetStock(req.Symbol)
	if err != nil {
		if errors.Is(err, database.ErrStockNotFound) {
			http.Error(w, "stock not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	prediction := &models.Prediction{
		UserID:      req.UserID,
		StockID:     stock.ID,
		StockSymbol: stock.Symbol,
		Type:        predictionType,
		TargetPrice: targetPrice,
		Reasoning:   req.Reasoning,
		EndDate:     endDate,
	}
	if err := h.store.CreatePrediction(prediction); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, prediction)
}

// GetPrediction handles GET /predictions/{id}
func (h *Handler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid prediction id", http.StatusBadRequest)
		return
	}

	prediction, err := h.store.GetPredictionByID(id)
	if err != nil {
		if errors.Is(err, database.ErrPredictionNotFound) {
			http.Error(w, "prediction not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, prediction)
}

// ListPredictions handles GET /predictions
func (h *Handler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var userID *int
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid user_id", http.StatusBadRequest)
			return
		}
		userID = &id
	}

	var active *bool
	if v := q.Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid active flag", http.StatusBadRequest)
			return
		}
		active = &b
	}

	limit := 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	predictions, err := h.store.ListPredictions(userID, strings.ToUpper(q.Get("symbol")), active, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if predictions == nil {
		predictions = []*models.Prediction{}
	}

	respondJSON(w, http.StatusOK, predictions)
}

// DeletePrediction handles DELETE /predictions/{id}
func (h *Handler) DeletePrediction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid prediction id", http.StatusBadRequest)
		return
	}

	prediction, err := h.store.GetPredictionByID(id)
	if err != nil {
		if errors.Is(err, database.ErrPredictionNotFound) {
			http.Error(w, "prediction not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.store.DeletePrediction(id); err != nil {
		if errors.Is(err, database.ErrPredictionNotFound) {
			http.Error(w, "prediction not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// The owner's pending count just changed
	if h.redis != nil {
		if err := h.redis.InvalidateUserStats(r.Context(), prediction.UserID); err != nil {
			h.logger.Warn().Err(err).Msg("User stats cache invalidation failed")
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetAllStocks handles GET /stocks
func (h *Handler) GetAllStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.store.GetAllStocks()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, stocks)
}

// GetStock handles GET /stocks/{symbol}
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	stock, err := h.store.GetStock(symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, stock)
}

// GetStockPrices handles GET /stocks/{symbol}/prices
func (h *Handler) GetStockPrices(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	stock, err := h.store.GetStock(symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}

	prices, err := h.store.GetRecentPrices(stock.ID, days)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if prices == nil {
		prices = []*models.StockPrice{}
	}

	respondJSON(w, http.StatusOK, prices)
}

// GetTopUsers handles GET /users/top
func (h *Handler) GetTopUsers(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	if h.redis != nil {
		if cached, err := h.redis.GetLeaderboard(r.Context(), limit); err == nil {
			respondJSON(w, http.StatusOK, cached)
			return
		} else if !redis.IsCacheMiss(err) {
			h.logger.Warn().Err(err).Msg("Leaderboard cache read failed")
		}
	}

	entries := h.scoring.TopUsers(limit)

	if h.redis != nil {
		if err := h.redis.SetLeaderboard(r.Context(), limit, entries, h.leaderboardTTL); err != nil {
			h.logger.Warn().Err(err).Msg("Leaderboard cache write failed")
		}
	}

	respondJSON(w, http.StatusOK, entries)
}

// GetUserStats handles GET /users/{id}/stats
func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	if h.redis != nil {
		if cached, err := h.redis.GetUserStats(r.Context(), id); err == nil {
			respondJSON(w, http.StatusOK, cached)
			return
		} else if !redis.IsCacheMiss(err) {
			h.logger.Warn().Err(err).Msg("User stats cache read failed")
		}
	}

	stats := h.scoring.UserStats(id)

	if h.redis != nil {
		if err := h.redis.SetUserStats(r.Context(), stats, h.leaderboardTTL); err != nil {
			h.logger.Warn().Err(err).Msg("User stats cache write failed")
		}
	}

	respondJSON(w, http.StatusOK, stats)
}

// TriggerEvaluation handles POST /admin/evaluate
func (h *Handler) TriggerEvaluation(w http.ResponseWriter, r *http.Request) {
	summary, err := h.scoring.EvaluateActivePredictions(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  map[string]string{},
	}
	services := health["services"].(map[string]string)
	allHealthy := true

	// Check database
	if h.store != nil {
		if err := h.store.Ping(); err != nil {
			services["postgres"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			services["postgres"] = "healthy"
		}
	} else {
		services["postgres"] = "not configured"
		allHealthy = false
	}

	// Check Redis
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	if !allHealthy {
		health["status"] = "degraded"
	}

	respondJSON(w, http.StatusOK, health)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
