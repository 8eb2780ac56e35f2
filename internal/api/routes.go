package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check and metrics
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Prediction routes
	api.HandleFunc("/predictions", handler.CreatePrediction).Methods("POST")
	api.HandleFunc("/predictions", handler.ListPredictions).Methods("GET")
	api.HandleFunc("/predictions/{id:[0-9]+}", handler.GetPrediction).Methods("GET")
	api.HandleFunc("/predictions/{id:[0-9]+}", handler.DeletePrediction).Methods("DELETE")

	// Stock routes
	api.HandleFunc("/stocks", handler.GetAllStocks).Methods("GET")
	api.HandleFunc("/stocks/{symbol}", handler.GetStock).Methods("GET")
	api.HandleFunc("/stocks/{symbol}/prices", handler.GetStockPrices).Methods("GET")

	// Leaderboard and stats
	api.HandleFunc("/users/top", handler.GetTopUsers).Methods("GET")
	api.HandleFunc("/users/{id:[0-9]+}/stats", handler.GetUserStats).Methods("GET")

	// Admin
	api.HandleFunc("/admin/evaluate", handler.TriggerEvaluation).Methods("POST")

	return r
}
