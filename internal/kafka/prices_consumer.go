package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/prediction-service/internal/database"
	"github.com/trogers1052/prediction-service/internal/models"
)

// PriceRepository defines the database operations the price consumer needs
type PriceRepository interface {
	GetStock(symbol string) (*models.Stock, error)
	UpsertStockBasic(symbol, name string) error
	UpsertStockPrice(price *models.StockPrice) error
}

// PriceEvent represents a daily price event from the market-data pipeline
type PriceEvent struct {
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	Data      PriceEventData `json:"data"`
}

// PriceEventData holds one day's prices for one symbol
type PriceEventData struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name,omitempty"`
	Date   string          `json:"date"` // YYYY-MM-DD
	Open   decimal.Decimal `json:"open,omitempty"`
	High   decimal.Decimal `json:"high,omitempty"`
	Low    decimal.Decimal `json:"low,omitempty"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume,omitempty"`
}

// PricesConsumer handles consuming daily price events from Kafka
type PricesConsumer struct {
	reader *kafka.Reader
	repo   PriceRepository
	logger zerolog.Logger
}

// NewPricesConsumer creates a new Kafka consumer for price events
func NewPricesConsumer(brokers []string, topic, groupID string, repo PriceRepository, logger zerolog.Logger) *PricesConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID + "-prices",
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &PricesConsumer{
		reader: reader,
		repo:   repo,
		logger: logger.With().Str("component", "prices_consumer").Logger(),
	}
}

// Start begins consuming messages from Kafka
func (c *PricesConsumer) Start(ctx context.Context) error {
	c.logger.Info().Str("topic", c.reader.Config().Topic).Msg("Starting prices consumer")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Prices consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				c.logger.Error().Err(err).Msg("Error reading price message")
				continue
			}

			if err := c.processMessage(msg); err != nil {
				c.logger.Error().Err(err).Msg("Error processing price message")
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *PricesConsumer) processMessage(msg kafka.Message) error {
	var event PriceEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal price event: %w", err)
	}

	if event.EventType != "PRICE_RECORDED" {
		// Other event types on the topic are not ours to handle
		return nil
	}

	return c.handlePriceRecorded(event.Data)
}

func (c *PricesConsumer) handlePriceRecorded(data PriceEventData) error {
	symbol := strings.ToUpper(strings.TrimSpace(data.Symbol))
	if symbol == "" {
		return fmt.Errorf("price event has no symbol")
	}

	date, err := time.Parse("2006-01-02", data.Date)
	if err != nil {
		return fmt.Errorf("failed to parse price date %q: %w", data.Date, err)
	}

	stock, err := c.repo.GetStock(symbol)
	if errors.Is(err, database.ErrStockNotFound) {
		// First time we see this symbol; register it so the price has a home
		name := data.Name
		if name == "" {
			name = symbol
		}
		if err := c.repo.UpsertStockBasic(symbol, name); err != nil {
			return err
		}
		stock, err = c.repo.GetStock(symbol)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve stock %s: %w", symbol, err)
	}

	price := &models.StockPrice{
		StockID:    stock.ID,
		PriceDate:  date,
		OpenPrice:  data.Open,
		HighPrice:  data.High,
		LowPrice:   data.Low,
		ClosePrice: data.Close,
		Volume:     data.Volume,
	}
	if err := c.repo.UpsertStockPrice(price); err != nil {
		return err
	}

	c.logger.Debug().Str("symbol", symbol).Str("date", data.Date).
		Str("close", data.Close.String()).Msg("Recorded price")

	return nil
}

// Close closes the Kafka reader
func (c *PricesConsumer) Close() error {
	return c.reader.Close()
}
