package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"backtester/internal/model"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 16 * time.Second
)

// BinanceStreamClient implements the StreamClient interface for the Binance
// all-market mini-ticker stream.
type BinanceStreamClient struct {
	logger *slog.Logger
	url    string
}

// NewBinanceStreamClient creates a new BinanceStreamClient.
func NewBinanceStreamClient(logger *slog.Logger, url string) *BinanceStreamClient {
	return &BinanceStreamClient{logger: logger, url: url}
}

func (b *BinanceStreamClient) GetName() string {
	return "binance"
}

// StartStream connects to the Binance WebSocket API and streams 24h mini-ticker
// updates until ctx is cancelled, reconnecting with backoff on failure.
func (b *BinanceStreamClient) StartStream(ctx context.Context, tickChan chan<- model.PriceTick) error {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			b.logger.Info("BinanceClient: context cancelled, shutting down")
			return nil
		}

		b.logger.Info("BinanceClient: connecting to WebSocket", "url", b.url, "backoff", backoff)
		c, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
		if err != nil {
			b.logger.Error("BinanceClient: WebSocket connection failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
				backoff = min(backoff*2, maxBackoff)
			}
			continue
		}

		// Reset backoff on successful connection
		backoff = initialBackoff
		b.logger.Info("BinanceClient: connected successfully")

		if err := b.readLoop(ctx, c, tickChan); err != nil && ctx.Err() == nil {
			b.logger.Error("BinanceClient: failed to read message", "error", err)
		}
	}
}

// readLoop forwards ticks until the connection fails or ctx ends.
func (b *BinanceStreamClient) readLoop(ctx context.Context, c *websocket.Conn, tickChan chan<- model.PriceTick) error {
	done := make(chan struct{})
	defer close(done)
	defer c.Close()

	// ReadMessage blocks; closing the connection is what unblocks it on cancel.
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			return err
		}

		ticks, err := parseMiniTickers(message)
		if err != nil {
			b.logger.Warn("BinanceClient: failed to parse message", "error", err)
			continue
		}

		for _, tick := range ticks {
			select {
			case tickChan <- tick:
			case <-ctx.Done():
				b.logger.Info("BinanceClient: context cancelled while sending price tick")
				return nil
			}
		}
	}
}

type miniTicker struct {
	EventType string          `json:"e"`
	EventTime int64           `json:"E"`
	Symbol    string          `json:"s"`
	Close     decimal.Decimal `json:"c"`
	Open      decimal.Decimal `json:"o"`
	High      decimal.Decimal `json:"h"`
	Low       decimal.Decimal `json:"l"`
	Volume    decimal.Decimal `json:"v"`
}

// parseMiniTickers accepts either the array form of the all-market stream
// or a single-symbol object.
func parseMiniTickers(message []byte) ([]model.PriceTick, error) {
	var raw []miniTicker
	if trimmed := bytes.TrimSpace(message); len(trimmed) > 0 && trimmed[0] == '{' {
		var one miniTicker
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, err
		}
		raw = []miniTicker{one}
	} else if err := json.Unmarshal(message, &raw); err != nil {
		return nil, err
	}

	ticks := make([]model.PriceTick, 0, len(raw))
	for _, m := range raw {
		if m.Symbol == "" {
			continue
		}
		ticks = append(ticks, model.PriceTick{
			Exchange:  "binance",
			Symbol:    m.Symbol,
			EventTime: m.EventTime,
			Open:      m.Open,
			High:      m.High,
			Low:       m.Low,
			Close:     m.Close,
			Volume:    m.Volume,
		})
	}
	return ticks, nil
}
