package exchange

import (
	"context"

	"backtester/internal/model"
)

// StreamClient streams live ticker updates from an exchange.
type StreamClient interface {
	GetName() string
	StartStream(ctx context.Context, tickChan chan<- model.PriceTick) error
}

// MarketDataProvider returns historical candles for [startMs, endMs),
// ascending by timestamp and free of duplicates. An empty result is valid.
type MarketDataProvider interface {
	GetCandles(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]model.Candle, error)
}

// MarketInfoProvider lists tradable symbols and their 24h statistics.
type MarketInfoProvider interface {
	ListSymbols(ctx context.Context) ([]string, error)
	Get24hStats(ctx context.Context) ([]model.SymbolStats, error)
}
