package database

import (
	"context"

	"backtester/internal/model"
)

// CandleRepository defines the storage operations of the candle cache.
type CandleRepository interface {
	Migrate(ctx context.Context) error
	// SaveCandles stores candles and records [startMs, endMs) as fully fetched.
	SaveCandles(ctx context.Context, symbol, interval string, startMs, endMs int64, candles []model.Candle) error
	// LoadCandles returns the stored candles in [startMs, endMs). covered is
	// false when no recorded fetch spans the whole range.
	LoadCandles(ctx context.Context, symbol, interval string, startMs, endMs int64) (candles []model.Candle, covered bool, err error)
}
