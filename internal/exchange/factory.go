package exchange

import (
	"fmt"
	"log/slog"

	"backtester/internal/config"
)

// NewStreamClient creates a ticker stream client based on the given exchange name.
func NewStreamClient(name string, logger *slog.Logger, cfg config.BinanceConfig) (StreamClient, error) {
	switch name {
	case "binance":
		return NewBinanceStreamClient(logger.With("component", "binance_stream"), cfg.StreamURL), nil
	default:
		return nil, fmt.Errorf("unknown exchange: %s", name)
	}
}
