package marketdata

import (
	"context"
	"log/slog"
	"time"

	"backtester/internal/database"
	"backtester/internal/exchange"
	"backtester/internal/metrics"
	"backtester/internal/model"
)

// CachedProvider serves closed candle history from a repository and falls
// back to the upstream provider for anything not yet stored.
type CachedProvider struct {
	upstream exchange.MarketDataProvider
	repo     database.CandleRepository
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

var _ exchange.MarketDataProvider = (*CachedProvider)(nil)

// NewCachedProvider wraps upstream with repo.
func NewCachedProvider(upstream exchange.MarketDataProvider, repo database.CandleRepository, logger *slog.Logger, m *metrics.Metrics) *CachedProvider {
	return &CachedProvider{
		upstream: upstream,
		repo:     repo,
		logger:   logger.With("component", "candle_cache"),
		metrics:  m,
		now:      time.Now,
	}
}

func (p *CachedProvider) GetCandles(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]model.Candle, error) {
	candles, covered, err := p.repo.LoadCandles(ctx, symbol, interval, startMs, endMs)
	switch {
	case err != nil:
		p.logger.Warn("Cache lookup failed, using upstream", "symbol", symbol, "interval", interval, "error", err)
	case covered:
		p.metrics.RecordCacheLookup(true)
		p.logger.Debug("Cache hit", "symbol", symbol, "interval", interval, "candles", len(candles))
		return candles, nil
	default:
		p.metrics.RecordCacheLookup(false)
	}

	candles, err = p.upstream.GetCandles(ctx, symbol, interval, startMs, endMs)
	if err != nil {
		return nil, err
	}

	// Only closed history is stable enough to cache.
	if endMs <= p.now().UnixMilli() {
		if err := p.repo.SaveCandles(ctx, symbol, interval, startMs, endMs, candles); err != nil {
			p.logger.Warn("Failed to store candles", "symbol", symbol, "interval", interval, "error", err)
		}
	}
	return candles, nil
}
