package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"backtester/internal/config"
	"backtester/internal/metrics"
	"backtester/internal/model"
)

// BinanceRESTClient fetches historical klines and market info from the
// Binance spot REST API.
type BinanceRESTClient struct {
	client  *binance.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics

	chunkSize      int
	maxConcurrency int
	maxRetries     int
	retryBackoff   time.Duration
}

// NewBinanceRESTClient creates a new BinanceRESTClient.
func NewBinanceRESTClient(cfg config.BinanceConfig, logger *slog.Logger, m *metrics.Metrics) *BinanceRESTClient {
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.BaseURL != "" {
		client.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	client.HTTPClient = &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	rps := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		rps = rate.Inf
	}

	return &BinanceRESTClient{
		client:         client,
		limiter:        rate.NewLimiter(rps, max(cfg.Burst, 1)),
		logger:         logger.With("component", "binance_rest"),
		metrics:        m,
		chunkSize:      max(cfg.ChunkSize, 1),
		maxConcurrency: max(cfg.MaxConcurrency, 1),
		maxRetries:     max(cfg.MaxRetries, 0),
		retryBackoff:   cfg.RetryBackoff,
	}
}

var (
	_ MarketDataProvider = (*BinanceRESTClient)(nil)
	_ MarketInfoProvider = (*BinanceRESTClient)(nil)
)

// GetCandles fetches [startMs, endMs) in chunks of chunkSize candles.
// Chunks are requested in parallel; any chunk that still fails after
// retries fails the whole call.
func (c *BinanceRESTClient) GetCandles(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]model.Candle, error) {
	step, err := IntervalMillis(interval)
	if err != nil {
		return nil, err
	}

	ranges := splitRange(startMs, endMs, step*int64(c.chunkSize))
	if len(ranges) == 0 {
		return nil, nil
	}
	if len(ranges) > 1 {
		c.logger.Info("Fetching klines in chunks",
			"symbol", symbol,
			"interval", interval,
			"chunks", len(ranges),
			"start", startMs,
			"end", endMs,
		)
	}

	results := make([][]model.Candle, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrency)
	for i, r := range ranges {
		g.Go(func() error {
			candles, err := c.fetchChunk(gctx, symbol, interval, r)
			if err != nil {
				return fmt.Errorf("fetch %s %s chunk %d/%d: %w", symbol, interval, i+1, len(ranges), err)
			}
			results[i] = candles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candles := mergeCandles(results)
	c.logger.Debug("Fetched klines", "symbol", symbol, "interval", interval, "candles", len(candles))
	return candles, nil
}

func (c *BinanceRESTClient) fetchChunk(ctx context.Context, symbol, interval string, r timeRange) ([]model.Candle, error) {
	var klines []*binance.Kline
	err := c.withRetry(ctx, "klines", func() error {
		var err error
		klines, err = c.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(r.start).
			EndTime(r.end - 1).
			Limit(c.chunkSize).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	candles := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		if k.OpenTime < r.start || k.OpenTime >= r.end {
			continue
		}
		candle, err := toCandle(k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// ListSymbols returns the trading symbols quoted in USDT, sorted.
func (c *BinanceRESTClient) ListSymbols(ctx context.Context) ([]string, error) {
	var info *binance.ExchangeInfo
	err := c.withRetry(ctx, "exchange_info", func() error {
		var err error
		info, err = c.client.NewExchangeInfoService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("exchange info: %w", err)
	}

	var symbols []string
	for _, s := range info.Symbols {
		if s.Status == "TRADING" && strings.HasSuffix(s.Symbol, "USDT") {
			symbols = append(symbols, s.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Get24hStats returns rolling 24h statistics for every symbol.
func (c *BinanceRESTClient) Get24hStats(ctx context.Context) ([]model.SymbolStats, error) {
	var raw []*binance.PriceChangeStats
	err := c.withRetry(ctx, "ticker_24hr", func() error {
		var err error
		raw, err = c.client.NewListPriceChangeStatsService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("24h stats: %w", err)
	}

	stats := make([]model.SymbolStats, 0, len(raw))
	for _, r := range raw {
		s, err := toSymbolStats(r)
		if err != nil {
			c.logger.Warn("Skipping malformed 24h stats", "symbol", r.Symbol, "error", err)
			continue
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// withRetry runs fn under the rate limiter, retrying with exponential
// backoff up to maxRetries times.
func (c *BinanceRESTClient) withRetry(ctx context.Context, endpoint string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := fn()
		c.metrics.RecordUpstream(endpoint, err)
		if err == nil {
			return nil
		}
		if attempt >= c.maxRetries || ctx.Err() != nil {
			return err
		}

		wait := c.retryBackoff << attempt
		c.logger.Warn("Binance request failed, retrying",
			"endpoint", endpoint,
			"attempt", attempt+1,
			"wait", wait,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func toCandle(k *binance.Kline) (model.Candle, error) {
	fields := [5]string{k.Open, k.High, k.Low, k.Close, k.Volume}
	var values [5]decimal.Decimal
	for i, f := range fields {
		v, err := decimal.NewFromString(f)
		if err != nil {
			return model.Candle{}, fmt.Errorf("parse kline %d: %w", k.OpenTime, err)
		}
		values[i] = v
	}
	return model.Candle{
		Timestamp: k.OpenTime,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

func toSymbolStats(r *binance.PriceChangeStats) (model.SymbolStats, error) {
	fields := [7]string{r.LastPrice, r.OpenPrice, r.HighPrice, r.LowPrice, r.Volume, r.PriceChange, r.PriceChangePercent}
	var values [7]decimal.Decimal
	for i, f := range fields {
		v, err := decimal.NewFromString(f)
		if err != nil {
			return model.SymbolStats{}, err
		}
		values[i] = v
	}
	return model.SymbolStats{
		Symbol:             r.Symbol,
		LastPrice:          values[0],
		OpenPrice:          values[1],
		HighPrice:          values[2],
		LowPrice:           values[3],
		Volume:             values[4],
		PriceChange:        values[5],
		PriceChangePercent: values[6],
	}, nil
}
