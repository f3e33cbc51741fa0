// Package marketdata sits between the exchange clients and the analysis
// service: a live ticker board and a caching candle provider.
package marketdata

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"backtester/internal/metrics"
	"backtester/internal/model"
)

// Board keeps the latest 24h ticker per symbol.
type Board struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu           sync.RWMutex
	latestPrices map[string]model.PriceTick
}

// NewBoard creates an empty Board.
func NewBoard(logger *slog.Logger, m *metrics.Metrics) *Board {
	return &Board{
		logger:       logger,
		metrics:      m,
		latestPrices: make(map[string]model.PriceTick),
	}
}

// Run consumes ticks until ctx ends or ticks is closed.
func (b *Board) Run(ctx context.Context, ticks <-chan model.PriceTick) {
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Board stopped", "symbols", b.Len())
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			b.ProcessTick(tick)
		}
	}
}

// ProcessTick records tick unless a newer one for the same symbol is already held.
func (b *Board) ProcessTick(tick model.PriceTick) {
	b.metrics.RecordTick()

	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.latestPrices[tick.Symbol]; ok && prev.EventTime > tick.EventTime {
		return
	}
	b.latestPrices[tick.Symbol] = tick
}

// Stats returns the 24h statistics for symbol from its latest tick.
func (b *Board) Stats(symbol string) (model.SymbolStats, bool) {
	b.mu.RLock()
	tick, ok := b.latestPrices[symbol]
	b.mu.RUnlock()
	if !ok {
		return model.SymbolStats{}, false
	}
	return tickStats(tick), true
}

// Snapshot returns statistics for every symbol seen, sorted by symbol.
func (b *Board) Snapshot() []model.SymbolStats {
	b.mu.RLock()
	stats := make([]model.SymbolStats, 0, len(b.latestPrices))
	for _, tick := range b.latestPrices {
		stats = append(stats, tickStats(tick))
	}
	b.mu.RUnlock()

	sort.Slice(stats, func(i, j int) bool { return stats[i].Symbol < stats[j].Symbol })
	return stats
}

// Len returns the number of symbols on the board.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.latestPrices)
}

func tickStats(t model.PriceTick) model.SymbolStats {
	change := t.Close.Sub(t.Open)
	changePct := decimal.Zero
	if !t.Open.IsZero() {
		changePct = change.Div(t.Open).Shift(2).Round(3)
	}
	return model.SymbolStats{
		Symbol:             t.Symbol,
		LastPrice:          t.Close,
		OpenPrice:          t.Open,
		HighPrice:          t.High,
		LowPrice:           t.Low,
		Volume:             t.Volume,
		PriceChange:        change,
		PriceChangePercent: changePct,
	}
}
