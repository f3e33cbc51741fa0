package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"backtester/internal/config"
	"backtester/internal/exchange"
	"backtester/internal/metrics"
	"backtester/internal/model"
	"backtester/internal/simulator"
)

var (
	ErrInvalidDate = errors.New("invalid date format, use ISO format (YYYY-MM-DDTHH:MM:SS)")
	ErrUpstream    = errors.New("market data unavailable")
)

// Request is one analysis request. Nil numeric fields and empty strings
// take the configured strategy defaults; the dates are required.
type Request struct {
	InitialBalance   *float64
	TradeAmount      *float64
	ThresholdPercent *float64
	CommissionRate   *float64
	StartDate        string
	EndDate          string
	Symbol           string
	Interval         string
}

// TickerBoard is the live statistics source consulted before the REST API.
type TickerBoard interface {
	Stats(symbol string) (model.SymbolStats, bool)
	Snapshot() []model.SymbolStats
	Len() int
}

// Service runs strategy analyses over exchange history.
type Service struct {
	candles  exchange.MarketDataProvider
	info     exchange.MarketInfoProvider
	board    TickerBoard
	defaults config.StrategyConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewService creates a new Service. board may be nil.
func NewService(
	candles exchange.MarketDataProvider,
	info exchange.MarketInfoProvider,
	board TickerBoard,
	defaults config.StrategyConfig,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		candles:  candles,
		info:     info,
		board:    board,
		defaults: defaults,
		logger:   logger.With("component", "analysis"),
		metrics:  m,
	}
}

// Analyze fetches the requested history and simulates the strategy over it.
func (s *Service) Analyze(ctx context.Context, req Request) (result *model.AnalysisResult, err error) {
	started := time.Now()
	candleCount := 0
	defer func() {
		trades := 0
		if result != nil {
			trades = len(result.Trades)
		}
		s.metrics.ObserveAnalysis(analysisStatus(err), time.Since(started).Seconds(), candleCount, trades)
	}()

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		symbol = s.defaults.Symbol
	}
	interval := strings.TrimSpace(req.Interval)
	if interval == "" {
		interval = s.defaults.Interval
	}
	params := s.parameters(req)

	start, err := ParseDate(req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("start_date: %w", err)
	}
	end, err := ParseDate(req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("end_date: %w", err)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start_date must be before end_date", ErrInvalidDate)
	}

	if err := simulator.ValidateParameters(params); err != nil {
		return nil, err
	}
	if _, err := exchange.IntervalMillis(interval); err != nil {
		return nil, err
	}

	startMs, endMs := start.UnixMilli(), end.UnixMilli()
	s.logger.Info("Starting analysis",
		"symbol", symbol,
		"interval", interval,
		"start", start.Format(time.RFC3339),
		"end", end.Format(time.RFC3339),
	)

	candles, err := s.candles.GetCandles(ctx, symbol, interval, startMs, endMs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	candleCount = len(candles)

	sim, err := simulator.Run(candles, params)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Analysis complete",
		"symbol", symbol,
		"interval", interval,
		"candles", candleCount,
		"trades", len(sim.Trades),
		"final_balance", sim.Summary.FinalBalance.StringFixed(2),
		"roi_percent", sim.Summary.ROIPercent.StringFixed(2),
		"duration", time.Since(started),
	)

	return &model.AnalysisResult{
		Symbol:           symbol,
		Interval:         interval,
		StartTime:        startMs,
		EndTime:          endMs,
		CandleCount:      candleCount,
		Parameters:       params,
		SimulationResult: *sim,
	}, nil
}

func (s *Service) parameters(req Request) model.StrategyParameters {
	pick := func(v *float64, def float64) decimal.Decimal {
		if v != nil {
			return decimal.NewFromFloat(*v)
		}
		return decimal.NewFromFloat(def)
	}
	return model.StrategyParameters{
		InitialBalance:   pick(req.InitialBalance, s.defaults.InitialBalance),
		TradeAmount:      pick(req.TradeAmount, s.defaults.TradeAmount),
		ThresholdPercent: pick(req.ThresholdPercent, s.defaults.ThresholdPercent),
		CommissionRate:   pick(req.CommissionRate, s.defaults.CommissionRate),
	}
}

// Symbols lists USDT trading pairs with their 24h statistics, sorted by
// symbol. Live board values are preferred; symbols the board lacks fall
// back to the REST statistics, and symbols with neither are omitted.
// When the symbol list itself is unavailable the board's USDT pairs are served.
func (s *Service) Symbols(ctx context.Context) ([]model.SymbolStats, error) {
	symbols, err := s.info.ListSymbols(ctx)
	if err != nil {
		if s.board == nil || s.board.Len() == 0 {
			return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
		}
		s.logger.Warn("Exchange info unavailable, serving board snapshot", "error", err)
		var out []model.SymbolStats
		for _, st := range s.board.Snapshot() {
			if strings.HasSuffix(st.Symbol, "USDT") {
				out = append(out, st)
			}
		}
		return out, nil
	}

	var (
		out     []model.SymbolStats
		missing []string
	)
	for _, sym := range symbols {
		if s.board != nil && s.board.Len() > 0 {
			if st, ok := s.board.Stats(sym); ok {
				out = append(out, st)
				continue
			}
		}
		missing = append(missing, sym)
	}

	if len(missing) > 0 {
		rest, err := s.info.Get24hStats(ctx)
		if err != nil {
			if len(out) == 0 {
				return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
			}
			s.logger.Warn("24h stats unavailable, serving board data only", "error", err)
		}
		bySymbol := make(map[string]model.SymbolStats, len(rest))
		for _, st := range rest {
			bySymbol[st.Symbol] = st
		}
		for _, sym := range missing {
			if st, ok := bySymbol[sym]; ok {
				out = append(out, st)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func analysisStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, simulator.ErrNoData):
		return "no_data"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	case errors.Is(err, ErrInvalidDate),
		errors.Is(err, simulator.ErrInvalidParameter),
		errors.Is(err, exchange.ErrUnsupportedInterval):
		return "invalid"
	default:
		return "error"
	}
}
