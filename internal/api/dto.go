package api

import (
	"time"

	"github.com/shopspring/decimal"

	"backtester/internal/analysis"
	"backtester/internal/model"
)

const dateTimeLayout = "2006-01-02 15:04:05"

type analyzeRequest struct {
	InitialBalance   *float64 `json:"initial_balance"`
	TradeAmount      *float64 `json:"trade_amount"`
	ThresholdPercent *float64 `json:"threshold_percent"`
	CommissionRate   *float64 `json:"commission_rate"`
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	Symbol           string   `json:"symbol"`
	Interval         string   `json:"interval"`
}

func (r analyzeRequest) toRequest() analysis.Request {
	return analysis.Request{
		InitialBalance:   r.InitialBalance,
		TradeAmount:      r.TradeAmount,
		ThresholdPercent: r.ThresholdPercent,
		CommissionRate:   r.CommissionRate,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		Symbol:           r.Symbol,
		Interval:         r.Interval,
	}
}

type tradeResponse struct {
	OrderID         string   `json:"order_id"`
	OrderType       string   `json:"order_type"`
	DateTime        string   `json:"date_time"`
	Price           float64  `json:"price"`
	EthAmount       float64  `json:"eth_amount"`
	UsdtAmount      float64  `json:"usdt_amount"`
	Commission      float64  `json:"commission"`
	BalanceAfter    float64  `json:"balance_after"`
	EthBalanceAfter float64  `json:"eth_balance_after"`
	LevelPrice      float64  `json:"level_price"`
	RelatedOrderID  *string  `json:"related_order_id"`
	Status          string   `json:"status"`
	Profit          *float64 `json:"profit"`
}

type summaryResponse struct {
	InitialBalance   float64 `json:"initial_balance"`
	FinalBalance     float64 `json:"final_balance"`
	TotalProfit      float64 `json:"total_profit"`
	TotalTrades      int     `json:"total_trades"`
	MinBalance       float64 `json:"min_balance"`
	ROIPercent       float64 `json:"roi_percent"`
	PendingPositions int     `json:"pending_positions"`
}

type chartResponse struct {
	Dates      []string  `json:"dates"`
	Timestamps []int64   `json:"timestamps"`
	Prices     []float64 `json:"prices"`
	Balances   []float64 `json:"balances"`
	Profits    []float64 `json:"profits"`
}

type analyzeResponse struct {
	Trades    []tradeResponse `json:"trades"`
	Summary   summaryResponse `json:"summary"`
	ChartData chartResponse   `json:"chart_data"`
}

type symbolResponse struct {
	Symbol             string  `json:"symbol"`
	Price              float64 `json:"price"`
	PriceChange        float64 `json:"priceChange"`
	PriceChangePercent float64 `json:"priceChangePercent"`
	High24h            float64 `json:"high24h"`
	Low24h             float64 `json:"low24h"`
	Volume             float64 `json:"volume"`
	OpenPrice          float64 `json:"openPrice"`
	ClosePrice         float64 `json:"closePrice"`
}

type symbolsResponse struct {
	Symbols []symbolResponse `json:"symbols"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(dateTimeLayout)
}

func floats(ds []decimal.Decimal) []float64 {
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = d.InexactFloat64()
	}
	return out
}

func newAnalyzeResponse(r *model.AnalysisResult) analyzeResponse {
	trades := make([]tradeResponse, len(r.Trades))
	for i, t := range r.Trades {
		tr := tradeResponse{
			OrderID:         t.OrderID,
			OrderType:       string(t.Kind),
			DateTime:        formatTime(t.Timestamp),
			Price:           t.Price.InexactFloat64(),
			EthAmount:       t.AssetAmount.InexactFloat64(),
			UsdtAmount:      t.CashAmount.InexactFloat64(),
			Commission:      t.Commission.InexactFloat64(),
			BalanceAfter:    t.BalanceAfter.InexactFloat64(),
			EthBalanceAfter: t.AssetBalanceAfter.InexactFloat64(),
			LevelPrice:      t.ReferencePrice.InexactFloat64(),
			RelatedOrderID:  t.RelatedOrderID,
			Status:          string(t.Status),
		}
		if t.Profit.Valid {
			p := t.Profit.Decimal.InexactFloat64()
			tr.Profit = &p
		}
		trades[i] = tr
	}

	dates := make([]string, len(r.Chart.Timestamps))
	for i, ts := range r.Chart.Timestamps {
		dates[i] = formatTime(ts)
	}
	timestamps := make([]int64, len(r.Chart.Timestamps))
	copy(timestamps, r.Chart.Timestamps)

	s := r.Summary
	return analyzeResponse{
		Trades: trades,
		Summary: summaryResponse{
			InitialBalance:   s.InitialBalance.InexactFloat64(),
			FinalBalance:     s.FinalBalance.InexactFloat64(),
			TotalProfit:      s.TotalProfit.InexactFloat64(),
			TotalTrades:      s.TotalTrades,
			MinBalance:       s.MinBalance.InexactFloat64(),
			ROIPercent:       s.ROIPercent.InexactFloat64(),
			PendingPositions: s.PendingPositions,
		},
		ChartData: chartResponse{
			Dates:      dates,
			Timestamps: timestamps,
			Prices:     floats(r.Chart.Prices),
			Balances:   floats(r.Chart.Balances),
			Profits:    floats(r.Chart.Profits),
		},
	}
}

func newSymbolsResponse(stats []model.SymbolStats) symbolsResponse {
	out := make([]symbolResponse, len(stats))
	for i, s := range stats {
		out[i] = symbolResponse{
			Symbol:             s.Symbol,
			Price:              s.LastPrice.InexactFloat64(),
			PriceChange:        s.PriceChange.InexactFloat64(),
			PriceChangePercent: s.PriceChangePercent.InexactFloat64(),
			High24h:            s.HighPrice.InexactFloat64(),
			Low24h:             s.LowPrice.InexactFloat64(),
			Volume:             s.Volume.InexactFloat64(),
			OpenPrice:          s.OpenPrice.InexactFloat64(),
			ClosePrice:         s.LastPrice.InexactFloat64(),
		}
	}
	return symbolsResponse{Symbols: out}
}
