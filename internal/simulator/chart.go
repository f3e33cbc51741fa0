package simulator

import (
	"github.com/shopspring/decimal"

	"backtester/internal/model"
)

// buildChart projects the ledger into parallel series. Buys plot a zero profit.
func buildChart(trades []model.TradeRecord) model.ChartSeries {
	chart := model.ChartSeries{
		Timestamps: make([]int64, 0, len(trades)),
		Prices:     make([]decimal.Decimal, 0, len(trades)),
		Balances:   make([]decimal.Decimal, 0, len(trades)),
		Profits:    make([]decimal.Decimal, 0, len(trades)),
	}
	for _, t := range trades {
		profit := decimal.Zero
		if t.Profit.Valid {
			profit = t.Profit.Decimal
		}
		chart.Timestamps = append(chart.Timestamps, t.Timestamp)
		chart.Prices = append(chart.Prices, t.Price)
		chart.Balances = append(chart.Balances, t.BalanceAfter)
		chart.Profits = append(chart.Profits, profit)
	}
	return chart
}
