package simulator

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtester/internal/model"
)

const hourMs = int64(60 * 60 * 1000)

func candles(closes ...float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{Timestamp: int64(i) * hourMs, Close: decimal.NewFromFloat(c)}
	}
	return out
}

func params(initial, amount, threshold, commission float64) model.StrategyParameters {
	return model.StrategyParameters{
		InitialBalance:   decimal.NewFromFloat(initial),
		TradeAmount:      decimal.NewFromFloat(amount),
		ThresholdPercent: decimal.NewFromFloat(threshold),
		CommissionRate:   decimal.NewFromFloat(commission),
	}
}

func defaultParams() model.StrategyParameters {
	return params(10000, 1000, 0.05, 0)
}

func orderIDs(trades []model.TradeRecord) []string {
	ids := make([]string, len(trades))
	for i, t := range trades {
		ids[i] = t.OrderID
	}
	return ids
}

func TestRun_SingleCandle(t *testing.T) {
	res, err := Run(candles(100), defaultParams())
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.True(t, res.Summary.FinalBalance.Equal(decimal.NewFromInt(10000)))
	assert.True(t, res.Summary.ROIPercent.IsZero())
	assert.True(t, res.Summary.MinBalance.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, 0, res.Summary.TotalTrades)
	assert.Equal(t, 0, res.Summary.PendingPositions)
	assert.Empty(t, res.Chart.Timestamps)
}

func TestRun_SingleRoundTrip(t *testing.T) {
	res, err := Run(candles(100, 94, 105), defaultParams())
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)

	buy, sell := res.Trades[0], res.Trades[1]

	assert.Equal(t, "BUY_0001", buy.OrderID)
	assert.Equal(t, model.TradeKindBuy, buy.Kind)
	assert.Equal(t, model.TradeStatusOpen, buy.Status)
	assert.True(t, buy.Price.Equal(decimal.NewFromInt(94)))
	assert.True(t, buy.ReferencePrice.Equal(buy.Price))
	assert.True(t, buy.CashAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, buy.BalanceAfter.Equal(decimal.NewFromInt(9000)))
	assert.Nil(t, buy.RelatedOrderID)
	assert.False(t, buy.Profit.Valid)

	assert.Equal(t, "SELL_0002", sell.OrderID)
	assert.Equal(t, model.TradeKindSell, sell.Kind)
	assert.Equal(t, model.TradeStatusClosed, sell.Status)
	assert.True(t, sell.Price.Equal(decimal.NewFromInt(105)))
	assert.True(t, sell.ReferencePrice.Equal(decimal.NewFromInt(94)))
	assert.True(t, sell.AssetAmount.Equal(buy.AssetAmount.Neg()))
	assert.True(t, sell.AssetBalanceAfter.IsZero())
	require.NotNil(t, sell.RelatedOrderID)
	assert.Equal(t, "BUY_0001", *sell.RelatedOrderID)
	require.True(t, sell.Profit.Valid)

	wantProfit := (1000.0/94.0)*105.0 - 1000.0
	assert.InDelta(t, wantProfit, sell.Profit.Decimal.InexactFloat64(), 1e-9)
	assert.InDelta(t, 117.02, res.Summary.TotalProfit.InexactFloat64(), 0.01)
	assert.Equal(t, 1, res.Summary.TotalTrades)
	assert.Equal(t, 0, res.Summary.PendingPositions)
	assert.InDelta(t, 10000+wantProfit, res.Summary.FinalBalance.InexactFloat64(), 1e-9)
	assert.InDelta(t, wantProfit/100, res.Summary.ROIPercent.InexactFloat64(), 1e-9)
	assert.True(t, res.Summary.MinBalance.Equal(decimal.NewFromInt(9000)))
}

func TestRun_Commission(t *testing.T) {
	res, err := Run(candles(100, 94, 105), params(10000, 1000, 0.05, 0.001))
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)

	asset := (1000.0 - 1.0) / 94.0
	gross := asset * 105.0
	net := gross - gross*0.001

	buy, sell := res.Trades[0], res.Trades[1]
	assert.True(t, buy.Commission.Equal(decimal.NewFromInt(1)))
	assert.InDelta(t, asset, buy.AssetAmount.InexactFloat64(), 1e-9)
	assert.InDelta(t, gross*0.001, sell.Commission.InexactFloat64(), 1e-9)
	assert.InDelta(t, net, sell.CashAmount.InexactFloat64(), 1e-9)
	assert.True(t, sell.CashAmount.Add(sell.Commission).Equal(sell.AssetAmount.Neg().Mul(sell.Price)), "sell cash is net of commission")
	assert.InDelta(t, net-1000, sell.Profit.Decimal.InexactFloat64(), 1e-9)
}

func TestRun_EmptyInput(t *testing.T) {
	res, err := Run(nil, defaultParams())
	assert.ErrorIs(t, err, ErrNoData)
	assert.Nil(t, res)
}

func TestRun_InvalidParameters(t *testing.T) {
	tests := []struct {
		name   string
		params model.StrategyParameters
	}{
		{"zero initial balance", params(0, 1000, 0.05, 0)},
		{"negative trade amount", params(10000, -1, 0.05, 0)},
		{"zero threshold", params(10000, 1000, 0, 0)},
		{"threshold of one", params(10000, 1000, 1, 0)},
		{"negative commission", params(10000, 1000, 0.05, -0.01)},
		{"full commission", params(10000, 1000, 0.05, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Run(candles(100, 94, 105), tt.params)
			assert.ErrorIs(t, err, ErrInvalidParameter)
			assert.Nil(t, res)
		})
	}
}

func TestRun_InvalidCandles(t *testing.T) {
	t.Run("zero close", func(t *testing.T) {
		_, err := Run(candles(100, 0, 105), defaultParams())
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})

	t.Run("unordered timestamps", func(t *testing.T) {
		cs := candles(100, 94, 105)
		cs[1].Timestamp, cs[2].Timestamp = cs[2].Timestamp, cs[1].Timestamp
		_, err := Run(cs, defaultParams())
		assert.ErrorIs(t, err, ErrUnorderedCandles)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})

	t.Run("equal timestamps keep arrival order", func(t *testing.T) {
		cs := candles(100, 94, 105)
		cs[2].Timestamp = cs[1].Timestamp
		res, err := Run(cs, defaultParams())
		require.NoError(t, err)
		assert.Equal(t, []string{"BUY_0001", "SELL_0002"}, orderIDs(res.Trades))
	})
}

func TestRun_ReferenceDriftAfterClose(t *testing.T) {
	// After the round trip the book is flat and price climbs to 120, so the
	// next threshold is 120*0.95=114. Anchored at the old sell (105) it
	// would be 99.75 and 113 would not buy.
	res, err := Run(candles(100, 94, 105, 120, 113), defaultParams())
	require.NoError(t, err)

	require.Equal(t, []string{"BUY_0001", "SELL_0002", "BUY_0003"}, orderIDs(res.Trades))
	assert.True(t, res.Trades[2].Price.Equal(decimal.NewFromInt(113)))
	assert.Equal(t, 1, res.Summary.PendingPositions)
}

func TestRun_NoDriftWhilePositionOpen(t *testing.T) {
	// The position bought at 94 stays open at 98 (target 98.7), so the
	// reference stays at 94 and 92 is above the 89.3 threshold.
	res, err := Run(candles(100, 94, 98, 92), defaultParams())
	require.NoError(t, err)

	assert.Equal(t, []string{"BUY_0001"}, orderIDs(res.Trades))
	assert.Equal(t, 1, res.Summary.PendingPositions)
}

func TestRun_MultipleOpenPositions(t *testing.T) {
	res, err := Run(candles(100, 90, 80, 100), defaultParams())
	require.NoError(t, err)

	require.Equal(t, []string{"BUY_0001", "BUY_0002", "SELL_0003", "SELL_0004"}, orderIDs(res.Trades))
	assert.Equal(t, "BUY_0001", *res.Trades[2].RelatedOrderID)
	assert.Equal(t, "BUY_0002", *res.Trades[3].RelatedOrderID)
	assert.Equal(t, 2, res.Summary.TotalTrades)
	assert.Equal(t, 0, res.Summary.PendingPositions)
	assert.True(t, res.Trades[3].AssetBalanceAfter.IsZero())
}

func TestRun_OneBuyPerCandleOnGap(t *testing.T) {
	res, err := Run(candles(100, 10), defaultParams())
	require.NoError(t, err)

	assert.Equal(t, []string{"BUY_0001"}, orderIDs(res.Trades))
}

func TestRun_InsufficientCash(t *testing.T) {
	res, err := Run(candles(100, 90, 80), params(1000, 1000, 0.05, 0))
	require.NoError(t, err)

	assert.Equal(t, []string{"BUY_0001"}, orderIDs(res.Trades))
	assert.Equal(t, 1, res.Summary.PendingPositions)
	assert.True(t, res.Summary.MinBalance.IsZero())
	assert.True(t, res.Summary.TotalProfit.IsZero())

	wantFinal := 1000.0 / 90.0 * 80.0
	assert.InDelta(t, wantFinal, res.Summary.FinalBalance.InexactFloat64(), 1e-9)
	assert.InDelta(t, (wantFinal-1000)/1000*100, res.Summary.ROIPercent.InexactFloat64(), 1e-9)
}

func TestRun_Chart(t *testing.T) {
	res, err := Run(candles(100, 94, 105), defaultParams())
	require.NoError(t, err)

	assert.Equal(t, []int64{hourMs, 2 * hourMs}, res.Chart.Timestamps)
	require.Len(t, res.Chart.Profits, 2)
	assert.True(t, res.Chart.Profits[0].IsZero())
	assert.True(t, res.Chart.Profits[1].Equal(res.Trades[1].Profit.Decimal))
	assert.True(t, res.Chart.Balances[0].Equal(decimal.NewFromInt(9000)))
	assert.True(t, res.Chart.Prices[1].Equal(decimal.NewFromInt(105)))
}

func wave(n int) []model.Candle {
	closes := make([]float64, n)
	for i := range closes {
		x := float64(i)
		closes[i] = math.Round((100+20*math.Sin(x/7)+5*math.Sin(x/3))*100) / 100
	}
	return candles(closes...)
}

func TestRun_Deterministic(t *testing.T) {
	cs := wave(500)
	p := params(10000, 500, 0.03, 0.00075)

	first, err := Run(cs, p)
	require.NoError(t, err)
	second, err := Run(cs, p)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_LedgerInvariants(t *testing.T) {
	p := params(10000, 500, 0.03, 0.00075)
	res, err := Run(wave(500), p)
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)

	openCost := decimal.Zero
	realized := decimal.Zero
	lastSeq := 0
	buysPerCandle := map[int64]int{}
	openBuys := map[string]bool{}
	closedBuys := map[string]bool{}

	for _, tr := range res.Trades {
		kind, seqStr, ok := strings.Cut(tr.OrderID, "_")
		require.True(t, ok)
		assert.Equal(t, string(tr.Kind), kind)
		seq, err := strconv.Atoi(seqStr)
		require.NoError(t, err)
		assert.Greater(t, seq, lastSeq, "order sequence must strictly increase")
		lastSeq = seq

		switch tr.Kind {
		case model.TradeKindBuy:
			buysPerCandle[tr.Timestamp]++
			openBuys[tr.OrderID] = true
			openCost = openCost.Add(tr.CashAmount)
		case model.TradeKindSell:
			require.NotNil(t, tr.RelatedOrderID)
			related := *tr.RelatedOrderID
			assert.True(t, openBuys[related], "sell %s must match an open buy", tr.OrderID)
			assert.False(t, closedBuys[related], "buy %s closed twice", related)
			delete(openBuys, related)
			closedBuys[related] = true
			openCost = openCost.Sub(p.TradeAmount)
			realized = realized.Add(tr.Profit.Decimal)
		}

		conserved := tr.BalanceAfter.Add(openCost).Sub(realized)
		assert.True(t, conserved.Equal(p.InitialBalance), "cash conservation broken at %s: %s", tr.OrderID, conserved)
	}

	for ts, n := range buysPerCandle {
		assert.LessOrEqual(t, n, 1, "more than one buy at %d", ts)
	}
	assert.Equal(t, len(openBuys), res.Summary.PendingPositions)
	assert.Equal(t, len(closedBuys), res.Summary.TotalTrades)
	assert.True(t, realized.Equal(res.Summary.TotalProfit))
}
