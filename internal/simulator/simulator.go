// Package simulator runs the threshold grid strategy over a candle series.
//
// The strategy buys a fixed cash amount whenever the close drops
// ThresholdPercent below the reference price and sells each bought lot
// once the close rises ThresholdPercent above that lot's buy price.
// Several lots may be open at once; each closes on its own target.
package simulator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"backtester/internal/model"
)

var one = decimal.NewFromInt(1)

// Run simulates the strategy over candles, which must be sorted by
// timestamp. It returns ErrNoData for an empty series and an
// ErrInvalidParameter-wrapped error for unusable parameters or candles.
// Run is a pure function: the same input always yields the same result.
func Run(candles []model.Candle, params model.StrategyParameters) (*model.SimulationResult, error) {
	if err := ValidateParameters(params); err != nil {
		return nil, err
	}
	if err := validateCandles(candles); err != nil {
		return nil, err
	}

	s := newState(params, candles[0].Close)
	for _, c := range candles {
		s.step(c)
	}

	return &model.SimulationResult{
		Trades:  s.trades,
		Summary: s.summary(candles[len(candles)-1].Close),
		Chart:   buildChart(s.trades),
	}, nil
}

// state is the run-local simulation state. It is never shared between runs.
type state struct {
	params     model.StrategyParameters
	buyFactor  decimal.Decimal
	sellFactor decimal.Decimal

	cash      decimal.Decimal
	asset     decimal.Decimal
	reference decimal.Decimal
	minCash   decimal.Decimal
	realized  decimal.Decimal
	closed    int
	sequence  int

	open   []model.OpenPosition
	trades []model.TradeRecord
}

func newState(params model.StrategyParameters, firstClose decimal.Decimal) *state {
	return &state{
		params:     params,
		buyFactor:  one.Sub(params.ThresholdPercent),
		sellFactor: one.Add(params.ThresholdPercent),
		cash:       params.InitialBalance,
		asset:      decimal.Zero,
		reference:  firstClose,
		minCash:    params.InitialBalance,
		realized:   decimal.Zero,
		sequence:   1,
	}
}

func (s *state) step(c model.Candle) {
	if s.cash.LessThan(s.minCash) {
		s.minCash = s.cash
	}

	// At most one buy per candle, however deep the dip.
	if s.cash.GreaterThanOrEqual(s.params.TradeAmount) && c.Close.LessThanOrEqual(s.reference.Mul(s.buyFactor)) {
		s.buy(c)
	}

	s.evaluateSells(c)

	if len(s.open) == 0 && c.Close.GreaterThan(s.reference) {
		s.reference = c.Close
	}
}

func (s *state) buy(c model.Candle) {
	cost := s.params.TradeAmount
	commission := cost.Mul(s.params.CommissionRate)
	amount := cost.Sub(commission).Div(c.Close)

	s.cash = s.cash.Sub(cost)
	s.asset = s.asset.Add(amount)
	s.reference = c.Close

	id := orderID(model.TradeKindBuy, s.sequence)
	s.trades = append(s.trades, model.TradeRecord{
		OrderID:           id,
		Kind:              model.TradeKindBuy,
		Timestamp:         c.Timestamp,
		Price:             c.Close,
		AssetAmount:       amount,
		CashAmount:        cost,
		Commission:        commission,
		BalanceAfter:      s.cash,
		AssetBalanceAfter: s.asset,
		ReferencePrice:    c.Close,
		Status:            model.TradeStatusOpen,
	})
	s.open = append(s.open, model.OpenPosition{
		SequenceID:   s.sequence,
		BuyOrderID:   id,
		BuyPrice:     c.Close,
		TargetPrice:  c.Close.Mul(s.sellFactor),
		AssetAmount:  amount,
		Cost:         cost,
		BuyTimestamp: c.Timestamp,
	})
	s.sequence++
}

// evaluateSells closes every open position whose target the close has
// reached, in the order the positions were opened. The open set is
// replaced only after the snapshot has been fully walked.
func (s *state) evaluateSells(c model.Candle) {
	if len(s.open) == 0 {
		return
	}

	snapshot := s.open
	remaining := make([]model.OpenPosition, 0, len(snapshot))
	for _, pos := range snapshot {
		if c.Close.GreaterThanOrEqual(pos.TargetPrice) {
			s.sell(pos, c)
			continue
		}
		remaining = append(remaining, pos)
	}
	s.open = remaining
}

func (s *state) sell(pos model.OpenPosition, c model.Candle) {
	gross := pos.AssetAmount.Mul(c.Close)
	commission := gross.Mul(s.params.CommissionRate)
	net := gross.Sub(commission)
	profit := net.Sub(pos.Cost)

	s.cash = s.cash.Add(net)
	s.asset = s.asset.Sub(pos.AssetAmount)
	s.reference = c.Close
	s.realized = s.realized.Add(profit)
	s.closed++

	related := pos.BuyOrderID
	s.trades = append(s.trades, model.TradeRecord{
		OrderID:           orderID(model.TradeKindSell, s.sequence),
		Kind:              model.TradeKindSell,
		Timestamp:         c.Timestamp,
		Price:             c.Close,
		AssetAmount:       pos.AssetAmount.Neg(),
		CashAmount:        net,
		Commission:        commission,
		BalanceAfter:      s.cash,
		AssetBalanceAfter: s.asset,
		ReferencePrice:    pos.BuyPrice,
		RelatedOrderID:    &related,
		Status:            model.TradeStatusClosed,
		Profit:            decimal.NewNullDecimal(profit),
	})
	s.sequence++
}

func (s *state) summary(lastClose decimal.Decimal) model.Summary {
	initial := s.params.InitialBalance
	final := s.cash.Add(s.asset.Mul(lastClose))

	return model.Summary{
		InitialBalance:   initial,
		FinalBalance:     final,
		TotalProfit:      s.realized,
		TotalTrades:      s.closed,
		MinBalance:       s.minCash,
		ROIPercent:       final.Sub(initial).Div(initial).Mul(decimal.NewFromInt(100)),
		PendingPositions: len(s.open),
	}
}

func orderID(kind model.TradeKind, sequence int) string {
	return fmt.Sprintf("%s_%04d", kind, sequence)
}
