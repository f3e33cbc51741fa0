package simulator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"backtester/internal/model"
)

// ValidateParameters checks that params describe a runnable strategy.
func ValidateParameters(params model.StrategyParameters) error {
	if !params.InitialBalance.IsPositive() {
		return fmt.Errorf("%w: initial_balance must be positive, got %s", ErrInvalidParameter, params.InitialBalance)
	}
	if !params.TradeAmount.IsPositive() {
		return fmt.Errorf("%w: trade_amount must be positive, got %s", ErrInvalidParameter, params.TradeAmount)
	}
	if !params.ThresholdPercent.IsPositive() || params.ThresholdPercent.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: threshold_percent must be in (0, 1), got %s", ErrInvalidParameter, params.ThresholdPercent)
	}
	if params.CommissionRate.IsNegative() || params.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: commission_rate must be in [0, 1), got %s", ErrInvalidParameter, params.CommissionRate)
	}
	return nil
}

func validateCandles(candles []model.Candle) error {
	if len(candles) == 0 {
		return ErrNoData
	}
	for i, c := range candles {
		if !c.Close.IsPositive() {
			return fmt.Errorf("%w: candle %d at %d has non-positive close %s", ErrInvalidParameter, i, c.Timestamp, c.Close)
		}
		if i > 0 && c.Timestamp < candles[i-1].Timestamp {
			return fmt.Errorf("%w: candle %d at %d precedes %d", ErrUnorderedCandles, i, c.Timestamp, candles[i-1].Timestamp)
		}
	}
	return nil
}
