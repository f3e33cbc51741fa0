package simulator

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData is returned when there are no candles to simulate over.
	ErrNoData = errors.New("no data available for the specified period")

	// ErrInvalidParameter is returned for strategy parameters or candle
	// values the simulation cannot run with.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUnorderedCandles is returned when candle timestamps decrease.
	// It wraps ErrInvalidParameter.
	ErrUnorderedCandles = fmt.Errorf("%w: candles are not sorted by timestamp", ErrInvalidParameter)
)
