package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtester/internal/model"
)

func TestIntervalMillis(t *testing.T) {
	ms, err := IntervalMillis("15m")
	require.NoError(t, err)
	assert.Equal(t, int64(15*60*1000), ms)

	_, err = IntervalMillis("2d")
	assert.ErrorIs(t, err, ErrUnsupportedInterval)
}

func TestSplitRange(t *testing.T) {
	assert.Equal(t, []timeRange{{0, 10}, {10, 20}, {20, 25}}, splitRange(0, 25, 10))
	assert.Equal(t, []timeRange{{5, 8}}, splitRange(5, 8, 10))
	assert.Nil(t, splitRange(10, 10, 5))
	assert.Nil(t, splitRange(10, 5, 5))
}

func TestMergeCandles(t *testing.T) {
	c := func(ts int64, close int64) model.Candle {
		return model.Candle{Timestamp: ts, Close: decimal.NewFromInt(close)}
	}

	merged := mergeCandles([][]model.Candle{
		{c(3, 30), c(4, 40)},
		nil,
		{c(1, 10), c(2, 20), c(3, 99)},
	})

	require.Len(t, merged, 4)
	for i, m := range merged {
		assert.Equal(t, int64(i+1), m.Timestamp)
	}
	assert.Equal(t, int64(30), merged[2].Close.IntPart(), "first occurrence wins")
}
