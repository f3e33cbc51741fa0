package exchange

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"backtester/internal/model"
)

// ErrUnsupportedInterval is returned for kline intervals the provider cannot fetch.
var ErrUnsupportedInterval = errors.New("unsupported interval")

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  3 * 24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// IntervalMillis returns the length of one candle of the given interval.
func IntervalMillis(interval string) (int64, error) {
	d, ok := intervals[interval]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedInterval, interval)
	}
	return d.Milliseconds(), nil
}

type timeRange struct {
	start int64
	end   int64 // exclusive
}

// splitRange cuts [start, end) into consecutive ranges of at most span milliseconds.
func splitRange(start, end, span int64) []timeRange {
	if end <= start || span <= 0 {
		return nil
	}
	var out []timeRange
	for cur := start; cur < end; cur += span {
		out = append(out, timeRange{start: cur, end: min(cur+span, end)})
	}
	return out
}

// mergeCandles flattens chunk results, sorts them by timestamp and drops
// repeated timestamps, keeping the first occurrence.
func mergeCandles(chunks [][]model.Candle) []model.Candle {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	all := make([]model.Candle, 0, total)
	for _, c := range chunks {
		all = append(all, c...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp < all[j].Timestamp
	})

	out := all[:0]
	for _, c := range all {
		if len(out) > 0 && c.Timestamp == out[len(out)-1].Timestamp {
			continue
		}
		out = append(out, c)
	}
	return out
}
