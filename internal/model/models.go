package model

import "github.com/shopspring/decimal"

// PriceTick represents a single 24h mini-ticker update from an exchange.
type PriceTick struct {
	Exchange  string
	Symbol    string
	EventTime int64
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Candle is one OHLCV observation. Timestamp is the open time in epoch milliseconds.
type Candle struct {
	Timestamp int64           `db:"open_time"`
	Open      decimal.Decimal `db:"open"`
	High      decimal.Decimal `db:"high"`
	Low       decimal.Decimal `db:"low"`
	Close     decimal.Decimal `db:"close"`
	Volume    decimal.Decimal `db:"volume"`
}

// StrategyParameters configures one simulation run.
type StrategyParameters struct {
	InitialBalance   decimal.Decimal
	TradeAmount      decimal.Decimal
	ThresholdPercent decimal.Decimal
	CommissionRate   decimal.Decimal
}

type TradeKind string

type TradeStatus string

const (
	TradeKindBuy  TradeKind = "BUY"
	TradeKindSell TradeKind = "SELL"

	TradeStatusOpen   TradeStatus = "OPEN"
	TradeStatusClosed TradeStatus = "CLOSED"
)

// OpenPosition is a buy waiting for price to reach its target.
type OpenPosition struct {
	SequenceID   int
	BuyOrderID   string
	BuyPrice     decimal.Decimal
	TargetPrice  decimal.Decimal
	AssetAmount  decimal.Decimal
	Cost         decimal.Decimal
	BuyTimestamp int64
}

// TradeRecord is one executed BUY or SELL in the ledger.
// AssetAmount is negative for sells. Profit is only valid for sells.
type TradeRecord struct {
	OrderID           string
	Kind              TradeKind
	Timestamp         int64
	Price             decimal.Decimal
	AssetAmount       decimal.Decimal
	CashAmount        decimal.Decimal
	Commission        decimal.Decimal
	BalanceAfter      decimal.Decimal
	AssetBalanceAfter decimal.Decimal
	ReferencePrice    decimal.Decimal
	RelatedOrderID    *string
	Status            TradeStatus
	Profit            decimal.NullDecimal
}

// Summary aggregates a finished simulation.
type Summary struct {
	InitialBalance   decimal.Decimal
	FinalBalance     decimal.Decimal
	TotalProfit      decimal.Decimal
	TotalTrades      int
	MinBalance       decimal.Decimal
	ROIPercent       decimal.Decimal
	PendingPositions int
}

// ChartSeries holds parallel arrays derived from the ledger.
type ChartSeries struct {
	Timestamps []int64
	Prices     []decimal.Decimal
	Balances   []decimal.Decimal
	Profits    []decimal.Decimal
}

// SimulationResult is everything one simulation run produces.
type SimulationResult struct {
	Trades  []TradeRecord
	Summary Summary
	Chart   ChartSeries
}

// AnalysisResult is a simulation result together with the inputs that produced it.
type AnalysisResult struct {
	Symbol      string
	Interval    string
	StartTime   int64
	EndTime     int64
	CandleCount int
	Parameters  StrategyParameters
	SimulationResult
}

// SymbolStats is the 24h market snapshot for one tradable symbol.
type SymbolStats struct {
	Symbol             string
	LastPrice          decimal.Decimal
	OpenPrice          decimal.Decimal
	HighPrice          decimal.Decimal
	LowPrice           decimal.Decimal
	Volume             decimal.Decimal
	PriceChange        decimal.Decimal
	PriceChangePercent decimal.Decimal
}
