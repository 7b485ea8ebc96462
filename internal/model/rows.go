package model

import "github.com/shopspring/decimal"

// TrackedRow is one instrument under observation (table fno-stocks).
type TrackedRow struct {
	ID     int64  `json:"id"`
	Symbol string `json:"stock_name"`
}

// OutcomeRow is written to OHL_Stocks when a tracked instrument opened at
// its intraday low or high.
type OutcomeRow struct {
	TrackedID     int64           `json:"tracked_id"`
	Symbol        string          `json:"symbol"`
	Open          decimal.Decimal `json:"open"`
	DayLow        decimal.Decimal `json:"day_low"`
	DayHigh       decimal.Decimal `json:"day_high"`
	PercentChange decimal.Decimal `json:"pct_change"`
	PreviousClose decimal.Decimal `json:"prev_close"`
	WeekLow       decimal.Decimal `json:"week_low"`
	WeekHigh      decimal.Decimal `json:"week_high"`
	AsOfDate      string          `json:"as_of_date"` // YYYY-MM-DD, UTC
}

// QuoteRow is the single-symbol pipeline output (table stock_data).
// VWAP lands in the volume column.
type QuoteRow struct {
	Symbol string              `json:"stock_symbol"`
	Price  decimal.NullDecimal `json:"price"`
	VWAP   decimal.NullDecimal `json:"volume"`
}
