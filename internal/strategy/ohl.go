package strategy

import (
	"time"

	"github.com/sanoj619/SanSM/internal/model"
)

// EquitySeries is the NSE series marker for ordinary equity shares.
const EquitySeries = "EQ"

// OpenedAtExtreme reports whether the session opened at its intraday low or high.
// A snapshot without price info never matches.
func OpenedAtExtreme(s *model.InstrumentSnapshot) bool {
	if s == nil || s.PriceInfo == nil {
		return false
	}
	p := s.PriceInfo
	return p.Open.Equal(p.IntraDayHighLow.Min) || p.Open.Equal(p.IntraDayHighLow.Max)
}

// AsOfDate formats t as the UTC calendar date shared by every row of one scan.
func AsOfDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// BuildOutcome maps a matching snapshot onto the OHL_Stocks row layout.
func BuildOutcome(row model.TrackedRow, s *model.InstrumentSnapshot, asOf string) model.OutcomeRow {
	out := model.OutcomeRow{
		TrackedID: row.ID,
		Symbol:    s.Symbol(),
		AsOfDate:  asOf,
	}
	if out.Symbol == "" {
		out.Symbol = row.Symbol
	}
	if p := s.PriceInfo; p != nil {
		out.Open = p.Open
		out.DayLow = p.IntraDayHighLow.Min
		out.DayHigh = p.IntraDayHighLow.Max
		out.PercentChange = p.PChange
		out.PreviousClose = p.PreviousClose
		out.WeekLow = p.WeekHighLow.Min
		out.WeekHigh = p.WeekHighLow.Max
	}
	return out
}

// IsFNOEquity reports whether the instrument trades in the F&O segment and
// is listed in the equity series.
func IsFNOEquity(s *model.InstrumentSnapshot) bool {
	if s == nil || s.Info == nil || s.Metadata == nil {
		return false
	}
	return s.Info.IsFNOSec && s.Metadata.Series == EquitySeries
}
