package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// HighLow is a min/max price pair as reported by the exchange.
type HighLow struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// PriceInfo is the price section of an equity quote.
type PriceInfo struct {
	LastPrice       decimal.NullDecimal `json:"lastPrice"`
	VWAP            decimal.NullDecimal `json:"vwap"`
	Open            decimal.Decimal     `json:"open"`
	PChange         decimal.Decimal     `json:"pChange"`
	PreviousClose   decimal.Decimal     `json:"previousClose"`
	IntraDayHighLow HighLow             `json:"intraDayHighLow"`
	WeekHighLow     HighLow             `json:"weekHighLow"`
}

// Metadata is the listing section of an equity quote.
type Metadata struct {
	Symbol string `json:"symbol"`
	Series string `json:"series"`
}

// Info is the instrument description section of an equity quote.
type Info struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	IsFNOSec    bool   `json:"isFNOSec"`
}

// InstrumentSnapshot is a point-in-time quote for one instrument.
// Only the fields the pipelines read are decoded; Raw keeps the full payload.
type InstrumentSnapshot struct {
	Info      *Info      `json:"info"`
	Metadata  *Metadata  `json:"metadata"`
	PriceInfo *PriceInfo `json:"priceInfo"`

	Raw json.RawMessage `json:"-"`
}

// Symbol returns the best symbol the snapshot carries.
func (s *InstrumentSnapshot) Symbol() string {
	if s == nil {
		return ""
	}
	if s.Metadata != nil && s.Metadata.Symbol != "" {
		return s.Metadata.Symbol
	}
	if s.Info != nil {
		return s.Info.Symbol
	}
	return ""
}

// Empty reports whether the snapshot carries none of the quote sections.
func (s *InstrumentSnapshot) Empty() bool {
	return s == nil || (s.Info == nil && s.Metadata == nil && s.PriceInfo == nil)
}

// LastPrice is invalid when the quote has no price section or no last price.
func (s *InstrumentSnapshot) LastPrice() decimal.NullDecimal {
	if s == nil || s.PriceInfo == nil {
		return decimal.NullDecimal{}
	}
	return s.PriceInfo.LastPrice
}

// VWAP is invalid when the quote has no price section or no VWAP.
func (s *InstrumentSnapshot) VWAP() decimal.NullDecimal {
	if s == nil || s.PriceInfo == nil {
		return decimal.NullDecimal{}
	}
	return s.PriceInfo.VWAP
}

// MarshalJSON returns the provider payload untouched when it is available.
func (s InstrumentSnapshot) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	type plain InstrumentSnapshot
	return json.Marshal(plain(s))
}
