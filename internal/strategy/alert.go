package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AlertMode selects when the single-symbol pipeline publishes a price alert.
type AlertMode string

const (
	AlertAlways AlertMode = "always"
	AlertAbove  AlertMode = "above"
	AlertBelow  AlertMode = "below"
)

// AlertPolicy decides whether a fetched price is worth a notification.
// The zero value alerts on every price.
type AlertPolicy struct {
	Mode      AlertMode
	Threshold decimal.Decimal
}

// Validate checks the mode is known.
func (p AlertPolicy) Validate() error {
	switch p.Mode {
	case "", AlertAlways, AlertAbove, AlertBelow:
		return nil
	default:
		return fmt.Errorf("unknown alert mode %q", p.Mode)
	}
}

// ShouldAlert applies the policy to lastPrice. An absent price only alerts
// in always mode.
func (p AlertPolicy) ShouldAlert(lastPrice decimal.NullDecimal) bool {
	switch p.Mode {
	case "", AlertAlways:
		return true
	case AlertAbove:
		return lastPrice.Valid && lastPrice.Decimal.GreaterThanOrEqual(p.Threshold)
	case AlertBelow:
		return lastPrice.Valid && lastPrice.Decimal.LessThanOrEqual(p.Threshold)
	default:
		return false
	}
}
