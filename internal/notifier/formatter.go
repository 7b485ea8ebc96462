package notifier

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatPriceAlert formats the single-symbol price alert.
func FormatPriceAlert(symbol string, lastPrice decimal.NullDecimal) string {
	price := "unavailable"
	if lastPrice.Valid {
		price = lastPrice.Decimal.String()
	}
	return fmt.Sprintf("Stock Alert: %s price is now %s", symbol, price)
}

// ScanSummary is the digest of one OHL scan.
type ScanSummary struct {
	AsOf    string
	Total   int
	Matched int
	Written int
	Failed  int
	Symbols []string
}

// FormatScanSummary formats the post-scan digest.
func FormatScanSummary(s ScanSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "OHL scan %s\n", s.AsOf)
	fmt.Fprintf(&b, "Tracked: %d | Matched: %d | Written: %d | Failed: %d\n", s.Total, s.Matched, s.Written, s.Failed)
	if len(s.Symbols) > 0 {
		fmt.Fprintf(&b, "Opened at extreme: %s\n", strings.Join(s.Symbols, ", "))
	}
	return b.String()
}
