package collector

import (
	"context"
	"errors"

	"github.com/sanoj619/SanSM/internal/model"
)

var (
	// ErrEmptySnapshot is returned when the provider answers without a quote.
	ErrEmptySnapshot = errors.New("no stock data found")
	// ErrNotFound is returned when the provider does not know the symbol.
	ErrNotFound = errors.New("symbol not found")
)

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	FetchInstrument(ctx context.Context, symbol string) (*model.InstrumentSnapshot, error)
	ListAllSymbols(ctx context.Context) ([]string, error)
	Name() string
}
