package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sanoj619/SanSM/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	mu        sync.RWMutex
	snapshots map[string]*model.InstrumentSnapshot
	errs      map[string]error
}

// NewMockFetcher creates an empty MockFetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		snapshots: make(map[string]*model.InstrumentSnapshot),
		errs:      make(map[string]error),
	}
}

func (m *MockFetcher) Name() string { return "mock" }

// Set registers the snapshot returned for symbol.
func (m *MockFetcher) Set(symbol string, s *model.InstrumentSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[strings.ToUpper(symbol)] = s
}

// Fail makes every fetch of symbol return err.
func (m *MockFetcher) Fail(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[strings.ToUpper(symbol)] = err
}

func (m *MockFetcher) FetchInstrument(ctx context.Context, symbol string) (*model.InstrumentSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := strings.ToUpper(symbol)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.errs[key]; ok {
		return nil, err
	}
	s, ok := m.snapshots[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	return s, nil
}

func (m *MockFetcher) ListAllSymbols(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	symbols := make([]string, 0, len(m.snapshots)+len(m.errs))
	seen := make(map[string]bool)
	for k := range m.snapshots {
		symbols = append(symbols, k)
		seen[k] = true
	}
	for k := range m.errs {
		if !seen[k] {
			symbols = append(symbols, k)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// MockSnapshot builds a fully populated equity snapshot.
func MockSnapshot(symbol string, open, low, high, last float64) *model.InstrumentSnapshot {
	lastPrice := decimal.NewFromFloat(last)
	return &model.InstrumentSnapshot{
		Info:     &model.Info{Symbol: symbol, CompanyName: symbol + " Ltd", IsFNOSec: true},
		Metadata: &model.Metadata{Symbol: symbol, Series: "EQ"},
		PriceInfo: &model.PriceInfo{
			LastPrice:       decimal.NewNullDecimal(lastPrice),
			VWAP:            decimal.NewNullDecimal(lastPrice.Sub(decimal.NewFromInt(1))),
			Open:            decimal.NewFromFloat(open),
			PChange:         decimal.NewFromFloat(0.5),
			PreviousClose:   decimal.NewFromFloat(open),
			IntraDayHighLow: model.HighLow{Min: decimal.NewFromFloat(low), Max: decimal.NewFromFloat(high)},
			WeekHighLow:     model.HighLow{Min: decimal.NewFromFloat(low * 0.8), Max: decimal.NewFromFloat(high * 1.2)},
		},
	}
}
