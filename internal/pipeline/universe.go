package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sanoj619/SanSM/internal/batch"
	"github.com/sanoj619/SanSM/internal/recorder"
	"github.com/sanoj619/SanSM/internal/strategy"
)

// RefreshRow is the outcome for one symbol of the universe refresh.
type RefreshRow struct {
	Symbol   string `json:"symbol"`
	Eligible bool   `json:"eligible"`
	Inserted bool   `json:"inserted"`
	Error    string `json:"error,omitempty"`
}

// RefreshReport summarises one universe refresh.
type RefreshReport struct {
	Total    int          `json:"total"`
	Eligible int          `json:"eligible"`
	Inserted int          `json:"inserted"`
	Failed   int          `json:"failed"`
	Rows     []RefreshRow `json:"rows"`
}

// RefreshUniverse lists every symbol the provider knows and adds the F&O
// equities to the tracked set. Symbols already tracked are left alone.
func (s *Service) RefreshUniverse(ctx context.Context) (*RefreshReport, error) {
	var symbols []string
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		symbols, err = s.fetcher.ListAllSymbols(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}

	report := &RefreshReport{Total: len(symbols), Rows: []RefreshRow{}}
	if len(symbols) == 0 {
		return report, nil
	}

	sess, err := s.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire store: %w", err)
	}
	defer sess.Release()

	results := batch.Run(ctx, s.runner(), symbols, func(ctx context.Context, symbol string) (RefreshRow, error) {
		return s.refreshSymbol(ctx, sess, symbol)
	})

	for _, res := range results {
		row := res.Value
		if row.Symbol == "" {
			row.Symbol = res.Item
		}
		if res.Err != nil {
			row.Error = res.Err.Error()
			report.Failed++
		}
		if row.Eligible {
			report.Eligible++
		}
		if row.Inserted {
			report.Inserted++
		}
		report.Rows = append(report.Rows, row)
	}

	log.Info().
		Int("total", report.Total).
		Int("eligible", report.Eligible).
		Int("inserted", report.Inserted).
		Int("failed", report.Failed).
		Msg("universe refresh finished")
	return report, nil
}

func (s *Service) refreshSymbol(ctx context.Context, sess recorder.Session, symbol string) (RefreshRow, error) {
	row := RefreshRow{Symbol: symbol}

	snap, err := s.FetchStock(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("universe fetch failed")
		return row, err
	}
	if !strategy.IsFNOEquity(snap) {
		return row, nil
	}
	row.Eligible = true

	name := snap.Info.Symbol
	if name == "" {
		name = symbol
	}
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		row.Inserted, err = sess.InsertTracked(ctx, name)
		return err
	})
	if err != nil {
		log.Error().Err(err).Str("symbol", name).Msg("insert tracked failed")
		return row, err
	}
	return row, nil
}
