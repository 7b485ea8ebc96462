package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sanoj619/SanSM/internal/collector"
	"github.com/sanoj619/SanSM/internal/model"
	"github.com/sanoj619/SanSM/internal/notifier"
)

// QuoteResult is the outcome of one single-symbol pipeline run. Fetch
// failures are returned as errors; later steps only mark the result.
type QuoteResult struct {
	Symbol       string              `json:"symbol"`
	LastPrice    decimal.NullDecimal `json:"lastPrice"`
	VWAP         decimal.NullDecimal `json:"vwap"`
	Fetched      bool                `json:"fetched"`
	Persisted    bool                `json:"persisted"`
	Alerted      bool                `json:"alerted"`
	Notified     bool                `json:"notified"`
	PersistError string              `json:"persistError,omitempty"`
	NotifyError  string              `json:"notifyError,omitempty"`
}

// Complete reports whether every attempted step succeeded.
func (r *QuoteResult) Complete() bool {
	return r.Fetched && r.Persisted && (!r.Alerted || r.Notified)
}

// FetchStock returns the snapshot for symbol without side effects. Only a
// snapshot with no sections at all is an error; missing price fields are not.
func (s *Service) FetchStock(ctx context.Context, symbol string) (*model.InstrumentSnapshot, error) {
	var snap *model.InstrumentSnapshot
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		snap, err = s.fetcher.FetchInstrument(ctx, symbol)
		return err
	})
	if err != nil {
		return nil, err
	}
	if snap.Empty() {
		return nil, fmt.Errorf("fetch %s: %w", symbol, collector.ErrEmptySnapshot)
	}
	return snap, nil
}

// ProcessStock fetches symbol, records its last price and VWAP, and
// publishes a price alert when the alert policy allows it. A persistence
// failure does not prevent the notify step.
func (s *Service) ProcessStock(ctx context.Context, symbol string) (*QuoteResult, error) {
	logger := log.With().Str("symbol", symbol).Logger()

	snap, err := s.FetchStock(ctx, symbol)
	if err != nil {
		logger.Error().Err(err).Msg("fetch stock failed")
		return nil, err
	}

	res := &QuoteResult{
		Symbol:    symbol,
		LastPrice: snap.LastPrice(),
		VWAP:      snap.VWAP(),
		Fetched:   true,
	}
	if !res.LastPrice.Valid || !res.VWAP.Valid {
		logger.Warn().Bool("has_last_price", res.LastPrice.Valid).Bool("has_vwap", res.VWAP.Valid).
			Msg("quote is missing price fields")
	}

	if err := s.persistQuote(ctx, model.QuoteRow{Symbol: symbol, Price: res.LastPrice, VWAP: res.VWAP}); err != nil {
		res.PersistError = err.Error()
		logger.Error().Err(err).Msg("persist quote failed")
	} else {
		res.Persisted = true
	}

	if s.opts.Alert.ShouldAlert(res.LastPrice) {
		res.Alerted = true
		msg := notifier.FormatPriceAlert(symbol, res.LastPrice)
		err := s.call(ctx, func(ctx context.Context) error {
			return s.notifier.Publish(ctx, msg)
		})
		if err != nil {
			res.NotifyError = err.Error()
			logger.Error().Err(err).Str("channel", s.notifier.Name()).Msg("publish alert failed")
		} else {
			res.Notified = true
		}
	}

	logger.Info().
		Bool("persisted", res.Persisted).
		Bool("alerted", res.Alerted).
		Bool("notified", res.Notified).
		Msg("stock processed")
	return res, nil
}

func (s *Service) persistQuote(ctx context.Context, row model.QuoteRow) error {
	sess, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer sess.Release()
	return s.call(ctx, func(ctx context.Context) error {
		return sess.InsertQuote(ctx, row)
	})
}
