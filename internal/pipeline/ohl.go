package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sanoj619/SanSM/internal/batch"
	"github.com/sanoj619/SanSM/internal/model"
	"github.com/sanoj619/SanSM/internal/notifier"
	"github.com/sanoj619/SanSM/internal/recorder"
	"github.com/sanoj619/SanSM/internal/strategy"
)

// Row statuses reported by ScanOHL.
const (
	StatusWritten     = "written"
	StatusSkipped     = "skipped"
	StatusFetchFailed = "fetch_failed"
	StatusStoreFailed = "store_failed"
)

// ScanRow is the terminal outcome of one tracked instrument.
type ScanRow struct {
	TrackedID int64  `json:"trackedId"`
	Symbol    string `json:"symbol"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// ScanReport summarises one OHL scan.
type ScanReport struct {
	AsOf     string        `json:"asOf"`
	Total    int           `json:"total"`
	Matched  int           `json:"matched"`
	Written  int           `json:"written"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"durationNs"`
	Rows     []ScanRow     `json:"rows"`
}

// ScanOHL checks every tracked instrument and records the ones whose
// session opened at the intraday low or high. Per-row failures land in the
// report; only failing to acquire the store or list the rows is an error.
func (s *Service) ScanOHL(ctx context.Context) (*ScanReport, error) {
	start := s.now()
	report := &ScanReport{AsOf: strategy.AsOfDate(start), Rows: []ScanRow{}}

	sess, err := s.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire store: %w", err)
	}
	defer sess.Release()

	var tracked []model.TrackedRow
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		tracked, err = sess.ListTracked(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list tracked: %w", err)
	}

	report.Total = len(tracked)
	results := batch.Run(ctx, s.runner(), tracked, func(ctx context.Context, row model.TrackedRow) (ScanRow, error) {
		return s.scanRow(ctx, sess, row, report.AsOf)
	})

	var matched []string
	for _, res := range results {
		row := res.Value
		if res.Err != nil && row.Status == "" {
			row = ScanRow{TrackedID: res.Item.ID, Symbol: res.Item.Symbol, Status: StatusFetchFailed, Error: res.Err.Error()}
		}
		switch row.Status {
		case StatusWritten:
			report.Matched++
			report.Written++
			matched = append(matched, row.Symbol)
		case StatusStoreFailed:
			report.Matched++
			report.Failed++
		case StatusFetchFailed:
			report.Failed++
		}
		report.Rows = append(report.Rows, row)
	}
	report.Duration = time.Since(start)

	log.Info().
		Str("as_of", report.AsOf).
		Int("total", report.Total).
		Int("matched", report.Matched).
		Int("written", report.Written).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("ohl scan finished")

	if s.opts.NotifyScanSummary {
		s.publishSummary(ctx, report, matched)
	}
	return report, nil
}

func (s *Service) scanRow(ctx context.Context, sess recorder.Session, row model.TrackedRow, asOf string) (ScanRow, error) {
	out := ScanRow{TrackedID: row.ID, Symbol: row.Symbol}
	logger := log.With().Str("symbol", row.Symbol).Int64("tracked_id", row.ID).Logger()

	snap, err := s.FetchStock(ctx, row.Symbol)
	if err != nil {
		logger.Warn().Err(err).Msg("ohl fetch failed")
		out.Status = StatusFetchFailed
		out.Error = err.Error()
		return out, err
	}

	if !strategy.OpenedAtExtreme(snap) {
		out.Status = StatusSkipped
		return out, nil
	}

	outcome := strategy.BuildOutcome(row, snap, asOf)
	err = s.call(ctx, func(ctx context.Context) error {
		return sess.InsertOutcome(ctx, outcome)
	})
	if err != nil {
		logger.Error().Err(err).Msg("ohl insert failed")
		out.Status = StatusStoreFailed
		out.Error = err.Error()
		return out, err
	}

	logger.Debug().Str("open", outcome.Open.String()).Msg("opened at extreme")
	out.Status = StatusWritten
	return out, nil
}

func (s *Service) publishSummary(ctx context.Context, report *ScanReport, matched []string) {
	msg := notifier.FormatScanSummary(notifier.ScanSummary{
		AsOf:    report.AsOf,
		Total:   report.Total,
		Matched: report.Matched,
		Written: report.Written,
		Failed:  report.Failed,
		Symbols: matched,
	})
	err := s.call(ctx, func(ctx context.Context) error {
		return s.notifier.Publish(ctx, msg)
	})
	if err != nil {
		log.Error().Err(err).Msg("publish scan summary failed")
	}
}
