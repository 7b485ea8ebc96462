package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanoj619/SanSM/internal/pipeline"
)

type fakeJobs struct {
	scans, refreshes atomic.Int32
	block            chan struct{}
	started          chan struct{}
	err              error
	quoted           string
}

func (f *fakeJobs) ScanOHL(ctx context.Context) (*pipeline.ScanReport, error) {
	f.scans.Add(1)
	if f.block != nil {
		f.started <- struct{}{}
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.ScanReport{AsOf: "2026-10-19", Total: 5, Written: 2, Failed: 1}, nil
}

func (f *fakeJobs) RefreshUniverse(ctx context.Context) (*pipeline.RefreshReport, error) {
	f.refreshes.Add(1)
	return &pipeline.RefreshReport{Total: 10, Eligible: 4, Inserted: 1}, f.err
}

func (f *fakeJobs) ProcessStock(ctx context.Context, symbol string) (*pipeline.QuoteResult, error) {
	f.quoted = symbol
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.QuoteResult{
		Symbol:    symbol,
		LastPrice: decimal.NewNullDecimal(decimal.RequireFromString("3500")),
		Fetched:   true,
	}, nil
}

func TestRegisterAll(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeJobs{}, time.UTC)
	require.NoError(t, s.RegisterAll("0 20 9 * * 1-5", ""))
	assert.Len(t, s.Cron.Entries(), 1)

	require.NoError(t, s.RegisterAll("", "0 0 8 * * 1"))
	assert.Len(t, s.Cron.Entries(), 2)

	assert.Error(t, s.RegisterAll("not a cron", ""))
}

func TestSkipIfStillRunning(t *testing.T) {
	jobs := &fakeJobs{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := NewScheduler(context.Background(), jobs, time.UTC)
	require.NoError(t, s.RegisterAll("0 20 9 * * 1-5", ""))
	job := s.Cron.Entries()[0].WrappedJob

	done := make(chan struct{})
	go func() {
		job.Run()
		close(done)
	}()
	<-jobs.started

	job.Run() // overlapping tick is dropped
	close(jobs.block)
	<-done

	assert.Equal(t, int32(1), jobs.scans.Load())
}

func TestRunOHLNow_LogsFailure(t *testing.T) {
	jobs := &fakeJobs{err: errors.New("no store configured")}
	s := NewScheduler(context.Background(), jobs, nil)
	assert.NotPanics(t, s.RunOHLNow)
	assert.Equal(t, int32(1), jobs.scans.Load())
}

func TestHandleCommand(t *testing.T) {
	jobs := &fakeJobs{}
	s := NewScheduler(context.Background(), jobs, time.UTC)
	ctx := context.Background()

	assert.Equal(t, "OHL scan 2026-10-19: 5 tracked, 2 written, 1 failed", s.HandleCommand(ctx, "/scan"))
	assert.Equal(t, "Universe refresh: 10 symbols, 4 eligible, 1 added, 0 failed", s.HandleCommand(ctx, "/refresh"))
	assert.Equal(t, "TCS last price 3500", s.HandleCommand(ctx, "/quote tcs"))
	assert.Equal(t, "TCS", jobs.quoted)
	assert.Equal(t, "Usage: /quote SYMBOL", s.HandleCommand(ctx, "/quote"))
	assert.Equal(t, helpText, s.HandleCommand(ctx, "hello"))
	assert.Equal(t, helpText, s.HandleCommand(ctx, "  "))

	jobs.err = errors.New("provider down")
	assert.Equal(t, "Quote INFY failed: provider down", s.HandleCommand(ctx, "/quote INFY"))
	assert.Equal(t, "OHL scan failed: provider down", s.HandleCommand(ctx, "/scan"))
}
