package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanoj619/SanSM/internal/collector"
	"github.com/sanoj619/SanSM/internal/model"
	"github.com/sanoj619/SanSM/internal/recorder"
	"github.com/sanoj619/SanSM/internal/strategy"
)

// fakeFetcher serves snapshots from a map and tracks concurrency.
type fakeFetcher struct {
	mu        sync.Mutex
	snapshots map[string]*model.InstrumentSnapshot
	fail      map[string]error
	delay     func(symbol string) time.Duration
	universe  []string

	calls, inFlight, peak atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		snapshots: make(map[string]*model.InstrumentSnapshot),
		fail:      make(map[string]error),
	}
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) FetchInstrument(ctx context.Context, symbol string) (*model.InstrumentSnapshot, error) {
	f.calls.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.peak.Load()
		if cur <= old || f.peak.CompareAndSwap(old, cur) {
			break
		}
	}

	if f.delay != nil {
		select {
		case <-time.After(f.delay(symbol)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[symbol]; ok {
		return nil, err
	}
	s, ok := f.snapshots[symbol]
	if !ok {
		return nil, collector.ErrNotFound
	}
	return s, nil
}

func (f *fakeFetcher) ListAllSymbols(ctx context.Context) ([]string, error) {
	return f.universe, nil
}

// fakeStore hands out one shared in-memory session.
type fakeStore struct {
	sess       *fakeSession
	acquireErr error
	acquired   atomic.Int32
}

func newFakeStore(tracked ...model.TrackedRow) *fakeStore {
	return &fakeStore{sess: &fakeSession{tracked: tracked, names: map[string]bool{}}}
}

func (s *fakeStore) Name() string { return "fake" }
func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) Acquire(ctx context.Context) (recorder.Session, error) {
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	s.acquired.Add(1)
	return s.sess, nil
}

type fakeSession struct {
	mu        sync.Mutex
	tracked   []model.TrackedRow
	names     map[string]bool
	outcomes  []model.OutcomeRow
	quotes    []model.QuoteRow
	inserted  []string
	listErr   error
	writeErr  error
	failOn    map[string]bool
	listCalls int
	releases  atomic.Int32
}

func (s *fakeSession) ListTracked(ctx context.Context) ([]model.TrackedRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return s.tracked, s.listErr
}

func (s *fakeSession) InsertOutcome(ctx context.Context, row model.OutcomeRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil || s.failOn[row.Symbol] {
		return errors.New("disk full")
	}
	s.outcomes = append(s.outcomes, row)
	return nil
}

func (s *fakeSession) InsertQuote(ctx context.Context, row model.QuoteRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.quotes = append(s.quotes, row)
	return nil
}

func (s *fakeSession) InsertTracked(ctx context.Context, symbol string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return false, s.writeErr
	}
	if s.names[symbol] {
		return false, nil
	}
	s.names[symbol] = true
	s.inserted = append(s.inserted, symbol)
	return true, nil
}

func (s *fakeSession) Release() { s.releases.Add(1) }

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (n *fakeNotifier) Name() string { return "fake" }

func (n *fakeNotifier) Publish(ctx context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

func quote(symbol string, open, low, high float64) *model.InstrumentSnapshot {
	return collector.MockSnapshot(symbol, open, low, high, open)
}

func TestProcessStock_EndToEnd(t *testing.T) {
	f := newFakeFetcher()
	f.snapshots["TCS"] = &model.InstrumentSnapshot{
		Metadata: &model.Metadata{Symbol: "TCS", Series: "EQ"},
		PriceInfo: &model.PriceInfo{
			LastPrice: decimal.NewNullDecimal(decimal.NewFromInt(3500)),
			VWAP:      decimal.NewNullDecimal(decimal.NewFromInt(3480)),
		},
	}
	store := newFakeStore()
	n := &fakeNotifier{}

	res, err := New(f, store, n, Options{}).ProcessStock(context.Background(), "TCS")
	require.NoError(t, err)
	assert.True(t, res.Complete())

	require.Len(t, store.sess.quotes, 1)
	q := store.sess.quotes[0]
	assert.Equal(t, "TCS", q.Symbol)
	assert.True(t, q.Price.Decimal.Equal(decimal.NewFromInt(3500)))
	assert.True(t, q.VWAP.Decimal.Equal(decimal.NewFromInt(3480)))

	require.Len(t, n.msgs, 1)
	assert.Contains(t, n.msgs[0], "TCS price is now 3500")
	assert.Equal(t, int32(1), store.sess.releases.Load())
}

func TestProcessStock_StoreFailureStillNotifies(t *testing.T) {
	f := newFakeFetcher()
	f.snapshots["X"] = quote("X", 10, 9, 11)
	store := newFakeStore()
	store.sess.writeErr = errors.New("connection reset")
	n := &fakeNotifier{}

	res, err := New(f, store, n, Options{}).ProcessStock(context.Background(), "X")
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.Contains(t, res.PersistError, "connection reset")
	assert.True(t, res.Notified)
	assert.Len(t, n.msgs, 1)
	assert.False(t, res.Complete())
	assert.Equal(t, int32(1), store.sess.releases.Load())
}

func TestProcessStock_AcquireFailureStillNotifies(t *testing.T) {
	f := newFakeFetcher()
	f.snapshots["X"] = quote("X", 10, 9, 11)
	store := newFakeStore()
	store.acquireErr = recorder.ErrNoStore
	n := &fakeNotifier{}

	res, err := New(f, store, n, Options{}).ProcessStock(context.Background(), "X")
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.True(t, res.Notified)
}

func TestProcessStock_NotifyFailureIsReported(t *testing.T) {
	f := newFakeFetcher()
	f.snapshots["X"] = quote("X", 10, 9, 11)
	n := &fakeNotifier{err: errors.New("sns throttled")}

	res, err := New(f, newFakeStore(), n, Options{}).ProcessStock(context.Background(), "X")
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.True(t, res.Alerted)
	assert.False(t, res.Notified)
	assert.Contains(t, res.NotifyError, "sns throttled")
}

func TestProcessStock_FetchFailure(t *testing.T) {
	f := newFakeFetcher()
	f.fail["BAD"] = errors.New("provider down")
	store := newFakeStore()
	n := &fakeNotifier{}

	_, err := New(f, store, n, Options{}).ProcessStock(context.Background(), "BAD")
	assert.EqualError(t, err, "provider down")
	assert.Empty(t, store.sess.quotes)
	assert.Empty(t, n.msgs)
	assert.Zero(t, store.acquired.Load())
}

func TestProcessStock_EmptySnapshot(t *testing.T) {
	f := newFakeFetcher()
	f.snapshots["EMPTY"] = &model.InstrumentSnapshot{}

	_, err := New(f, newFakeStore(), &fakeNotifier{}, Options{}).ProcessStock(context.Background(), "EMPTY")
	assert.ErrorIs(t, err, collector.ErrEmptySnapshot)
}

func noPriceQuote(symbol string) *model.InstrumentSnapshot {
	return &model.InstrumentSnapshot{
		Info:     &model.Info{Symbol: symbol, IsFNOSec: true},
		Metadata: &model.Metadata{Symbol: symbol, Series: "EQ"},
	}
}

func TestProcessStock_MissingPriceInfo(t *testing.T) {
	f := newFakeFetcher()
	f.snapshots["NEWCO"] = noPriceQuote("NEWCO")
	store := newFakeStore()
	n := &fakeNotifier{}

	res, err := New(f, store, n, Options{}).ProcessStock(context.Background(), "NEWCO")
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.False(t, res.LastPrice.Valid)
	assert.False(t, res.VWAP.Valid)

	require.Len(t, store.sess.quotes, 1)
	assert.False(t, store.sess.quotes[0].Price.Valid)
	require.Len(t, n.msgs, 1)
	assert.Equal(t, "Stock Alert: NEWCO price is now unavailable", n.msgs[0])
}

func TestProcessStock_AlertPolicySuppresses(t *testing.T) {
	f := newFakeFetcher()
	f.snapshots["X"] = quote("X", 10, 9, 11)
	n := &fakeNotifier{}
	opts := Options{Alert: strategy.AlertPolicy{Mode: strategy.AlertAbove, Threshold: decimal.NewFromInt(100)}}

	res, err := New(f, newFakeStore(), n, opts).ProcessStock(context.Background(), "X")
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.False(t, res.Alerted)
	assert.Empty(t, n.msgs)
	assert.True(t, res.Complete())
}

func TestScanOHL_IsolatesFailures(t *testing.T) {
	f := newFakeFetcher()
	var tracked []model.TrackedRow
	for i := 0; i < 20; i++ {
		sym := fmt.Sprintf("S%02d", i)
		tracked = append(tracked, model.TrackedRow{ID: int64(i + 1), Symbol: sym})
		switch {
		case i%5 == 0:
			f.fail[sym] = errors.New("timeout")
		case i%2 == 0:
			f.snapshots[sym] = quote(sym, 100, 100, 110)
		default:
			f.snapshots[sym] = quote(sym, 105, 100, 110)
		}
	}
	store := newFakeStore(tracked...)

	report, err := New(f, store, &fakeNotifier{}, Options{}).ScanOHL(context.Background())
	require.NoError(t, err)

	// Even indexes not divisible by 5 match: 2,4,6,8,12,14,16,18.
	assert.Equal(t, 20, report.Total)
	assert.Equal(t, 8, report.Written)
	assert.Equal(t, 8, report.Matched)
	assert.Equal(t, 4, report.Failed)
	assert.Len(t, store.sess.outcomes, 8)
	assert.Equal(t, int32(20), f.calls.Load())
	require.Len(t, report.Rows, 20)
	assert.Equal(t, StatusFetchFailed, report.Rows[0].Status)
	assert.Equal(t, StatusSkipped, report.Rows[1].Status)
	assert.Equal(t, StatusWritten, report.Rows[2].Status)
	assert.Equal(t, int32(1), store.sess.releases.Load())
}

func TestScanOHL_ConcurrencyBound(t *testing.T) {
	f := newFakeFetcher()
	f.delay = func(string) time.Duration { return 10 * time.Millisecond }
	var tracked []model.TrackedRow
	for i := 0; i < 40; i++ {
		sym := fmt.Sprintf("S%02d", i)
		tracked = append(tracked, model.TrackedRow{ID: int64(i), Symbol: sym})
		f.snapshots[sym] = quote(sym, 105, 100, 110)
	}

	report, err := New(f, newFakeStore(tracked...), nil, Options{Concurrency: 4}).ScanOHL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, report.Total)
	assert.LessOrEqual(t, f.peak.Load(), int32(4))
	assert.Equal(t, int32(40), f.calls.Load())
}

func TestScanOHL_SingleAsOfDate(t *testing.T) {
	f := newFakeFetcher()
	f.delay = func(sym string) time.Duration {
		if sym == "SLOW" {
			return 30 * time.Millisecond
		}
		return 0
	}
	f.snapshots["FAST"] = quote("FAST", 100, 100, 110)
	f.snapshots["SLOW"] = quote("SLOW", 110, 100, 110)
	store := newFakeStore(model.TrackedRow{ID: 1, Symbol: "FAST"}, model.TrackedRow{ID: 2, Symbol: "SLOW"})

	svc := New(f, store, nil, Options{})
	// One minute before UTC midnight: the slow fetch finishes "tomorrow".
	svc.now = func() time.Time { return time.Date(2026, time.October, 19, 23, 59, 59, 0, time.UTC) }

	report, err := svc.ScanOHL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", report.AsOf)
	require.Len(t, store.sess.outcomes, 2)
	for _, o := range store.sess.outcomes {
		assert.Equal(t, "2026-10-19", o.AsOfDate)
	}
}

func TestScanOHL_EmptyTrackedSet(t *testing.T) {
	f := newFakeFetcher()
	store := newFakeStore()
	n := &fakeNotifier{}

	report, err := New(f, store, n, Options{}).ScanOHL(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Zero(t, report.Written)
	assert.Empty(t, report.Rows)
	assert.Zero(t, f.calls.Load())
	assert.Empty(t, store.sess.outcomes)
	assert.Empty(t, n.msgs)
}

func TestScanOHL_StoreFailures(t *testing.T) {
	f := newFakeFetcher()
	f.snapshots["A"] = quote("A", 100, 100, 110)
	f.snapshots["B"] = quote("B", 110, 100, 110)
	store := newFakeStore(model.TrackedRow{ID: 1, Symbol: "A"}, model.TrackedRow{ID: 2, Symbol: "B"})
	store.sess.failOn = map[string]bool{"A": true}

	report, err := New(f, store, nil, Options{}).ScanOHL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Matched)
	assert.Equal(t, 1, report.Written)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, StatusStoreFailed, report.Rows[0].Status)
	assert.Contains(t, report.Rows[0].Error, "disk full")
}

func TestScanOHL_ListFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.sess.listErr = errors.New("no such table")

	_, err := New(newFakeFetcher(), store, nil, Options{}).ScanOHL(context.Background())
	assert.ErrorContains(t, err, "no such table")
	assert.Equal(t, int32(1), store.sess.releases.Load())
}

func TestScanOHL_AcquireFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.acquireErr = recorder.ErrNoStore

	_, err := New(newFakeFetcher(), store, nil, Options{}).ScanOHL(context.Background())
	assert.ErrorIs(t, err, recorder.ErrNoStore)
}

func TestScanOHL_HungFetchTimesOut(t *testing.T) {
	f := newFakeFetcher()
	f.delay = func(sym string) time.Duration {
		if sym == "HUNG" {
			return time.Hour
		}
		return 0
	}
	f.snapshots["OK"] = quote("OK", 100, 100, 110)
	store := newFakeStore(model.TrackedRow{ID: 1, Symbol: "HUNG"}, model.TrackedRow{ID: 2, Symbol: "OK"})

	report, err := New(f, store, nil, Options{CallTimeout: 20 * time.Millisecond}).ScanOHL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusFetchFailed, report.Rows[0].Status)
	assert.Contains(t, report.Rows[0].Error, context.DeadlineExceeded.Error())
	assert.Equal(t, StatusWritten, report.Rows[1].Status)
}

func TestScanOHL_PublishesSummary(t *testing.T) {
	f := newFakeFetcher()
	f.snapshots["INFY"] = quote("INFY", 100, 100, 110)
	n := &fakeNotifier{}

	_, err := New(f, newFakeStore(model.TrackedRow{ID: 1, Symbol: "INFY"}), n, Options{NotifyScanSummary: true}).
		ScanOHL(context.Background())
	require.NoError(t, err)
	require.Len(t, n.msgs, 1)
	assert.True(t, strings.Contains(n.msgs[0], "INFY"))
}

func TestRefreshUniverse(t *testing.T) {
	f := newFakeFetcher()
	f.universe = []string{"INFY", "TCS", "GOLDBEES", "SMALLCO", "BROKEN"}
	f.snapshots["INFY"] = quote("INFY", 1, 1, 1)
	f.snapshots["TCS"] = quote("TCS", 1, 1, 1)
	f.snapshots["GOLDBEES"] = quote("GOLDBEES", 1, 1, 1)
	f.snapshots["GOLDBEES"].Metadata.Series = "BE"
	f.snapshots["SMALLCO"] = quote("SMALLCO", 1, 1, 1)
	f.snapshots["SMALLCO"].Info.IsFNOSec = false
	f.fail["BROKEN"] = errors.New("502")

	store := newFakeStore()
	store.sess.names["TCS"] = true

	report, err := New(f, store, nil, Options{}).RefreshUniverse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 2, report.Eligible)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"INFY"}, store.sess.inserted)
	assert.Equal(t, "502", report.Rows[4].Error)
	assert.Equal(t, int32(1), store.sess.releases.Load())
}

func TestRefreshUniverse_MissingPriceInfo(t *testing.T) {
	f := newFakeFetcher()
	f.universe = []string{"NEWCO"}
	f.snapshots["NEWCO"] = noPriceQuote("NEWCO")
	store := newFakeStore()

	report, err := New(f, store, nil, Options{}).RefreshUniverse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Eligible)
	assert.Equal(t, 1, report.Inserted)
	assert.Zero(t, report.Failed)
	assert.Equal(t, []string{"NEWCO"}, store.sess.inserted)
}

func TestScanOHL_MissingPriceInfoIsSkipped(t *testing.T) {
	f := newFakeFetcher()
	f.snapshots["NEWCO"] = noPriceQuote("NEWCO")
	store := newFakeStore(model.TrackedRow{ID: 1, Symbol: "NEWCO"})

	report, err := New(f, store, nil, Options{}).ScanOHL(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, StatusSkipped, report.Rows[0].Status)
	assert.Empty(t, store.sess.outcomes)
}

func TestRefreshUniverse_ConcurrencyBound(t *testing.T) {
	f := newFakeFetcher()
	f.delay = func(string) time.Duration { return 10 * time.Millisecond }
	for i := 0; i < 40; i++ {
		sym := fmt.Sprintf("U%02d", i)
		f.universe = append(f.universe, sym)
		f.snapshots[sym] = quote(sym, 1, 1, 1)
	}
	store := newFakeStore()

	report, err := New(f, store, nil, Options{Concurrency: 4}).RefreshUniverse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, report.Total)
	assert.Equal(t, 40, report.Inserted)
	assert.LessOrEqual(t, f.peak.Load(), int32(4))
	assert.Equal(t, int32(40), f.calls.Load())
}

func TestRefreshUniverse_EmptyUniverse(t *testing.T) {
	f := newFakeFetcher()
	store := newFakeStore()

	report, err := New(f, store, nil, Options{}).RefreshUniverse(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Zero(t, store.acquired.Load())
	assert.Zero(t, f.calls.Load())
}

func TestNew_Defaults(t *testing.T) {
	svc := New(newFakeFetcher(), newFakeStore(), nil, Options{})
	assert.Equal(t, 10, svc.Options().Concurrency)
	assert.Equal(t, DefaultCallTimeout, svc.Options().CallTimeout)
	assert.Equal(t, "log", svc.notifier.Name())
}
