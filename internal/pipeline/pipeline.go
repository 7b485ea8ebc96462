// Package pipeline wires the data source, store and notifier together into
// the three operations the service exposes: the single-symbol quote
// pipeline, the OHL scan over tracked instruments and the refresh of the
// tracked universe.
package pipeline

import (
	"context"
	"time"

	"github.com/sanoj619/SanSM/internal/batch"
	"github.com/sanoj619/SanSM/internal/collector"
	"github.com/sanoj619/SanSM/internal/notifier"
	"github.com/sanoj619/SanSM/internal/recorder"
	"github.com/sanoj619/SanSM/internal/strategy"
)

// DefaultCallTimeout bounds a single adapter call.
const DefaultCallTimeout = 10 * time.Second

// Options tunes a Service.
type Options struct {
	// Concurrency caps simultaneous per-item units in batch operations.
	Concurrency int
	// CallTimeout bounds every fetch, store and notify call.
	CallTimeout time.Duration
	// Alert decides whether a processed quote is published.
	Alert strategy.AlertPolicy
	// NotifyScanSummary publishes a digest after every OHL scan.
	NotifyScanSummary bool
}

// Service runs the pipelines. It holds no per-run state and is safe for
// concurrent use.
type Service struct {
	fetcher  collector.Fetcher
	store    recorder.Store
	notifier notifier.Notifier
	opts     Options

	now func() time.Time
}

// New creates a Service. Zero options fall back to their defaults.
func New(f collector.Fetcher, s recorder.Store, n notifier.Notifier, opts Options) *Service {
	if opts.Concurrency < 1 {
		opts.Concurrency = batch.DefaultLimit
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if n == nil {
		n = notifier.LogNotifier{}
	}
	return &Service{
		fetcher:  f,
		store:    s,
		notifier: n,
		opts:     opts,
		now:      time.Now,
	}
}

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

func (s *Service) runner() batch.Runner {
	return batch.NewRunner(s.opts.Concurrency, 0)
}

// call runs fn under the per-call timeout.
func (s *Service) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *Service) acquire(ctx context.Context) (recorder.Session, error) {
	var sess recorder.Session
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		sess, err = s.store.Acquire(ctx)
		return err
	})
	return sess, err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
