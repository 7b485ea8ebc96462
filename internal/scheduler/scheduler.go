package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/sanoj619/SanSM/internal/pipeline"
)

// Jobs is the work the scheduler and chat commands can trigger.
type Jobs interface {
	ScanOHL(ctx context.Context) (*pipeline.ScanReport, error)
	RefreshUniverse(ctx context.Context) (*pipeline.RefreshReport, error)
	ProcessStock(ctx context.Context, symbol string) (*pipeline.QuoteResult, error)
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron *cron.Cron
	Jobs Jobs
	Ctx  context.Context
}

// NewScheduler creates a new Scheduler. A job still running when its next
// tick fires is not started twice.
func NewScheduler(ctx context.Context, jobs Jobs, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		Jobs: jobs,
		Ctx:  ctx,
	}
}

// RegisterAll registers the OHL scan and the universe refresh. An empty
// expression leaves that job unscheduled.
func (s *Scheduler) RegisterAll(ohlCron, universeCron string) error {
	if ohlCron != "" {
		if _, err := s.Cron.AddFunc(ohlCron, s.ohlTask); err != nil {
			return fmt.Errorf("register ohl task: %w", err)
		}
		log.Info().Str("cron", ohlCron).Msg("ohl scan scheduled")
	}
	if universeCron != "" {
		if _, err := s.Cron.AddFunc(universeCron, s.universeTask); err != nil {
			return fmt.Errorf("register universe task: %w", err)
		}
		log.Info().Str("cron", universeCron).Msg("universe refresh scheduled")
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunOHLNow executes the OHL scan immediately (for RUN_ON_START).
func (s *Scheduler) RunOHLNow() {
	s.ohlTask()
}

func (s *Scheduler) ohlTask() {
	log.Info().Msg("running scheduled ohl scan")
	if _, err := s.Jobs.ScanOHL(s.Ctx); err != nil {
		log.Error().Err(err).Msg("scheduled ohl scan failed")
	}
}

func (s *Scheduler) universeTask() {
	log.Info().Msg("running scheduled universe refresh")
	if _, err := s.Jobs.RefreshUniverse(s.Ctx); err != nil {
		log.Error().Err(err).Msg("scheduled universe refresh failed")
	}
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	switch strings.ToLower(fields[0]) {
	case "/scan":
		r, err := s.Jobs.ScanOHL(ctx)
		if err != nil {
			return "OHL scan failed: " + err.Error()
		}
		return fmt.Sprintf("OHL scan %s: %d tracked, %d written, %d failed", r.AsOf, r.Total, r.Written, r.Failed)
	case "/refresh":
		r, err := s.Jobs.RefreshUniverse(ctx)
		if err != nil {
			return "Universe refresh failed: " + err.Error()
		}
		return fmt.Sprintf("Universe refresh: %d symbols, %d eligible, %d added, %d failed", r.Total, r.Eligible, r.Inserted, r.Failed)
	case "/quote":
		if len(fields) < 2 {
			return "Usage: /quote SYMBOL"
		}
		symbol := strings.ToUpper(fields[1])
		r, err := s.Jobs.ProcessStock(ctx, symbol)
		if err != nil {
			return fmt.Sprintf("Quote %s failed: %v", symbol, err)
		}
		if r.Notified {
			return ""
		}
		return fmt.Sprintf("%s last price %s", symbol, r.LastPrice.Decimal.String())
	default:
		return helpText
	}
}

const helpText = "Commands:\n/quote SYMBOL\n/scan\n/refresh"

// cronLogger routes cron's own messages to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
