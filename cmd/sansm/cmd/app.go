package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/sanoj619/SanSM/internal/collector"
	"github.com/sanoj619/SanSM/internal/config"
	"github.com/sanoj619/SanSM/internal/notifier"
	"github.com/sanoj619/SanSM/internal/pipeline"
	"github.com/sanoj619/SanSM/internal/recorder"
)

// app holds the adapters built from the config and the service using them.
type app struct {
	svc      *pipeline.Service
	store    recorder.Store
	telegram *notifier.TelegramNotifier
	kafka    *notifier.KafkaNotifier
}

func newApp(ctx context.Context, c *config.Config) (*app, error) {
	fetcher := newFetcher(c)
	log.Info().Str("source", fetcher.Name()).Msg("data source ready")

	if c.Database.SQLitePath != "" && c.Database.PostgresURL == "" {
		if err := os.MkdirAll(filepath.Dir(c.Database.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	store, err := recorder.Open(ctx, c.Database.PostgresURL, c.Database.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	log.Info().Str("store", store.Name()).Msg("store ready")

	a := &app{store: store}
	var channels []notifier.Notifier
	if c.Telegram.BotToken != "" {
		a.telegram = notifier.NewTelegramNotifier(c.Telegram.BotToken, c.Telegram.ChatID, c.DataSource.Proxy)
		channels = append(channels, a.telegram)
	}
	if c.SNS.TopicARN != "" {
		sns, err := notifier.NewSNSNotifier(ctx, c.SNS.TopicARN, c.SNS.Region, c.SNS.AccessKey, c.SNS.SecretKey)
		if err != nil {
			a.Close()
			return nil, err
		}
		channels = append(channels, sns)
	}
	if len(c.Kafka.Brokers) > 0 {
		k, err := notifier.NewKafkaNotifier(c.Kafka.Brokers, c.Kafka.Topic)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.kafka = k
		channels = append(channels, k)
	}
	n := notifier.Combine(channels...)
	log.Info().Str("notifier", n.Name()).Int("channels", len(channels)).Msg("notifier ready")

	a.svc = pipeline.New(fetcher, store, n, pipeline.Options{
		Concurrency:       c.Scan.Concurrency,
		CallTimeout:       c.Scan.CallTimeout,
		Alert:             c.AlertPolicy(),
		NotifyScanSummary: c.Scan.NotifySummary,
	})
	return a, nil
}

func newFetcher(c *config.Config) collector.Fetcher {
	if c.DataSource.Kind == config.SourceMock {
		m := collector.NewMockFetcher()
		m.Set("INFY", collector.MockSnapshot("INFY", 1510, 1510, 1530.1, 1523.45))
		m.Set("TCS", collector.MockSnapshot("TCS", 3490, 3472.5, 3490, 3480))
		m.Set("RELIANCE", collector.MockSnapshot("RELIANCE", 2905, 2890, 2931.8, 2920.05))
		return m
	}
	return collector.NewNSEFetcher(c.DataSource.BaseURL, c.DataSource.Proxy, c.DataSource.Timeout)
}

// Close releases the store and flushes the Kafka writer.
func (a *app) Close() {
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			log.Warn().Err(err).Msg("close kafka writer")
		}
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("close store")
	}
}
