package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sanoj619/SanSM/internal/strategy"
)

// DefaultPath is read when neither --config nor CONFIG_PATH is given.
const DefaultPath = "configs/config.yaml"

// Data source kinds.
const (
	SourceNSE  = "nse"
	SourceMock = "mock"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr" env:"SERVER_ADDR"`
	} `yaml:"server"`
	DataSource struct {
		Kind    string        `yaml:"kind" env:"DATA_SOURCE"`
		BaseURL string        `yaml:"base_url" env:"NSE_BASE_URL"`
		Timeout time.Duration `yaml:"timeout" env:"NSE_TIMEOUT"`
		Proxy   string        `yaml:"proxy" env:"HTTPS_PROXY"`
	} `yaml:"data_source"`
	Database struct {
		SQLitePath  string `yaml:"sqlite_path" env:"SQLITE_PATH"`
		PostgresURL string `yaml:"postgres_url" env:"DATABASE_URL"`
		Host        string `yaml:"host" env:"DB_HOST"`
		User        string `yaml:"user" env:"DB_USER"`
		Password    string `yaml:"password" env:"DB_PASS"`
		Name        string `yaml:"name" env:"DB_NAME"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
		ChatID   string `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
		Commands bool   `yaml:"commands" env:"TELEGRAM_COMMANDS"`
	} `yaml:"telegram"`
	SNS struct {
		TopicARN  string `yaml:"topic_arn" env:"TOPIC"`
		Region    string `yaml:"region" env:"AWS_REGION"`
		AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
		SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	} `yaml:"sns"`
	Kafka struct {
		Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
		Topic   string   `yaml:"topic" env:"KAFKA_TOPIC"`
	} `yaml:"kafka"`
	Scan struct {
		Concurrency   int           `yaml:"concurrency" env:"SCAN_CONCURRENCY"`
		CallTimeout   time.Duration `yaml:"call_timeout" env:"SCAN_CALL_TIMEOUT"`
		NotifySummary bool          `yaml:"notify_summary" env:"SCAN_NOTIFY_SUMMARY"`
	} `yaml:"scan"`
	Alert struct {
		Mode      string              `yaml:"mode" env:"ALERT_MODE"`
		Threshold decimal.NullDecimal `yaml:"threshold" env:"ALERT_THRESHOLD"`
	} `yaml:"alert"`
	Schedule struct {
		OHLCron      string `yaml:"ohl_cron" env:"CRON_OHL"`
		UniverseCron string `yaml:"universe_cron" env:"CRON_UNIVERSE"`
		Timezone     string `yaml:"timezone" env:"SCHEDULE_TZ"`
	} `yaml:"schedule"`
	Logging struct {
		Level         string `yaml:"level" env:"LOG_LEVEL"`
		Format        string `yaml:"format" env:"LOG_FORMAT"`
		FileEnabled   bool   `yaml:"file_enabled" env:"LOG_FILE_ENABLED"`
		FilePath      string `yaml:"file_path" env:"LOG_FILE_PATH"`
		RotationSize  int    `yaml:"rotation_size" env:"LOG_ROTATION_SIZE"`
		RetentionDays int    `yaml:"retention_days" env:"LOG_RETENTION_DAYS"`
	} `yaml:"logging"`
}

// ResolvePath picks the config file: the explicit flag, then CONFIG_PATH, then DefaultPath.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides, then fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.DataSource.Kind == "" {
		c.DataSource.Kind = SourceNSE
	}
	if c.DataSource.Timeout == 0 {
		c.DataSource.Timeout = 30 * time.Second
	}
	if c.Database.PostgresURL == "" && c.Database.Host != "" {
		c.Database.PostgresURL = c.postgresURLFromParts()
	}
	if c.Database.PostgresURL == "" && c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/sansm.db"
	}
	if c.SNS.Region == "" {
		c.SNS.Region = "us-east-1"
	}
	if c.Scan.Concurrency == 0 {
		c.Scan.Concurrency = 10
	}
	if c.Scan.CallTimeout == 0 {
		c.Scan.CallTimeout = 10 * time.Second
	}
	if c.Alert.Mode == "" {
		c.Alert.Mode = string(strategy.AlertAlways)
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Asia/Kolkata"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "pretty"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs"
	}
	if c.Logging.RotationSize == 0 {
		c.Logging.RotationSize = 100
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = 14
	}
}

func (c *Config) postgresURLFromParts() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   c.Database.Host,
		Path:   "/" + c.Database.Name,
	}
	if c.Database.User != "" {
		u.User = url.UserPassword(c.Database.User, c.Database.Password)
	}
	return u.String()
}

// AlertPolicy returns the configured alert policy.
func (c *Config) AlertPolicy() strategy.AlertPolicy {
	return strategy.AlertPolicy{
		Mode:      strategy.AlertMode(c.Alert.Mode),
		Threshold: c.Alert.Threshold.Decimal,
	}
}

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	switch c.DataSource.Kind {
	case SourceNSE, SourceMock:
	default:
		return fmt.Errorf("data_source.kind %q is not one of nse, mock", c.DataSource.Kind)
	}
	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("scan.concurrency must be at least 1")
	}
	if c.Scan.CallTimeout <= 0 {
		return fmt.Errorf("scan.call_timeout must be positive")
	}
	if err := c.AlertPolicy().Validate(); err != nil {
		return err
	}
	if c.Alert.Mode != string(strategy.AlertAlways) && !c.Alert.Threshold.Valid {
		return fmt.Errorf("alert.threshold is required for mode %q", c.Alert.Mode)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Telegram.Commands && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.commands requires a bot token")
	}
	if (len(c.Kafka.Brokers) == 0) != (c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic must be set together")
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	return nil
}
