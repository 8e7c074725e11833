// Package config loads and validates tracker configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Pager     PagerConfig     `mapstructure:"pager"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	DB        DBConfig        `mapstructure:"db"`
	Report    ReportConfig    `mapstructure:"report"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CatalogConfig points the fetcher at the catalog search API.
type CatalogConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
}

// RetryConfig governs the per-page retry budget.
type RetryConfig struct {
	MaxRetries        int `mapstructure:"max_retries"`
	BaseDelayMs       int `mapstructure:"base_delay_ms"`
	RequestTimeoutSec int `mapstructure:"request_timeout_seconds"`
}

// PagerConfig bounds concurrent pagination.
type PagerConfig struct {
	MaxConcurrentPages int `mapstructure:"max_concurrent_pages"`
	PageCeiling        int `mapstructure:"page_ceiling"`
	InterBatchDelayMs  int `mapstructure:"inter_batch_delay_ms"`
}

// SchedulerConfig controls the periodic tracking cadence.
type SchedulerConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CronSpec           string `mapstructure:"cron_spec"`
	BatchSize          int    `mapstructure:"batch_size"`
	InterBatchDelaySec int    `mapstructure:"inter_batch_delay_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN                string `mapstructure:"dsn"`
	MaxConns           int32  `mapstructure:"max_conns"`
	MinConns           int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMin int    `mapstructure:"max_conn_lifetime_minutes"`
}

// ReportConfig targets the spreadsheet sink.
type ReportConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	SpreadsheetID   string  `mapstructure:"spreadsheet_id"`
	CredentialsFile string  `mapstructure:"credentials_file"`
	RatePerSecond   float64 `mapstructure:"rate_per_second"`
	RateBurst       int     `mapstructure:"rate_burst"`
}

// PubSubConfig holds metadata for snapshot event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ArchiveConfig sets the bucket for raw catalog response archival.
type ArchiveConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("catalog.base_url", "https://search.wb.ru/exactmatch/ru/common/v4/search")
	v.SetDefault("catalog.user_agent", "position-tracker/0.1")
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay_ms", 1000)
	v.SetDefault("retry.request_timeout_seconds", 13)
	v.SetDefault("pager.max_concurrent_pages", 4)
	v.SetDefault("pager.page_ceiling", 60)
	v.SetDefault("pager.inter_batch_delay_ms", 1000)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.cron_spec", "@every 4h")
	v.SetDefault("scheduler.batch_size", 5)
	v.SetDefault("scheduler.inter_batch_delay_seconds", 10)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("report.enabled", false)
	v.SetDefault("report.rate_per_second", 1)
	v.SetDefault("report.rate_burst", 1)
	v.SetDefault("archive.prefix", "responses")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url must be set")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0")
	}
	if c.Retry.RequestTimeoutSec <= 0 {
		return fmt.Errorf("retry.request_timeout_seconds must be > 0")
	}
	if c.Pager.MaxConcurrentPages <= 0 {
		return fmt.Errorf("pager.max_concurrent_pages must be > 0")
	}
	if c.Pager.PageCeiling <= 0 {
		return fmt.Errorf("pager.page_ceiling must be > 0")
	}
	if c.Scheduler.Enabled && c.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("scheduler.batch_size must be > 0 when the scheduler is enabled")
	}
	if c.Report.Enabled && c.Report.SpreadsheetID == "" {
		return fmt.Errorf("report.spreadsheet_id must be set when reporting is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// RequestTimeout converts the retry timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Retry.RequestTimeoutSec) * time.Second
}
