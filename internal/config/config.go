package config

import (
	"fmt"
	"time"
)

type Config struct {
	HTTP          HttpConfig          `yaml:"http" mapstructure:"http"`
	Backoff       BackoffConfig       `yaml:"backoff" mapstructure:"backoff"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" mapstructure:"rate_limit"`
	Robots        RobotsConfig        `yaml:"robots" mapstructure:"robots"`
	Rod           RodConfig           `yaml:"rod" mapstructure:"rod"`
	Aggregator    AggregatorConfig    `yaml:"aggregator" mapstructure:"aggregator"`
	SourcesFile   string              `yaml:"sources_file" mapstructure:"sources_file"`
	Normalize     NormalizeConfig     `yaml:"normalize" mapstructure:"normalize"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	Redis         RedisConfig         `yaml:"redis" mapstructure:"redis"`
	Scheduler     SchedulerConfig     `yaml:"scheduler" mapstructure:"scheduler"`
	API           APIConfig           `yaml:"api" mapstructure:"api"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

type HttpConfig struct {
	UserAgent                 string `yaml:"user_agent" mapstructure:"user_agent"`
	AcceptLanguage            string `yaml:"accept_language" mapstructure:"accept_language"`
	ConnectTimeoutMS          int    `yaml:"connect_timeout_ms" mapstructure:"connect_timeout_ms"`
	TotalTimeoutMS            int    `yaml:"total_timeout_ms" mapstructure:"total_timeout_ms"`
	MaxRetries                int    `yaml:"max_retries" mapstructure:"max_retries"`
	MaxIdleConnections        int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
	MaxIdleConnectionsPerHost int    `yaml:"max_idle_connections_per_host" mapstructure:"max_idle_connections_per_host"`
	IdleConnectionTimeoutS    int    `yaml:"idle_connection_timeout_s" mapstructure:"idle_connection_timeout_s"`
	MaxBodyBytes              int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

type BackoffConfig struct {
	MinMS     int `yaml:"min_ms" mapstructure:"min_ms"`
	MaxMS     int `yaml:"max_ms" mapstructure:"max_ms"`
	JitterPct int `yaml:"jitter_pct" mapstructure:"jitter_pct"`
}

type RateLimitConfig struct {
	MaxConcurrentPerHost int `yaml:"max_concurrent_per_host" mapstructure:"max_concurrent_per_host"`
	RPM                  int `yaml:"rpm" mapstructure:"rpm"`
}

type RobotsConfig struct {
	Respect       bool `yaml:"respect" mapstructure:"respect"`
	CacheTTLHours int  `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// RodConfig настройки headless Chrome для источников с render: browser
type RodConfig struct {
	Enabled          bool   `yaml:"enabled" mapstructure:"enabled"`
	ChromePath       string `yaml:"chrome_path" mapstructure:"chrome_path"`
	PageTimeoutS     int    `yaml:"page_timeout_s" mapstructure:"page_timeout_s"`
	WaitLoadTimeoutS int    `yaml:"wait_load_timeout_s" mapstructure:"wait_load_timeout_s"`
	LazyLoadDelayS   int    `yaml:"lazy_load_delay_s" mapstructure:"lazy_load_delay_s"`
}

type AggregatorConfig struct {
	// 0 = без ограничения
	MaxConcurrent   int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	SourceTimeoutMS int `yaml:"source_timeout_ms" mapstructure:"source_timeout_ms"`
}

type NormalizeConfig struct {
	TrimNBSP        bool   `yaml:"trim_nbsp" mapstructure:"trim_nbsp"`
	CollapseSpaces  bool   `yaml:"collapse_spaces" mapstructure:"collapse_spaces"`
	MaxPreviewChars int    `yaml:"max_preview_chars" mapstructure:"max_preview_chars"`
	Timezone        string `yaml:"timezone" mapstructure:"timezone"`
}

type StorageConfig struct {
	// none | mssql | postgres | mongodb
	Driver           string `yaml:"driver" mapstructure:"driver"`
	DSN              string `yaml:"dsn" mapstructure:"dsn"`
	Database         string `yaml:"database" mapstructure:"database"`
	Collection       string `yaml:"collection" mapstructure:"collection"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms" mapstructure:"command_timeout_ms"`
	BatchSize        int    `yaml:"batch_size" mapstructure:"batch_size"`
}

type RedisConfig struct {
	// пустой адрес = хранение в памяти
	Addr         string `yaml:"addr" mapstructure:"addr"`
	Password     string `yaml:"password" mapstructure:"password"`
	DB           int    `yaml:"db" mapstructure:"db"`
	KeyPrefix    string `yaml:"key_prefix" mapstructure:"key_prefix"`
	SnapshotTTLS int    `yaml:"snapshot_ttl_s" mapstructure:"snapshot_ttl_s"`
}

type SchedulerConfig struct {
	Mode      string `yaml:"mode" mapstructure:"mode"`
	IntervalS int    `yaml:"interval_s" mapstructure:"interval_s"`
	CronExpr  string `yaml:"cron_expr" mapstructure:"cron_expr"`
}

type APIConfig struct {
	Addr            string `yaml:"addr" mapstructure:"addr"`
	DefaultPageSize int    `yaml:"default_page_size" mapstructure:"default_page_size"`
	MaxPageSize     int    `yaml:"max_page_size" mapstructure:"max_page_size"`
}

type ObservabilityConfig struct {
	LogPath  string `yaml:"log_path" mapstructure:"log_path"`
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// DefaultConfig значения по умолчанию, поверх которых накладывается файл и env
func DefaultConfig() *Config {
	return &Config{
		HTTP: HttpConfig{
			UserAgent:                 "daily-news-parser/1.0 (+https://github.com/daily-news-parser)",
			AcceptLanguage:            "en-US,en;q=0.9,pl;q=0.8",
			ConnectTimeoutMS:          5000,
			TotalTimeoutMS:            15000,
			MaxRetries:                2,
			MaxIdleConnections:        100,
			MaxIdleConnectionsPerHost: 10,
			IdleConnectionTimeoutS:    90,
			MaxBodyBytes:              10 << 20,
		},
		Backoff: BackoffConfig{
			MinMS:     250,
			MaxMS:     4000,
			JitterPct: 20,
		},
		RateLimit: RateLimitConfig{
			MaxConcurrentPerHost: 2,
			RPM:                  30,
		},
		Robots: RobotsConfig{
			Respect:       true,
			CacheTTLHours: 12,
		},
		Rod: RodConfig{
			PageTimeoutS:     30,
			WaitLoadTimeoutS: 15,
		},
		Aggregator: AggregatorConfig{
			MaxConcurrent:   8,
			SourceTimeoutMS: 30000,
		},
		SourcesFile: "configs/sources.yaml",
		Normalize: NormalizeConfig{
			TrimNBSP:        true,
			CollapseSpaces:  true,
			MaxPreviewChars: 0,
			Timezone:        "Local",
		},
		Storage: StorageConfig{
			Driver:           "none",
			Database:         "newsfeed",
			Collection:       "articles",
			CommandTimeoutMS: 5000,
			BatchSize:        100,
		},
		Redis: RedisConfig{
			KeyPrefix:    "newsfeed:",
			SnapshotTTLS: 3600,
		},
		Scheduler: SchedulerConfig{
			Mode:      "interval",
			IntervalS: 900,
		},
		API: APIConfig{
			Addr:            ":8080",
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Observability: ObservabilityConfig{
			LogPath:  "logs/newsfeed.log",
			LogLevel: "info",
		},
	}
}

// Validation
func (c *Config) Validate() error {
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	if c.HTTP.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("http.connect_timeout_ms must be > 0")
	}
	if c.HTTP.TotalTimeoutMS <= 0 {
		return fmt.Errorf("http.total_timeout_ms must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must be >= 0")
	}
	if c.Backoff.MinMS <= 0 {
		return fmt.Errorf("backoff.min_ms must be > 0")
	}
	if c.Backoff.MaxMS <= 0 {
		return fmt.Errorf("backoff.max_ms must be > 0")
	}
	if c.Backoff.MinMS > c.Backoff.MaxMS {
		return fmt.Errorf("backoff.min_ms must be <= backoff.max_ms")
	}
	if c.Backoff.JitterPct < 0 || c.Backoff.JitterPct > 100 {
		return fmt.Errorf("backoff.jitter_pct must be between 0 and 100")
	}
	if c.RateLimit.MaxConcurrentPerHost <= 0 {
		return fmt.Errorf("rate_limit.max_concurrent_per_host must be > 0")
	}
	if c.RateLimit.RPM <= 0 {
		return fmt.Errorf("rate_limit.rpm must be > 0")
	}
	if c.Robots.Respect && c.Robots.CacheTTLHours <= 0 {
		return fmt.Errorf("robots.cache_ttl_hours must be > 0")
	}
	if c.Rod.Enabled {
		if c.Rod.PageTimeoutS <= 0 {
			return fmt.Errorf("rod.page_timeout_s must be > 0")
		}
		if c.Rod.WaitLoadTimeoutS <= 0 {
			return fmt.Errorf("rod.wait_load_timeout_s must be > 0")
		}
		if c.Rod.LazyLoadDelayS < 0 {
			return fmt.Errorf("rod.lazy_load_delay_s must be >= 0")
		}
	}
	if c.Aggregator.MaxConcurrent < 0 {
		return fmt.Errorf("aggregator.max_concurrent must be >= 0")
	}
	if c.Aggregator.SourceTimeoutMS <= 0 {
		return fmt.Errorf("aggregator.source_timeout_ms must be > 0")
	}
	if c.SourcesFile == "" {
		return fmt.Errorf("sources_file is required")
	}
	if c.Normalize.MaxPreviewChars < 0 {
		return fmt.Errorf("normalize.max_preview_chars must be >= 0")
	}
	if _, err := c.GetLocation(); err != nil {
		return fmt.Errorf("normalize.timezone: %w", err)
	}
	switch c.Storage.Driver {
	case "none":
	case "mssql", "postgres", "mongodb":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver)
		}
		if c.Storage.CommandTimeoutMS <= 0 {
			return fmt.Errorf("storage.command_timeout_ms must be > 0")
		}
		if c.Storage.BatchSize <= 0 {
			return fmt.Errorf("storage.batch_size must be > 0")
		}
	default:
		return fmt.Errorf("storage.driver must be 'none', 'mssql', 'postgres' or 'mongodb'")
	}
	if c.Storage.Driver == "mongodb" && (c.Storage.Database == "" || c.Storage.Collection == "") {
		return fmt.Errorf("storage.database and storage.collection are required for mongodb")
	}
	if c.Redis.SnapshotTTLS < 0 {
		return fmt.Errorf("redis.snapshot_ttl_s must be >= 0")
	}
	if c.Scheduler.Mode != "interval" && c.Scheduler.Mode != "cron" && c.Scheduler.Mode != "oneshot" {
		return fmt.Errorf("scheduler.mode must be 'interval', 'cron' or 'oneshot'")
	}
	if c.Scheduler.Mode == "interval" && c.Scheduler.IntervalS <= 0 {
		return fmt.Errorf("scheduler.interval_s must be > 0 when mode is 'interval'")
	}
	if c.Scheduler.Mode == "cron" && c.Scheduler.CronExpr == "" {
		return fmt.Errorf("scheduler.cron_expr must be set when mode is 'cron'")
	}
	if c.API.DefaultPageSize <= 0 {
		return fmt.Errorf("api.default_page_size must be > 0")
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api.max_page_size must be >= api.default_page_size")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("observability.log_level is required")
	}
	return nil
}

// Getters
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutMS) * time.Millisecond
}

func (c *Config) GetTotalTimeout() time.Duration {
	return time.Duration(c.HTTP.TotalTimeoutMS) * time.Millisecond
}

func (c *Config) GetIdleConnectionTimeout() time.Duration {
	return time.Duration(c.HTTP.IdleConnectionTimeoutS) * time.Second
}

func (c *Config) GetBackoffMin() time.Duration {
	return time.Duration(c.Backoff.MinMS) * time.Millisecond
}

func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Backoff.MaxMS) * time.Millisecond
}

func (c *Config) GetRobotsCacheTTL() time.Duration {
	return time.Duration(c.Robots.CacheTTLHours) * time.Hour
}

func (c *Config) GetRodPageTimeout() time.Duration {
	return time.Duration(c.Rod.PageTimeoutS) * time.Second
}

func (c *Config) GetRodWaitLoadTimeout() time.Duration {
	return time.Duration(c.Rod.WaitLoadTimeoutS) * time.Second
}

func (c *Config) GetRodLazyLoadDelay() time.Duration {
	return time.Duration(c.Rod.LazyLoadDelayS) * time.Second
}

func (c *Config) GetSourceTimeout() time.Duration {
	return time.Duration(c.Aggregator.SourceTimeoutMS) * time.Millisecond
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}

func (c *Config) GetSnapshotTTL() time.Duration {
	return time.Duration(c.Redis.SnapshotTTLS) * time.Second
}

func (c *Config) GetSchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalS) * time.Second
}

// GetLocation часовой пояс, в котором трактуются даты без зоны
func (c *Config) GetLocation() (*time.Location, error) {
	if c.Normalize.Timezone == "" || c.Normalize.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Normalize.Timezone)
}
