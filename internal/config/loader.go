package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "NEWSFEED"

// LoadConfig читает конфиг: defaults → файл → переменные окружения NEWSFEED_*.
// Пустой путь означает поиск config.yaml в текущей папке и ./configs.
func LoadConfig(filePath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filePath != "" {
		v.SetConfigFile(filePath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Отсутствие файла допустимо, только если путь не задан явно
		if !errors.As(err, &notFound) || filePath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return cfg, nil
}

// setDefaults регистрирует значения по умолчанию, чтобы AutomaticEnv видел все ключи
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("http.user_agent", cfg.HTTP.UserAgent)
	v.SetDefault("http.accept_language", cfg.HTTP.AcceptLanguage)
	v.SetDefault("http.connect_timeout_ms", cfg.HTTP.ConnectTimeoutMS)
	v.SetDefault("http.total_timeout_ms", cfg.HTTP.TotalTimeoutMS)
	v.SetDefault("http.max_retries", cfg.HTTP.MaxRetries)
	v.SetDefault("http.max_idle_connections", cfg.HTTP.MaxIdleConnections)
	v.SetDefault("http.max_idle_connections_per_host", cfg.HTTP.MaxIdleConnectionsPerHost)
	v.SetDefault("http.idle_connection_timeout_s", cfg.HTTP.IdleConnectionTimeoutS)
	v.SetDefault("http.max_body_bytes", cfg.HTTP.MaxBodyBytes)

	v.SetDefault("backoff.min_ms", cfg.Backoff.MinMS)
	v.SetDefault("backoff.max_ms", cfg.Backoff.MaxMS)
	v.SetDefault("backoff.jitter_pct", cfg.Backoff.JitterPct)

	v.SetDefault("rate_limit.max_concurrent_per_host", cfg.RateLimit.MaxConcurrentPerHost)
	v.SetDefault("rate_limit.rpm", cfg.RateLimit.RPM)

	v.SetDefault("robots.respect", cfg.Robots.Respect)
	v.SetDefault("robots.cache_ttl_hours", cfg.Robots.CacheTTLHours)

	v.SetDefault("rod.enabled", cfg.Rod.Enabled)
	v.SetDefault("rod.chrome_path", cfg.Rod.ChromePath)
	v.SetDefault("rod.page_timeout_s", cfg.Rod.PageTimeoutS)
	v.SetDefault("rod.wait_load_timeout_s", cfg.Rod.WaitLoadTimeoutS)
	v.SetDefault("rod.lazy_load_delay_s", cfg.Rod.LazyLoadDelayS)

	v.SetDefault("aggregator.max_concurrent", cfg.Aggregator.MaxConcurrent)
	v.SetDefault("aggregator.source_timeout_ms", cfg.Aggregator.SourceTimeoutMS)

	v.SetDefault("sources_file", cfg.SourcesFile)

	v.SetDefault("normalize.trim_nbsp", cfg.Normalize.TrimNBSP)
	v.SetDefault("normalize.collapse_spaces", cfg.Normalize.CollapseSpaces)
	v.SetDefault("normalize.max_preview_chars", cfg.Normalize.MaxPreviewChars)
	v.SetDefault("normalize.timezone", cfg.Normalize.Timezone)

	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.dsn", cfg.Storage.DSN)
	v.SetDefault("storage.database", cfg.Storage.Database)
	v.SetDefault("storage.collection", cfg.Storage.Collection)
	v.SetDefault("storage.command_timeout_ms", cfg.Storage.CommandTimeoutMS)
	v.SetDefault("storage.batch_size", cfg.Storage.BatchSize)

	v.SetDefault("redis.addr", cfg.Redis.Addr)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.key_prefix", cfg.Redis.KeyPrefix)
	v.SetDefault("redis.snapshot_ttl_s", cfg.Redis.SnapshotTTLS)

	v.SetDefault("scheduler.mode", cfg.Scheduler.Mode)
	v.SetDefault("scheduler.interval_s", cfg.Scheduler.IntervalS)
	v.SetDefault("scheduler.cron_expr", cfg.Scheduler.CronExpr)

	v.SetDefault("api.addr", cfg.API.Addr)
	v.SetDefault("api.default_page_size", cfg.API.DefaultPageSize)
	v.SetDefault("api.max_page_size", cfg.API.MaxPageSize)

	v.SetDefault("observability.log_path", cfg.Observability.LogPath)
	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
}
