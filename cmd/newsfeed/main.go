package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"daily-news-parser/internal/app"
	"daily-news-parser/internal/bookmarks"
	"daily-news-parser/internal/config"
	"daily-news-parser/internal/feed"
	"daily-news-parser/internal/fetcher"
	"daily-news-parser/internal/observability"
	"daily-news-parser/internal/storage"
	_ "daily-news-parser/internal/storage/mongodb"
	_ "daily-news-parser/internal/storage/mssql"
	_ "daily-news-parser/internal/storage/postgres"
)

var version = "dev"

var (
	cfgFile     string
	sourcesFile string
	verbose     bool
)

func main() {
	// .env необязателен
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "newsfeed",
		Short:         "Multi-source news scraper and feed aggregator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: ./config.yaml or ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&sourcesFile, "sources", "s", "", "sources file path (overrides sources_file)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			v := version
			if info, ok := debug.ReadBuildInfo(); ok && v == "dev" && info.Main.Version != "" {
				v = info.Main.Version
			}
			fmt.Fprintf(cmd.OutOrStdout(), "newsfeed %s\n", v)
		},
	}
}

// runtimeDeps всё, что собирается из конфигурации для fetch и serve
type runtimeDeps struct {
	cfg          *config.Config
	logger       *observability.Logger
	orchestrator *app.Orchestrator
	repo         storage.Repository
	snapshot     feed.Snapshot
	bookmarks    bookmarks.Store
	closers      []func() error
}

func loadConfig() (*config.Config, []config.SourceConfig, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if sourcesFile != "" {
		cfg.SourcesFile = sourcesFile
	}

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, sources, nil
}

// signalLogger пишет только в stderr: сигнал может прийти до загрузки конфига
func signalLogger() *observability.Logger {
	return observability.NewLoggerWithWriter(os.Stderr, "info")
}

func newLogger(cfg *config.Config) *observability.Logger {
	logger := observability.NewLogger(cfg.Observability.LogPath, cfg.Observability.LogLevel)
	if verbose {
		logger.SetLevel("debug")
	}
	return logger
}

func buildRuntime(ctx context.Context) (*runtimeDeps, error) {
	cfg, sources, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)
	for _, src := range sources {
		for _, w := range config.TransformerWarnings(src) {
			logger.Warn("Transformer step will be ignored", "detail", w)
		}
	}
	deps := &runtimeDeps{cfg: cfg, logger: logger}
	deps.closers = append(deps.closers, logger.Close)

	repo, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	deps.repo = repo
	deps.closers = append(deps.closers, repo.Close)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis ping failed", "addr", cfg.Redis.Addr, "error", err.Error())
		}
		deps.closers = append(deps.closers, rdb.Close)
	}

	if rdb != nil {
		deps.snapshot = feed.NewSnapshot(rdb, cfg.Redis.KeyPrefix, cfg.GetSnapshotTTL(), logger)
		deps.bookmarks = bookmarks.NewRedisStore(rdb, cfg.Redis.KeyPrefix, logger)
	} else {
		deps.snapshot = feed.NewSnapshot(nil, cfg.Redis.KeyPrefix, cfg.GetSnapshotTTL(), logger)
		deps.bookmarks = bookmarks.NewMemoryStore()
	}

	httpFetcher := fetcher.NewFetcher(cfg, logger)
	deps.closers = append(deps.closers, httpFetcher.Close)

	pages := app.Pages{HTTP: httpFetcher}
	if cfg.Rod.Enabled {
		browserFetcher := fetcher.NewBrowserFetcher(cfg, logger)
		deps.closers = append(deps.closers, browserFetcher.Close)
		pages.Browser = browserFetcher
	}

	orchestrator, err := app.NewOrchestrator(cfg, logger, sources, pages, repo, deps.snapshot)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.orchestrator = orchestrator

	return deps, nil
}

// Close в обратном порядке открытия
func (d *runtimeDeps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && d.logger != nil {
			d.logger.Warn("Close failed", "error", err.Error())
		}
	}
}
