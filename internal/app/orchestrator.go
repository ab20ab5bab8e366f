package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"daily-news-parser/internal/aggregator"
	"daily-news-parser/internal/config"
	"daily-news-parser/internal/feed"
	"daily-news-parser/internal/normalize"
	"daily-news-parser/internal/observability"
	"daily-news-parser/internal/scraper"
	"daily-news-parser/internal/storage"
)

// ErrCycleRunning предыдущий цикл сбора ещё не закончился
var ErrCycleRunning = errors.New("fetch cycle already running")

// Pages транспорт для источников: render http и render browser
type Pages struct {
	HTTP    scraper.PageFetcher
	Browser scraper.PageFetcher
}

type Orchestrator struct {
	cfg      *config.Config
	logger   *observability.Logger
	sources  []config.SourceConfig
	fetchers []aggregator.SourceFetcher
	agg      *aggregator.Aggregator
	repo     storage.Repository
	snapshot feed.Snapshot

	running sync.Mutex

	statusMu sync.RWMutex
	statuses map[string]aggregator.Status
}

// CycleStats итог RunCycle
type CycleStats struct {
	RunID         string
	Sources       int
	FailedSources []string
	Articles      int
	Stored        storage.UpsertStats
	Duration      time.Duration
}

func NewOrchestrator(
	cfg *config.Config,
	logger *observability.Logger,
	sources []config.SourceConfig,
	pages Pages,
	repo storage.Repository,
	snapshot feed.Snapshot,
) (*Orchestrator, error) {
	loc, err := cfg.GetLocation()
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:      cfg,
		logger:   logger.With("component", "orchestrator"),
		sources:  sources,
		repo:     repo,
		snapshot: snapshot,
		statuses: make(map[string]aggregator.Status, len(sources)),
	}
	o.agg = aggregator.New(cfg, logger, aggregator.WithStatusCallback(o.onStatus))

	text := normalize.NewNormalizer(cfg)
	dates := normalize.NewDateNormalizer(logger, normalize.WithLocation(loc))

	for _, src := range sources {
		transport := pages.HTTP
		if src.RenderMode() == config.RenderBrowser {
			if pages.Browser != nil {
				transport = pages.Browser
			} else {
				o.logger.Warn("Browser rendering unavailable, falling back to HTTP", "source", src.Name)
			}
		}

		sf, err := scraper.NewSourceFetcher(src, transport, text, dates, logger)
		if err != nil {
			return nil, err
		}
		o.fetchers = append(o.fetchers, sf)
	}

	return o, nil
}

// Sources конфигурация источников в порядке файла
func (o *Orchestrator) Sources() []config.SourceConfig {
	return o.sources
}

// Statuses статусы последнего (или идущего) цикла в порядке конфигурации.
// Источник без статуса ещё ни разу не опрашивался.
func (o *Orchestrator) Statuses() []aggregator.Status {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()

	out := make([]aggregator.Status, 0, len(o.sources))
	for _, src := range o.sources {
		if st, ok := o.statuses[src.Name]; ok {
			out = append(out, st)
		}
	}
	return out
}

func (o *Orchestrator) onStatus(runID string, status aggregator.Status) {
	o.statusMu.Lock()
	o.statuses[status.Name] = status
	o.statusMu.Unlock()

	if status.Failed {
		o.logger.Warn("Source failed", "run_id", runID, "source", status.Name, "error", status.Error)
	}
}

// RunCycle один полный цикл: опрос всех источников, снимок ленты,
// сохранение валидных записей. Заглушки в хранилище не попадают.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleStats, error) {
	if !o.running.TryLock() {
		return nil, ErrCycleRunning
	}
	defer o.running.Unlock()

	o.markLoading()

	result := o.agg.Aggregate(ctx, o.fetchers)
	stats := &CycleStats{
		RunID:         result.RunID,
		Sources:       len(result.Statuses),
		FailedSources: result.FailedSources(),
		Articles:      len(result.Articles),
		Duration:      result.FinishedAt.Sub(result.StartedAt),
	}

	if err := o.snapshot.Set(ctx, result); err != nil {
		o.logger.Error("Failed to store feed snapshot", "run_id", result.RunID, "error", err.Error())
	}

	persist := make([]scraper.Article, 0, len(result.Articles))
	for _, a := range result.Articles {
		if !a.Placeholder {
			persist = append(persist, a)
		}
	}

	stored, err := o.repo.UpsertArticles(ctx, persist)
	stats.Stored = stored
	if err != nil {
		return stats, fmt.Errorf("store articles: %w", err)
	}

	o.logger.Info("Cycle completed",
		"run_id", stats.RunID,
		"sources", stats.Sources,
		"failed", len(stats.FailedSources),
		"articles", stats.Articles,
		"inserted", stored.Inserted,
		"updated", stored.Updated,
		"unchanged", stored.Unchanged,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return stats, nil
}

func (o *Orchestrator) markLoading() {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()

	for _, src := range o.sources {
		if src.IsEnabled() {
			o.statuses[src.Name] = aggregator.Status{Name: src.Name, Loading: true}
		}
	}
}
