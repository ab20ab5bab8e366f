// Package aggregator параллельно опрашивает все источники, ведёт табло
// статусов и сливает результаты в одну ленту по убыванию даты.
package aggregator

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"daily-news-parser/internal/config"
	"daily-news-parser/internal/observability"
	"daily-news-parser/internal/scraper"
)

// SourceFetcher один источник; реализуется *scraper.SourceFetcher
type SourceFetcher interface {
	Source() config.SourceConfig
	FetchDetailed(ctx context.Context) ([]scraper.Article, error)
}

type Aggregator struct {
	maxConcurrent int
	sourceTimeout time.Duration
	logger        *observability.Logger
	onStatus      func(runID string, status Status)
}

type Option func(*Aggregator)

// WithStatusCallback вызывается после каждого завершившегося источника
func WithStatusCallback(fn func(runID string, status Status)) Option {
	return func(a *Aggregator) { a.onStatus = fn }
}

func New(cfg *config.Config, logger *observability.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		maxConcurrent: cfg.Aggregator.MaxConcurrent,
		sourceTimeout: cfg.GetSourceTimeout(),
		logger:        logger.With("component", "aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result итог одного цикла сбора
type Result struct {
	RunID      string            `json:"runId"`
	Articles   []scraper.Article `json:"articles"`
	Statuses   []Status          `json:"statuses"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
}

// FailedSources имена источников со статусом failed
func (r *Result) FailedSources() []string {
	var names []string
	for _, s := range r.Statuses {
		if s.Failed {
			names = append(names, s.Name)
		}
	}
	return names
}

// Aggregate опрашивает включённые источники. Сбой одного источника не
// отменяет остальные; паника в конвейере источника даёт failed и ноль записей.
func (a *Aggregator) Aggregate(ctx context.Context, fetchers []SourceFetcher) *Result {
	enabled := make([]SourceFetcher, 0, len(fetchers))
	names := make([]string, 0, len(fetchers))
	for _, f := range fetchers {
		if !f.Source().IsEnabled() {
			continue
		}
		enabled = append(enabled, f)
		names = append(names, f.Source().Name)
	}

	result := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	board := NewStatusBoard(names)
	logger := a.logger.With("run_id", result.RunID)

	logger.Info("Aggregation started",
		"sources", len(enabled),
		"skipped_disabled", len(fetchers)-len(enabled),
		"max_concurrent", a.maxConcurrent,
	)

	perSource := make([][]scraper.Article, len(enabled))

	var g errgroup.Group
	if a.maxConcurrent > 0 {
		g.SetLimit(a.maxConcurrent)
	}
	for i, f := range enabled {
		i, f := i, f
		g.Go(func() error {
			perSource[i] = a.runSource(ctx, result.RunID, i, f, board, logger)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, articles := range perSource {
		total += len(articles)
	}
	merged := make([]scraper.Article, 0, total)
	for _, articles := range perSource {
		merged = append(merged, articles...)
	}
	SortByDateDesc(merged)

	result.Articles = merged
	result.Statuses = board.Snapshot()
	result.FinishedAt = time.Now().UTC()

	logger.Info("Aggregation finished",
		"articles", len(merged),
		"failed_sources", board.FailedCount(),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	)
	return result
}

func (a *Aggregator) runSource(
	ctx context.Context,
	runID string,
	slot int,
	f SourceFetcher,
	board *StatusBoard,
	logger *observability.Logger,
) (articles []scraper.Article) {
	start := time.Now()
	name := f.Source().Name

	defer func() {
		if r := recover(); r != nil {
			articles = nil
			logger.Error("Source pipeline panicked", "source", name, "panic", fmt.Sprint(r))
			a.resolve(runID, board, slot, Status{
				Failed:     true,
				Error:      fmt.Sprintf("source pipeline failed: %v", r),
				DurationMS: time.Since(start).Milliseconds(),
			})
		}
	}()

	if a.sourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.sourceTimeout)
		defer cancel()
	}

	articles, err := f.FetchDetailed(ctx)

	status := Status{
		Articles:   len(articles),
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		status.Failed = true
		status.Error = err.Error()
	}
	a.resolve(runID, board, slot, status)
	return articles
}

func (a *Aggregator) resolve(runID string, board *StatusBoard, slot int, status Status) {
	final, ok := board.Resolve(slot, status)
	if ok && a.onStatus != nil {
		a.onStatus(runID, final)
	}
}

// SortByDateDesc свежие первыми; порядок равных дат сохраняется
func SortByDateDesc(articles []scraper.Article) {
	slices.SortStableFunc(articles, func(x, y scraper.Article) int {
		return y.Date.Compare(x.Date)
	})
}
